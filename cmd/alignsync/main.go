// Command alignsync inspects alignment project databases and syncs them with
// the remote project service.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/alignsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
