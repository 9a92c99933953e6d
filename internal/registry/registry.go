// Package registry maps project ids to their open stores.
//
// Each project lives in its own SQLite file under the data directory. The
// registry opens a file at most once per process: concurrent first callers
// for the same project wait on a single open and share its handle.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/metrics"
	"github.com/roach88/alignsync/internal/store"
)

// DefaultAppName prefixes every project file name.
const DefaultAppName = "alignsync"

// maxIDLen caps the sanitized id used in file names.
const maxIDLen = 64

// ErrIDCollision is returned when a project id maps to a file that already
// holds a different project.
var ErrIDCollision = errors.New("project file belongs to another project")

// Opener opens the store at path.
type Opener func(path string) (*store.Store, error)

// Registry owns the project id to store handle map.
type Registry struct {
	dir      string
	app      string
	template string
	fs       afero.Fs
	open     Opener

	mu      sync.Mutex
	handles map[string]*store.Store // by file path
	group   singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

// WithAppName sets the file name prefix.
func WithAppName(name string) Option {
	return func(r *Registry) { r.app = name }
}

// WithTemplate copies the database at path into place the first time a
// project file is created.
func WithTemplate(path string) Option {
	return func(r *Registry) { r.template = path }
}

// WithFs replaces the filesystem used for lookups, listing and template
// copies. Stores themselves are always opened by path through the Opener.
func WithFs(fs afero.Fs) Option {
	return func(r *Registry) { r.fs = fs }
}

// WithOpener replaces store.Open.
func WithOpener(open Opener) Option {
	return func(r *Registry) { r.open = open }
}

// New creates a registry rooted at dir.
func New(dir string, opts ...Option) *Registry {
	r := &Registry{
		dir:     dir,
		app:     DefaultAppName,
		fs:      afero.NewOsFs(),
		handles: make(map[string]*store.Store),
		open: func(path string) (*store.Store, error) {
			return store.Open(path)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SanitizeID maps a project id to a file-name-safe form: characters outside
// [A-Za-z0-9_-] become '_' and the result is capped at 64 bytes.
func SanitizeID(id string) string {
	var b strings.Builder
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
		if b.Len() == maxIDLen {
			break
		}
	}
	out := b.String()
	if len(out) > maxIDLen {
		out = out[:maxIDLen]
	}
	return out
}

// Path returns the database file for a project.
func (r *Registry) Path(projectID string) string {
	return filepath.Join(r.dir, r.app+"-"+SanitizeID(projectID)+".db")
}

// Get returns the store for a project, opening it on first use. Distinct ids
// that sanitize to the same file never share a handle: when the file already
// holds another project, Get fails with a store Conflict wrapping
// ErrIDCollision.
func (r *Registry) Get(ctx context.Context, projectID string) (*store.Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id is required")
	}
	s, err := r.acquire(ctx, r.Path(projectID))
	if err != nil {
		return nil, err
	}
	p, err := s.GetProject(ctx)
	switch {
	case store.IsNotFound(err):
	case err != nil:
		return nil, err
	case p.ID != projectID:
		return nil, &store.Error{
			Kind: store.KindConflict,
			Op:   "get project store",
			Err:  fmt.Errorf("%w: %q is stored as %q in %s", ErrIDCollision, projectID, p.ID, s.Path()),
		}
	}
	return s, nil
}

// Exists reports whether the project's database file is present. It never
// creates the file.
func (r *Registry) Exists(projectID string) (bool, error) {
	if projectID == "" {
		return false, nil
	}
	ok, err := afero.Exists(r.fs, r.Path(projectID))
	if err != nil {
		return false, fmt.Errorf("stat project %s: %w", projectID, err)
	}
	return ok, nil
}

// acquire returns the handle for path. Callers racing on a path that is not
// open yet share one open through the singleflight group.
func (r *Registry) acquire(ctx context.Context, path string) (*store.Store, error) {
	r.mu.Lock()
	if s, ok := r.handles[path]; ok {
		r.mu.Unlock()
		return s, nil
	}
	r.mu.Unlock()

	ch := r.group.DoChan(path, func() (any, error) {
		r.mu.Lock()
		if s, ok := r.handles[path]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s, err := r.create(path)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.handles[path] = s
		r.mu.Unlock()
		metrics.RegistryOpenHandles.Inc()
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*store.Store), nil
	}
}

// create prepares the file and opens it.
func (r *Registry) create(path string) (*store.Store, error) {
	if err := r.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if r.template != "" {
		if err := r.copyTemplate(path); err != nil {
			return nil, err
		}
	}
	s, err := r.open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	slog.Debug("project store opened", "path", path)
	return s, nil
}

// copyTemplate copies the template into path unless path already exists.
// The copy is written beside the target and renamed into place.
func (r *Registry) copyTemplate(path string) error {
	if _, err := r.fs.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	src, err := r.fs.Open(r.template)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer src.Close()

	next := path + ".next"
	dst, err := r.fs.OpenFile(next, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", next, err)
	}
	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy template: %w", err)
	}
	if err = dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", next, err)
	}
	if err = r.fs.Rename(next, path); err != nil {
		return fmt.Errorf("rename %s: %w", next, err)
	}
	slog.Info("project store created from template", "path", path, "template", r.template)
	return nil
}

// Entry is one project file found by List.
type Entry struct {
	Path    string         `json:"path"`
	Size    int64          `json:"size"`
	Project domain.Project `json:"project"`
}

// List opens every project file in the data directory and returns the
// project record each holds. Files without a project record are skipped.
func (r *Registry) List(ctx context.Context) ([]Entry, error) {
	infos, err := afero.ReadDir(r.fs, r.dir)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	entries := []Entry{}
	prefix := r.app + "-"
	for _, info := range infos {
		name := info.Name()
		if info.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		path := filepath.Join(r.dir, name)
		s, err := r.acquire(ctx, path)
		if err != nil {
			return nil, err
		}
		p, err := s.GetProject(ctx)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Path: path, Size: info.Size(), Project: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Project.ID < entries[j].Project.ID })
	return entries, nil
}

// Close closes every open handle. The registry can be reused afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for path, s := range r.handles {
		if err := s.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", path, err)
		}
		delete(r.handles, path)
		metrics.RegistryOpenHandles.Dec()
	}
	return first
}
