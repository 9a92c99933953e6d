package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectors_RegisterCleanly(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, registerAll(reg, StoreCollectors()))
	require.NoError(t, registerAll(reg, SyncCollectors()))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, Ok, Status(nil))
	assert.Equal(t, Fail, Status(errors.New("boom")))
}

func TestStoreOpsTotal_CountsByLabel(t *testing.T) {
	c := StoreOpsTotal.WithLabelValues("metrics_test_op", Ok)
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func registerAll(reg prometheus.Registerer, cs []prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
