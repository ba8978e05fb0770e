package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EntryCreated("1", "None")
		m.Denied("ReadMetadata")
		m.CacheHit()
		m.ObserveReindex("1", time.Now())
		require.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.EntryCreated("1", "None")
	m.EntryCreated("1", "None")
	m.EntryCreated("1", "List")
	m.Denied("WriteResource")
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.FillLevel("1", 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesCreated.WithLabelValues("1", "None")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntriesCreated.WithLabelValues("1", "List")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthDenied.WithLabelValues("WriteResource")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.QuotaFillBytes.WithLabelValues("1")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.Rollback()

	path := filepath.Join(t.TempDir(), "mdrepo.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "mdrepo_store_rollbacks_total 1"))
}
