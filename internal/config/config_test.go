package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
base_uri: https://repo.example.org/store/
tombstones: true
quota:
  enabled: true
  default: 10M
store:
  driver: memory
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "https://repo.example.org/store/", cfg.BaseURI)
	assert.True(t, cfg.Tombstones)
	assert.True(t, cfg.Authorization, "unset fields keep their defaults")
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	n, err := cfg.DefaultQuotaBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024), n)
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"base uri without trailing slash", "base_uri: http://x/store"},
		{"unknown driver", "store:\n  driver: postgres"},
		{"bad log level", "log:\n  level: loud"},
		{"empty data dir", "data_dir: \"\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config")
		})
	}
}

func TestParse_BadQuotaSize(t *testing.T) {
	_, err := Parse([]byte("quota:\n  default: lots"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid size")
}

func TestParse_SQLiteNeedsPath(t *testing.T) {
	_, err := Parse([]byte("store:\n  driver: sqlite\n  path: \"\""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.path")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdrepo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provenance: false\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Provenance)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"unlimited", -1},
		{"UNLIMITED", -1},
		{"-1", -1},
		{"100", 100},
		{"1k", 1024},
		{"2M", 2 * 1024 * 1024},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSize("ten")
	assert.Error(t, err)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "unlimited", FormatSize(-1))
	assert.Equal(t, "10MiB", FormatSize(10*1024*1024))
}
