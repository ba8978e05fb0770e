package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testBaseURI = "http://example.org/store/"

// writeConfig writes a config with a SQLite store and data dir under a
// fresh temp dir and returns its path. extra is appended verbatim.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`base_uri: %q
data_dir: %q
quota:
  enabled: true
store:
  driver: sqlite
  path: %q
log:
  level: error
%s`, testBaseURI, filepath.Join(dir, "data"), filepath.Join(dir, "mdrepo.db"), extra)
	path := filepath.Join(dir, "mdrepo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the root command with --config cfg prepended when cfg is
// not empty, and returns stdout and stderr.
func run(t *testing.T, cfg string, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if cfg != "" {
		args = append([]string{"--config", cfg}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// mustRun is run that fails the test on error.
func mustRun(t *testing.T, cfg string, args ...string) string {
	t.Helper()
	out, errOut, err := run(t, cfg, args...)
	require.NoError(t, err, "stdout: %s\nstderr: %s", out, errOut)
	return out
}

// runJSON runs a command with --format json and decodes the data of a
// successful response into v.
func runJSON(t *testing.T, cfg string, v any, args ...string) {
	t.Helper()
	out := mustRun(t, cfg, append([]string{"--format", "json"}, args...)...)
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "stdout: %s", out)
	require.Equal(t, "ok", resp.Status)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
}

const teamSeed = `
users: {
	alice: {}
	bob: {}
}
groups: editors: members: ["alice"]
contexts: work: {
	id: "w"
	acl: WriteResource: ["editors"]
}
`

// seededConfig initializes a repository from teamSeed.
func seededConfig(t *testing.T) string {
	t.Helper()
	cfg := writeConfig(t, "")
	seed := writeFile(t, t.TempDir(), "team.cue", teamSeed)
	mustRun(t, cfg, "init", "--seed", seed)
	return cfg
}
