package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_ValidSeed(t *testing.T) {
	seed := writeFile(t, t.TempDir(), "team.cue", teamSeed)

	out := mustRun(t, "", "validate", seed)
	assert.Equal(t, "✓ Seed valid: 2 user(s), 1 group(s), 1 context(s)\n", out)
}

func TestValidateCommand_SeedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.cue", "package seed\n\nusers: alice: {}\n")
	writeFile(t, dir, "contexts.cue", "package seed\n\ncontexts: work: acl: ReadResource: [\"alice\"]\n")

	var result ValidationResult
	runJSON(t, "", &result, "validate", dir)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Users)
	assert.Equal(t, 1, result.Contexts)
}

func TestValidateCommand_InvalidSeed(t *testing.T) {
	seed := writeFile(t, t.TempDir(), "bad.cue", `
users: guest: {}
groups: editors: members: ["nobody"]
`)

	out, _, err := run(t, "", "validate", seed)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E101")
	assert.Contains(t, out, "E103")
}

func TestValidateCommand_InvalidSeedJSON(t *testing.T) {
	seed := writeFile(t, t.TempDir(), "bad.cue", `users: guest: {}`)

	out, _, err := run(t, "", "--format", "json", "validate", seed)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  CLIError         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, "E101", resp.Error.Code)
}

func TestValidateCommand_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		code string
	}{
		{
			name: "missing path",
			path: func(t *testing.T) string { return "/nonexistent/seed.cue" },
			code: ErrCodeNotFound,
		},
		{
			name: "empty directory",
			path: func(t *testing.T) string { return t.TempDir() },
			code: ErrCodeNoFiles,
		},
		{
			name: "users not a struct",
			path: func(t *testing.T) string { return writeFile(t, t.TempDir(), "s.cue", `users: "alice"`) },
			code: ErrCodeInvalidStruct,
		},
		{
			name: "quota not a string",
			path: func(t *testing.T) string { return writeFile(t, t.TempDir(), "s.cue", `contexts: c: quota: 10`) },
			code: ErrCodeInvalidString,
		},
		{
			name: "members not a list",
			path: func(t *testing.T) string {
				return writeFile(t, t.TempDir(), "s.cue", `groups: g: members: "alice"`)
			},
			code: ErrCodeInvalidList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := run(t, "", "validate", tt.path(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, errOut, "Error ["+tt.code+"]")
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"users", ErrCodeInvalidStruct},
		{"groups", ErrCodeInvalidStruct},
		{"contexts", ErrCodeInvalidStruct},
		{"lists", ErrCodeInvalidStruct},
		{"acl", ErrCodeInvalidStruct},
		{"list", ErrCodeInvalidList},
		{"home", ErrCodeInvalidString},
		{"quota", ErrCodeInvalidString},
		{"id", ErrCodeInvalidString},
		{"parent", ErrCodeInvalidString},
		{"cue", ErrCodeBuildFailed},
		{"unknown", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestLoadError_Error(t *testing.T) {
	err := &LoadError{Code: ErrCodeNotFound, Message: "seed not found: x"}
	assert.Equal(t, "E005: seed not found: x", err.Error())
}
