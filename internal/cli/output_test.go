package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mdrepo/internal/repository"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"context": "1"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"context": "1"}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("QUOTA_EXCEEDED", "write failed", map[string]int64{"quota": 10})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "QUOTA_EXCEEDED", resp.Error.Code)
	assert.Equal(t, "write failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	require.NoError(t, formatter.Error("E005", "no such file", "seed.cue"))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [E005]: no such file")
	assert.Contains(t, errOut.String(), "Details: seed.cue")
}

func TestOutputFormatter_TextErrorFallsBackToWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E001", "boom", "hidden"))
	assert.Contains(t, buf.String(), "Error [E001]: boom")
	assert.NotContains(t, buf.String(), "hidden", "details need --verbose")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Reindexing %s", "docs")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Reindexing docs")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "refused")))
	assert.Equal(t, ExitFailure, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitFailure, "refused"))))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New(`unknown flag: --bogus`)))
}

func TestExitError_Message(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open store", cause)
	assert.Equal(t, "failed to open store: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}

func TestFail_MapsRepositoryErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantExit int
		wantCode string
	}{
		{
			name:     "authorization",
			err:      &repository.AuthorizationError{Code: repository.ErrCodeAuthorization, Principal: "p", Entry: "e", Property: repository.WriteResource},
			wantExit: ExitFailure,
			wantCode: "AUTHORIZATION",
		},
		{
			name:     "quota",
			err:      fmt.Errorf("write: %w", &repository.QuotaExceededError{Code: repository.ErrCodeQuotaExceeded, Context: "1", Quota: 10}),
			wantExit: ExitFailure,
			wantCode: "QUOTA_EXCEEDED",
		},
		{
			name:     "missing entry",
			err:      &repository.EntryMissingError{Code: repository.ErrCodeEntryMissing, Entry: "e"},
			wantExit: ExitFailure,
			wantCode: "ENTRY_MISSING",
		},
		{
			name:     "store failure",
			err:      &repository.StoreConnectivityError{Code: repository.ErrCodeStoreConnectivity, Op: "create", Err: errors.New("locked")},
			wantExit: ExitCommandError,
			wantCode: "STORE_CONNECTIVITY",
		},
		{
			name:     "other",
			err:      errors.New("bad size"),
			wantExit: ExitCommandError,
			wantCode: ErrCodeGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := fail(formatter, "operation failed", tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "operation failed: ")
		})
	}
}
