package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chartsync/internal/apperr"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestSuccess_JSONWrapsData(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(autoSyncResult{AutoSync: true}))

	resp := decodeResponse(t, buf)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"auto_sync": true}, resp.Data)
}

func TestSuccess_TextUsesStringer(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Success(diagramResult{Action: "Pushed", DiagramID: "d1", Name: "Shop", Tables: 3, Version: 2}))
	assert.Equal(t, "Pushed d1 (Shop), 3 table(s), version 2\n", buf.String())
}

func TestError_Formats(t *testing.T) {
	details := map[string]string{"diagram_id": "d1"}

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Error("not_found", "diagram d1 not found", details))

		resp := decodeResponse(t, buf)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "not_found", resp.Error.Code)
		assert.Equal(t, "diagram d1 not found", resp.Error.Message)
		assert.NotNil(t, resp.Error.Details)
	})

	t.Run("text hides details", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Error("not_found", "diagram d1 not found", details))
		assert.Equal(t, "Error [not_found]: diagram d1 not found\n", buf.String())
	})

	t.Run("text verbose shows details", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}
		require.NoError(t, f.Error("not_found", "diagram d1 not found", details))
		assert.Contains(t, buf.String(), "Details: map[diagram_id:d1]")
	})
}

func TestVerboseLog_GoesToErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}
	quiet.VerboseLog("Opened local store %s", "local.db")
	assert.Empty(t, diag.String())

	loud := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
	loud.VerboseLog("Opened local store %s", "local.db")
	assert.Equal(t, "Opened local store local.db\n", diag.String())
	assert.Empty(t, out.String(), "JSON output stays clean")

	fallback := &OutputFormatter{Format: "text", Writer: out, Verbose: true}
	assert.Equal(t, out, fallback.GetErrWriter())
}

func TestFail_MapsCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"apperr", apperr.New(apperr.CodeNotFound, "diagram d1 not found"), "not_found", ExitFailure},
		{"wrapped apperr", WrapExitError(ExitCommandError, "failed to open local store",
			apperr.New(apperr.CodeTransactionFailure, "locked")), "transaction_failure", ExitCommandError},
		{"plain", errors.New("boom"), "internal", ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "json", Writer: buf}

			err := f.Fail(tt.err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			resp := decodeResponse(t, buf)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad input", NewExitError(ExitCommandError, "bad input").Error())
	assert.Equal(t, "read prefs: denied",
		WrapExitError(ExitCommandError, "read prefs", errors.New("denied")).Error())
}
