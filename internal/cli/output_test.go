package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gisdoc/internal/document"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("FORMAT_ERROR", "invalid document", []string{"layers.a.type"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "FORMAT_ERROR", resp.Error.Code)
	assert.Equal(t, "invalid document", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_JSONDoesNotEscapeHTML(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success("<roads & rails>"))
	assert.Contains(t, buf.String(), "<roads & rails>")
}

func TestOutputFormatter_Text(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("all good"))
	require.NoError(t, formatter.Error("CYCLE", "cannot move a group into itself", map[string]string{"group": "G"}))

	out := buf.String()
	assert.Contains(t, out, "all good\n")
	assert.Contains(t, out, "Error [CYCLE]: cannot move a group into itself")
	assert.NotContains(t, out, "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("CYCLE", "bad move", map[string]string{"group": "G"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	cause := errors.New("disk on fire")
	err := formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", cause)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, buf.String(), "Error [E_STORE]: failed to open database: disk on fire")
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
			out, diag := &bytes.Buffer{}, &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: tt.verbose}

			formatter.VerboseLog("Replaying %s", "harbour")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Contains(t, diag.String(), "Replaying harbour")
			} else {
				assert.Empty(t, diag.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	wrapped := WrapExitError(ExitFailure, "invalid document", document.NewError(document.ErrCodeFormat, "", "x"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "FORMAT_ERROR", errorCode(wrapped, ErrCodeCommand))
	assert.Equal(t, ErrCodeCommand, errorCode(errors.New("plain"), ErrCodeCommand))
}
