package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorMessages(t *testing.T) {
	plain := NewExitError(ExitFailure, "replay verification failed")
	assert.Equal(t, "replay verification failed", plain.Error())
	assert.Nil(t, errors.Unwrap(plain))

	cause := errors.New("no such file")
	wrapped := WrapExitError(ExitCommandError, "database not found", cause)
	assert.Equal(t, "database not found: no such file", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("session: %w", NewExitError(ExitFailure, "invalid models")), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestFormatterSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, f.Success(map[string]any{"models": 2}))
	assert.Equal(t, `{"status":"ok","data":{"models":2}}`+"\n", buf.String())

	buf.Reset()
	f.Format = "text"
	require.NoError(t, f.Success("cart"))
	assert.Equal(t, "cart\n", buf.String())
}

func TestFormatterError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, f.Error(ErrCodeUnknownAction, `unknown model "crat"`, map[string]string{"hint": "cart"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownAction, resp.Error.Code)
	assert.Equal(t, map[string]any{"hint": "cart"}, resp.Error.Details)
}

func TestFormatterErrorText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Error(ErrCodeNotFound, "model path not found: x", "details"))
	assert.Equal(t, "Error [E005]: model path not found: x\n", buf.String())

	buf.Reset()
	f.Verbose = true
	require.NoError(t, f.Error(ErrCodeNotFound, "model path not found: x", "stat x"))
	assert.Contains(t, buf.String(), "Details: stat x")
}

func TestFormatterVerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}

	f.VerboseLog("Compiled %d CUE file(s)", 2)
	assert.Empty(t, errOut.String())

	f.Verbose = true
	f.VerboseLog("Compiled %d CUE file(s)", 2)
	assert.Equal(t, "Compiled 2 CUE file(s)\n", errOut.String())
	assert.Empty(t, out.String())

	f.ErrWriter = nil
	assert.Same(t, out, f.GetErrWriter())
}

func TestWriteReport(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeReport(buf, false, map[string]int{"failed": 1}, &CLIError{Code: "E102", Message: "unknown op"}))

	assert.Contains(t, buf.String(), "\n  \"status\": \"error\"")
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "E102", resp.Error.Code)

	buf.Reset()
	require.NoError(t, writeReport(buf, true, nil, nil))
	assert.Equal(t, "{\n  \"status\": \"ok\"\n}\n", buf.String())
}

func TestNewFormatter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := newFormatter(cmd, &RootOptions{Format: "json", Verbose: true})
	assert.Equal(t, "json", f.Format)
	assert.True(t, f.Verbose)
	assert.Same(t, out, f.Writer)
	assert.Same(t, errOut, f.ErrWriter)
}
