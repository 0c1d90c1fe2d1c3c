package capability

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Validate(t *testing.T) {
	require.NoError(t, Metadata{Name: "finance_tool"}.Validate())
	require.Error(t, Metadata{Name: "  "}.Validate())
}

func TestDescriptor_Key(t *testing.T) {
	a := Descriptor{Command: "npx", Args: []string{"-y", "server"}}
	b := Descriptor{Command: "npx", Args: []string{"-y", "server"}}
	c := Descriptor{Command: "npx", Args: []string{"-y/server"}}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key(), "argument boundaries must be part of the key")
	assert.Equal(t, "npx -y server", a.String())
	assert.Equal(t, "echo", Descriptor{Command: "echo"}.String())
}

func TestResult_String(t *testing.T) {
	var nilResult *Result
	assert.Equal(t, "", nilResult.String())
	assert.Equal(t, "hello", (&Result{Text: "hello"}).String())
	assert.Equal(t, `{"a":1}`, (&Result{Structured: json.RawMessage(`{"a":1}`)}).String())
}

func TestNotHydratedError(t *testing.T) {
	var err error = &NotHydratedError{Name: "finance_tool", Active: []string{"csv_writer"}}

	assert.True(t, errors.Is(err, ErrNotHydrated))
	assert.Contains(t, err.Error(), "finance_tool")
	assert.Contains(t, err.Error(), "csv_writer")

	var nh *NotHydratedError
	require.True(t, errors.As(err, &nh))
	assert.Equal(t, []string{"csv_writer"}, nh.Active)

	empty := &NotHydratedError{Name: "x"}
	assert.Contains(t, empty.Error(), "active: none")
}

func TestDisallowedCommandError(t *testing.T) {
	var err error = &DisallowedCommandError{Command: "rm", Allowed: []string{"echo", "node"}}
	assert.True(t, errors.Is(err, ErrDisallowedCommand))
	assert.Contains(t, err.Error(), "rm")
	assert.Contains(t, err.Error(), "not in the allowed commands list")
}

func TestPreviewOf(t *testing.T) {
	p := PreviewOf(Candidate{ID: "t", Document: "d", Origin: "mcp://echo", Category: "Cat"})
	assert.Equal(t, Preview{Name: "t", Description: "d", Category: "Cat", Origin: "mcp://echo"}, p)
}
