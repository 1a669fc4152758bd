package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryRenderDefaultTemplate(t *testing.T) {
	lib := NewLibrary(nil)
	out, err := lib.Render("decompose.v1", map[string]string{
		"userQuery":    "weather in Paris",
		"capabilities": "weather, chat",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "weather in Paris")
	assert.Contains(t, out, "weather, chat")
}

func TestLibraryRenderMissingRequiredVar(t *testing.T) {
	lib := NewLibrary(nil)
	_, err := lib.Render("decompose.v1", map[string]string{"userQuery": "hi"})
	assert.Error(t, err)
}

func TestLibraryRenderUnknownTemplate(t *testing.T) {
	lib := NewLibrary(nil)
	_, err := lib.Render("does.not.exist", map[string]string{})
	assert.Error(t, err)
}

func TestLoadLibraryFileParsesCustomTemplate(t *testing.T) {
	data := []byte(`
templates:
  - name: greet.v1
    version: v1
    requiredVars: [userQuery]
    body: "Hello, {{.userQuery}}!"
`)
	lib, err := LoadLibraryFile(data)
	require.NoError(t, err)

	out, err := lib.Render("greet.v1", map[string]string{"userQuery": "world"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", out)
}
