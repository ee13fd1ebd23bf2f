package verifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisposableSetContains(t *testing.T) {
	set := NewDisposableSet()
	assert.True(t, set.Contains("mailinator.com"))
	assert.True(t, set.Contains("MAILINATOR.COM"))
	assert.False(t, set.Contains("example.com"))
}

func TestDisposableSetExtra(t *testing.T) {
	set := NewDisposableSet("Corp-Spam.Example")
	assert.True(t, set.Contains("corp-spam.example"))
	assert.True(t, set.Contains("mailinator.com"))
}

func TestDisposableSetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n\nburner.example\n"), 0o644))

	set, err := NewDisposableSetFromFile(path)
	require.NoError(t, err)
	assert.True(t, set.Contains("burner.example"))
	assert.True(t, set.Contains("yopmail.com"))
	assert.False(t, set.Contains("# comment"))
}
