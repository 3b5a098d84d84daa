package workspace

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGuard(t *testing.T) {
	t.Run("rejects empty root", func(t *testing.T) {
		_, err := NewGuard("")
		assert.Error(t, err)
	})

	t.Run("resolves to absolute root", func(t *testing.T) {
		guard, err := NewGuard(t.TempDir())
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(guard.Root()))
	})

	t.Run("accepts a root that does not exist yet", func(t *testing.T) {
		guard, err := NewGuard(filepath.Join(t.TempDir(), "future"))
		require.NoError(t, err)
		assert.NoError(t, guard.ValidatePath(filepath.Join(guard.Root(), "profile")))
	})
}

func TestGuard_ValidatePath(t *testing.T) {
	root := t.TempDir()
	guard, err := NewGuard(root)
	require.NoError(t, err)

	t.Run("accepts paths inside the root", func(t *testing.T) {
		assert.NoError(t, guard.ValidatePath(filepath.Join(guard.Root(), "profile")))
	})

	t.Run("accepts relative paths against the root", func(t *testing.T) {
		assert.NoError(t, guard.ValidatePath("profile/Default"))
	})

	t.Run("accepts the root itself", func(t *testing.T) {
		assert.NoError(t, guard.ValidatePath(guard.Root()))
	})

	t.Run("rejects traversal out of the root", func(t *testing.T) {
		assert.Error(t, guard.ValidatePath(filepath.Join(guard.Root(), "..", "elsewhere")))
	})

	t.Run("rejects unrelated absolute paths", func(t *testing.T) {
		assert.Error(t, guard.ValidatePath(os.TempDir()))
	})

	t.Run("rejects sibling with shared prefix", func(t *testing.T) {
		assert.Error(t, guard.ValidatePath(guard.Root()+"-sibling"))
	})

	t.Run("rejects symlink escaping the root", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("symlink creation requires privileges on windows")
		}
		outside := t.TempDir()
		link := filepath.Join(root, "escape")
		require.NoError(t, os.Symlink(outside, link))
		assert.Error(t, guard.ValidatePath(link))
	})
}

func TestGuard_RemoveAll(t *testing.T) {
	root := t.TempDir()
	guard, err := NewGuard(root)
	require.NoError(t, err)

	t.Run("deletes a directory inside the root", func(t *testing.T) {
		target := filepath.Join(guard.Root(), "profile")
		require.NoError(t, os.MkdirAll(filepath.Join(target, "Default"), 0o755))

		require.NoError(t, guard.RemoveAll(target))
		_, statErr := os.Stat(target)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("refuses to delete outside the root", func(t *testing.T) {
		outside := t.TempDir()
		assert.Error(t, guard.RemoveAll(outside))
		_, statErr := os.Stat(outside)
		assert.NoError(t, statErr)
	})

	t.Run("refuses to delete the root itself", func(t *testing.T) {
		assert.Error(t, guard.RemoveAll(guard.Root()))
	})
}
