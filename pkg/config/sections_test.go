package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserSection(t *testing.T) {
	t.Run("defaults validate", func(t *testing.T) {
		section := NewBrowserSection()
		assert.NoError(t, section.Validate())
		assert.Equal(t, SectionIDBrowser, section.ID())
		assert.False(t, section.GetHeadless())
		assert.NotEmpty(t, section.GetTargetURL())
	})

	t.Run("rejects malformed target url", func(t *testing.T) {
		section := NewBrowserSection()
		section.TargetURL = "not a url"
		assert.Error(t, section.Validate())
	})

	t.Run("rejects empty profile dir", func(t *testing.T) {
		section := NewBrowserSection()
		section.ProfileDir = ""
		assert.Error(t, section.Validate())
	})

	t.Run("round-trips through Data and SetData", func(t *testing.T) {
		section := NewBrowserSection()
		section.SetProfileDir("/tmp/profiles/main")
		section.SetHeadless(true)

		restored := NewBrowserSection()
		require.NoError(t, restored.SetData(section.Data()))

		assert.Equal(t, "/tmp/profiles/main", restored.GetProfileDir())
		assert.True(t, restored.GetHeadless())
		assert.Equal(t, section.GetTargetURL(), restored.GetTargetURL())
	})

	t.Run("SetData ignores empty strings", func(t *testing.T) {
		section := NewBrowserSection()
		require.NoError(t, section.SetData(map[string]interface{}{
			"profile_dir": "",
			"target_url":  "",
		}))
		assert.Equal(t, "browser_profile", section.GetProfileDir())
		assert.Equal(t, defaultTargetURL, section.GetTargetURL())
	})

	t.Run("Reset restores defaults", func(t *testing.T) {
		section := NewBrowserSection()
		section.SetProfileDir("/elsewhere")
		section.SetHeadless(true)
		section.Reset()
		assert.Equal(t, "browser_profile", section.GetProfileDir())
		assert.False(t, section.GetHeadless())
	})
}

func TestGenerationSection(t *testing.T) {
	t.Run("defaults validate", func(t *testing.T) {
		section := NewGenerationSection()
		assert.NoError(t, section.Validate())
		assert.Equal(t, 3*time.Second, section.GetIdleWait())
		assert.Equal(t, 10*time.Minute, section.GetTotalTimeout())
		assert.InDelta(t, 0.6, section.GetFuzzyThreshold(), 1e-9)
	})

	t.Run("rejects threshold above one", func(t *testing.T) {
		section := NewGenerationSection()
		section.FuzzyThreshold = 1.5
		assert.Error(t, section.Validate())
	})

	t.Run("rejects idle wait above the ceiling", func(t *testing.T) {
		section := NewGenerationSection()
		section.IdleWaitSeconds = 700
		section.TotalTimeoutSeconds = 600
		assert.Error(t, section.Validate())
	})

	t.Run("rejects unparsable glob", func(t *testing.T) {
		section := NewGenerationSection()
		section.ArtifactURLPattern = "https://images-ng.pixai.art/[orig"
		assert.Error(t, section.Validate())
	})

	t.Run("SetData accepts json numbers", func(t *testing.T) {
		section := NewGenerationSection()
		require.NoError(t, section.SetData(map[string]interface{}{
			"idle_wait_seconds":     5.0,
			"total_timeout_seconds": 300,
			"fuzzy_threshold":       0.75,
		}))
		assert.Equal(t, 5*time.Second, section.GetIdleWait())
		assert.Equal(t, 5*time.Minute, section.GetTotalTimeout())
		assert.InDelta(t, 0.75, section.GetFuzzyThreshold(), 1e-9)
	})

	t.Run("SetData ignores non-positive values", func(t *testing.T) {
		section := NewGenerationSection()
		require.NoError(t, section.SetData(map[string]interface{}{
			"idle_wait_seconds": -1.0,
			"fuzzy_threshold":   0.0,
		}))
		assert.Equal(t, 3*time.Second, section.GetIdleWait())
		assert.InDelta(t, 0.6, section.GetFuzzyThreshold(), 1e-9)
	})
}

func TestFileStore(t *testing.T) {
	t.Run("missing file loads as empty", func(t *testing.T) {
		store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)

		data, err := store.GetSection("browser")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("round-trips sections through disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")

		store, err := NewFileStore(path)
		require.NoError(t, err)
		require.NoError(t, store.SetSection("browser", map[string]interface{}{
			"headless": true,
		}))
		require.NoError(t, store.Save())

		reloaded, err := NewFileStore(path)
		require.NoError(t, err)
		data, err := reloaded.GetSection("browser")
		require.NoError(t, err)
		assert.Equal(t, true, data["headless"])
	})

	t.Run("GetSection returns a copy", func(t *testing.T) {
		store, err := NewFileStore(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, err)
		require.NoError(t, store.SetSection("s", map[string]interface{}{"k": "v"}))

		data, err := store.GetSection("s")
		require.NoError(t, err)
		data["k"] = "mutated"

		again, err := store.GetSection("s")
		require.NoError(t, err)
		assert.Equal(t, "v", again["k"])
	})
}
