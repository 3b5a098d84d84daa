package browser

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectStateDedup(t *testing.T) {
	state := &collectState{seen: make(map[string]bool)}

	assert.True(t, state.markSeen("https://images-ng.pixai.art/gi/orig/a"))
	assert.False(t, state.markSeen("https://images-ng.pixai.art/gi/orig/a"))
	assert.True(t, state.markSeen("https://images-ng.pixai.art/gi/orig/b"))

	state.add(Artifact{SourceURL: "a"})
	state.add(Artifact{SourceURL: "b"})
	assert.Equal(t, 2, state.count())

	artifacts := state.artifacts()
	require.Len(t, artifacts, 2)

	// The returned slice is a copy; mutating it must not affect the state.
	artifacts[0].SourceURL = "mutated"
	assert.Equal(t, "a", state.artifacts()[0].SourceURL)
}

func TestCollectStateConcurrentMarks(t *testing.T) {
	state := &collectState{seen: make(map[string]bool)}
	urls := []string{"u1", "u2", "u3", "u1", "u2", "u3", "u1"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if state.markSeen(u) {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 3, fresh)
}

func TestWaitForQuiescence(t *testing.T) {
	const tick = 5 * time.Millisecond

	t.Run("stops after idle once artifacts exist", func(t *testing.T) {
		var mu sync.Mutex
		count := 0
		go func() {
			time.Sleep(3 * tick)
			mu.Lock()
			count = 1
			mu.Unlock()
		}()

		start := time.Now()
		completed := waitForQuiescence(func() int {
			mu.Lock()
			defer mu.Unlock()
			return count
		}, 10*tick, time.Second, tick)

		assert.True(t, completed)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("hits the ceiling when nothing ever arrives", func(t *testing.T) {
		completed := waitForQuiescence(func() int { return 0 }, 2*tick, 10*tick, tick)
		assert.False(t, completed)
	})

	t.Run("steady arrivals keep the idle clock reset", func(t *testing.T) {
		var mu sync.Mutex
		count := 0
		stop := make(chan struct{})
		go func() {
			ticker := time.NewTicker(tick)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					count++
					mu.Unlock()
				case <-stop:
					return
				}
			}
		}()
		defer close(stop)

		completed := waitForQuiescence(func() int {
			mu.Lock()
			defer mu.Unlock()
			return count
		}, 20*tick, 8*tick, tick)

		assert.False(t, completed)
	})
}

func TestUniqueOutputPath(t *testing.T) {
	dir := t.TempDir()

	t.Run("derives name from url basename", func(t *testing.T) {
		got := uniqueOutputPath(dir, "https://images-ng.pixai.art/gi/orig/abc123.webp")
		assert.Equal(t, filepath.Join(dir, "abc123.png"), got)
	})

	t.Run("appends numeric suffixes on collision", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "img.png"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "img_1.png"), []byte("x"), 0o644))

		got := uniqueOutputPath(dir, "https://images-ng.pixai.art/gi/orig/img.webp")
		assert.Equal(t, filepath.Join(dir, "img_2.png"), got)
	})

	t.Run("falls back to a generated name for empty basename", func(t *testing.T) {
		got := uniqueOutputPath(dir, "https://images-ng.pixai.art/")
		base := filepath.Base(got)
		assert.Contains(t, base, "pixai_")
		assert.Contains(t, base, ".png")
	})

	t.Run("unparsable url still yields a usable path", func(t *testing.T) {
		got := uniqueOutputPath(dir, "::not a url::")
		assert.Equal(t, dir, filepath.Dir(got))
		assert.Contains(t, filepath.Base(got), ".png")
	})
}
