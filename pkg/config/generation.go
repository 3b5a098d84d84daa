package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

const (
	// SectionIDGeneration is the identifier for the generation settings section
	SectionIDGeneration = "generation"

	defaultArtifactPattern     = "https://images-ng.pixai.art/gi/orig/*"
	defaultIdleWaitSeconds     = 3.0
	defaultTotalTimeoutSeconds = 600.0
	defaultFuzzyThreshold      = 0.6
)

// GenerationSection manages artifact collection and reconciliation tuning.
type GenerationSection struct {
	ArtifactURLPattern  string  `validate:"required"`
	IdleWaitSeconds     float64 `validate:"gt=0"`
	TotalTimeoutSeconds float64 `validate:"gt=0,gtefield=IdleWaitSeconds"`
	FuzzyThreshold      float64 `validate:"gt=0,lte=1"`
	OutputDir           string  `validate:"required"`
	ScreenshotDir       string  `validate:"required"`
	mu                  sync.RWMutex
}

// NewGenerationSection creates a generation section with default settings.
func NewGenerationSection() *GenerationSection {
	return &GenerationSection{
		ArtifactURLPattern:  defaultArtifactPattern,
		IdleWaitSeconds:     defaultIdleWaitSeconds,
		TotalTimeoutSeconds: defaultTotalTimeoutSeconds,
		FuzzyThreshold:      defaultFuzzyThreshold,
		OutputDir:           "output",
		ScreenshotDir:       "screenshot",
	}
}

// ID returns the section identifier.
func (s *GenerationSection) ID() string {
	return SectionIDGeneration
}

// Title returns the section title.
func (s *GenerationSection) Title() string {
	return "Generation Settings"
}

// Description returns the section description.
func (s *GenerationSection) Description() string {
	return "Tune artifact collection and search matching. idle_wait_seconds stops a run early after a quiet period; total_timeout_seconds is the hard ceiling; fuzzy_threshold is the minimum similarity for accepting a non-exact search result."
}

// Data returns the current configuration data.
func (s *GenerationSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"artifact_url_pattern":  s.ArtifactURLPattern,
		"idle_wait_seconds":     s.IdleWaitSeconds,
		"total_timeout_seconds": s.TotalTimeoutSeconds,
		"fuzzy_threshold":       s.FuzzyThreshold,
		"output_dir":            s.OutputDir,
		"screenshot_dir":        s.ScreenshotDir,
	}
}

// SetData updates the configuration from the provided data. JSON numbers
// arrive as float64; other numeric types are passed through asFloat.
func (s *GenerationSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern, ok := data["artifact_url_pattern"].(string); ok && pattern != "" {
		s.ArtifactURLPattern = pattern
	}
	if v, ok := asFloat(data["idle_wait_seconds"]); ok && v > 0 {
		s.IdleWaitSeconds = v
	}
	if v, ok := asFloat(data["total_timeout_seconds"]); ok && v > 0 {
		s.TotalTimeoutSeconds = v
	}
	if v, ok := asFloat(data["fuzzy_threshold"]); ok && v > 0 {
		s.FuzzyThreshold = v
	}
	if dir, ok := data["output_dir"].(string); ok && dir != "" {
		s.OutputDir = dir
	}
	if dir, ok := data["screenshot_dir"].(string); ok && dir != "" {
		s.ScreenshotDir = dir
	}
	return nil
}

// Validate validates the current configuration, including that the artifact
// URL pattern compiles as a glob.
func (s *GenerationSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("generation settings invalid: %w", err)
	}
	if _, err := glob.Compile(s.ArtifactURLPattern); err != nil {
		return fmt.Errorf("artifact_url_pattern is not a valid glob: %w", err)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *GenerationSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ArtifactURLPattern = defaultArtifactPattern
	s.IdleWaitSeconds = defaultIdleWaitSeconds
	s.TotalTimeoutSeconds = defaultTotalTimeoutSeconds
	s.FuzzyThreshold = defaultFuzzyThreshold
	s.OutputDir = "output"
	s.ScreenshotDir = "screenshot"
}

// GetArtifactURLPattern returns the artifact URL glob.
func (s *GenerationSection) GetArtifactURLPattern() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ArtifactURLPattern
}

// GetIdleWait returns the idle wait as a duration.
func (s *GenerationSection) GetIdleWait() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.IdleWaitSeconds * float64(time.Second))
}

// GetTotalTimeout returns the collection ceiling as a duration.
func (s *GenerationSection) GetTotalTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.TotalTimeoutSeconds * float64(time.Second))
}

// GetFuzzyThreshold returns the search similarity threshold.
func (s *GenerationSection) GetFuzzyThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.FuzzyThreshold
}

// GetOutputDir returns the artifact output directory.
func (s *GenerationSection) GetOutputDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.OutputDir
}

// GetScreenshotDir returns the diagnostics screenshot directory.
func (s *GenerationSection) GetScreenshotDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ScreenshotDir
}

// asFloat coerces the numeric types a JSON or YAML decode can produce.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
