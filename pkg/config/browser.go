package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	defaultTargetURL = "https://pixai.art/ko/generator/image"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 11.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// BrowserSection manages browser launch and session settings.
type BrowserSection struct {
	ProfileDir string `validate:"required"`
	Headless   bool
	TargetURL  string `validate:"required,url"`
	UserAgent  string
	mu         sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	return &BrowserSection{
		ProfileDir: "browser_profile",
		Headless:   false,
		TargetURL:  defaultTargetURL,
		UserAgent:  defaultUserAgent,
	}
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser Settings"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Configure the browser profile, headless mode, and target page. The profile directory holds the persistent login session; deleting it forces a fresh interactive login."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"profile_dir": s.ProfileDir,
		"headless":    s.Headless,
		"target_url":  s.TargetURL,
		"user_agent":  s.UserAgent,
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if profileDir, ok := data["profile_dir"].(string); ok && profileDir != "" {
		s.ProfileDir = profileDir
	}
	if headless, ok := data["headless"].(bool); ok {
		s.Headless = headless
	}
	if targetURL, ok := data["target_url"].(string); ok && targetURL != "" {
		s.TargetURL = targetURL
	}
	if userAgent, ok := data["user_agent"].(string); ok && userAgent != "" {
		s.UserAgent = userAgent
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("browser settings invalid: %w", err)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfileDir = "browser_profile"
	s.Headless = false
	s.TargetURL = defaultTargetURL
	s.UserAgent = defaultUserAgent
}

// GetProfileDir returns the persistent profile directory.
func (s *BrowserSection) GetProfileDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ProfileDir
}

// SetProfileDir sets the persistent profile directory.
func (s *BrowserSection) SetProfileDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProfileDir = dir
}

// GetHeadless returns whether the operational browser runs headless.
func (s *BrowserSection) GetHeadless() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Headless
}

// SetHeadless sets headless mode for the operational browser.
func (s *BrowserSection) SetHeadless(headless bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = headless
}

// GetTargetURL returns the generation page URL.
func (s *BrowserSection) GetTargetURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TargetURL
}

// GetUserAgent returns the browser user agent override.
func (s *BrowserSection) GetUserAgent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UserAgent
}
