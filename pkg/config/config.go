package config

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every section's Validate.
var validate = validator.New()

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)
	if err := manager.RegisterSection(NewBrowserSection()); err != nil {
		return err
	}
	if err := manager.RegisterSection(NewGenerationSection()); err != nil {
		return err
	}
	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}
	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetBrowser returns the browser section from global config.
// Returns nil if config is not initialized.
func GetBrowser() *BrowserSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDBrowser)
	if !ok {
		return nil
	}
	browser, ok := section.(*BrowserSection)
	if !ok {
		return nil
	}
	return browser
}

// GetGeneration returns the generation section from global config.
// Returns nil if config is not initialized.
func GetGeneration() *GenerationSection {
	if !IsInitialized() {
		return nil
	}
	section, ok := Global().GetSection(SectionIDGeneration)
	if !ok {
		return nil
	}
	generation, ok := section.(*GenerationSection)
	if !ok {
		return nil
	}
	return generation
}
