package config

import (
	"fmt"
	"testing"
)

// mockSection is a test implementation of the Section interface
type mockSection struct {
	id          string
	title       string
	description string
	data        map[string]interface{}
	validateErr error
}

func (m *mockSection) ID() string                                { return m.id }
func (m *mockSection) Title() string                             { return m.title }
func (m *mockSection) Description() string                       { return m.description }
func (m *mockSection) Data() map[string]interface{}              { return m.data }
func (m *mockSection) SetData(data map[string]interface{}) error { m.data = data; return nil }
func (m *mockSection) Validate() error                           { return m.validateErr }
func (m *mockSection) Reset()                                    { m.data = make(map[string]interface{}) }

// mockStore is a test implementation of the Store interface
type mockStore struct {
	sections map[string]map[string]interface{}
	loadErr  error
	saveErr  error
	saved    bool
}

func newMockStore() *mockStore {
	return &mockStore{
		sections: make(map[string]map[string]interface{}),
	}
}

func (m *mockStore) Load() error {
	return m.loadErr
}

func (m *mockStore) Save() error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = true
	return nil
}

func (m *mockStore) GetSection(sectionID string) (map[string]interface{}, error) {
	if data, exists := m.sections[sectionID]; exists {
		return data, nil
	}
	return make(map[string]interface{}), nil
}

func (m *mockStore) SetSection(sectionID string, data map[string]interface{}) error {
	m.sections[sectionID] = data
	return nil
}

func TestNewManager(t *testing.T) {
	store := newMockStore()
	manager := NewManager(store)

	if manager == nil {
		t.Fatal("NewManager returned nil")
	}
	if manager.Store() != store {
		t.Error("Manager does not reference correct store")
	}
	if len(manager.GetSections()) != 0 {
		t.Error("New manager should have no sections")
	}
}

func TestManager_RegisterSection(t *testing.T) {
	t.Run("registers section successfully", func(t *testing.T) {
		manager := NewManager(newMockStore())
		section := &mockSection{id: "test", title: "Test"}

		if err := manager.RegisterSection(section); err != nil {
			t.Fatalf("RegisterSection failed: %v", err)
		}

		retrieved, ok := manager.GetSection("test")
		if !ok {
			t.Fatal("Section not found after registration")
		}
		if retrieved.ID() != "test" {
			t.Error("Retrieved section has wrong ID")
		}
	})

	t.Run("prevents duplicate registration", func(t *testing.T) {
		manager := NewManager(newMockStore())
		if err := manager.RegisterSection(&mockSection{id: "test"}); err != nil {
			t.Fatalf("First registration failed: %v", err)
		}
		if err := manager.RegisterSection(&mockSection{id: "test"}); err == nil {
			t.Error("Expected error for duplicate registration")
		}
	})

	t.Run("maintains registration order", func(t *testing.T) {
		manager := NewManager(newMockStore())
		manager.RegisterSection(&mockSection{id: "first"})
		manager.RegisterSection(&mockSection{id: "second"})
		manager.RegisterSection(&mockSection{id: "third"})

		sections := manager.GetSections()
		if len(sections) != 3 {
			t.Fatalf("Expected 3 sections, got %d", len(sections))
		}
		if sections[0].ID() != "first" || sections[1].ID() != "second" || sections[2].ID() != "third" {
			t.Error("Sections not in registration order")
		}
	})
}

func TestManager_LoadAll(t *testing.T) {
	t.Run("loads all sections from store", func(t *testing.T) {
		store := newMockStore()
		store.sections["test"] = map[string]interface{}{"key": "value"}

		manager := NewManager(store)
		section := &mockSection{id: "test", data: make(map[string]interface{})}
		manager.RegisterSection(section)

		if err := manager.LoadAll(); err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if section.data["key"] != "value" {
			t.Error("Section data not loaded correctly")
		}
	})

	t.Run("handles store load error", func(t *testing.T) {
		store := newMockStore()
		store.loadErr = fmt.Errorf("load error")

		manager := NewManager(store)
		if err := manager.LoadAll(); err == nil {
			t.Error("Expected error from store")
		}
	})
}

func TestManager_SaveAll(t *testing.T) {
	t.Run("saves all sections to store", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		manager.RegisterSection(&mockSection{
			id:   "test",
			data: map[string]interface{}{"key": "value"},
		})

		if err := manager.SaveAll(); err != nil {
			t.Fatalf("SaveAll failed: %v", err)
		}
		if store.sections["test"]["key"] != "value" {
			t.Error("Section data not saved correctly")
		}
		if !store.saved {
			t.Error("Store.Save not called")
		}
	})

	t.Run("validates sections before saving", func(t *testing.T) {
		store := newMockStore()
		manager := NewManager(store)
		manager.RegisterSection(&mockSection{
			id:          "test",
			data:        map[string]interface{}{"key": "value"},
			validateErr: fmt.Errorf("validation error"),
		})

		if err := manager.SaveAll(); err == nil {
			t.Error("Expected validation error")
		}
		if store.saved {
			t.Error("Store.Save called despite validation failure")
		}
	})

	t.Run("handles store save error", func(t *testing.T) {
		store := newMockStore()
		store.saveErr = fmt.Errorf("save error")

		manager := NewManager(store)
		manager.RegisterSection(&mockSection{id: "test", data: make(map[string]interface{})})

		if err := manager.SaveAll(); err == nil {
			t.Error("Expected error from store")
		}
	})
}

func TestManager_ResetAll(t *testing.T) {
	manager := NewManager(newMockStore())
	section1 := &mockSection{id: "a", data: map[string]interface{}{"k": "v"}}
	section2 := &mockSection{id: "b", data: map[string]interface{}{"k": "v"}}
	manager.RegisterSection(section1)
	manager.RegisterSection(section2)

	manager.ResetAll()

	if len(section1.data) != 0 || len(section2.data) != 0 {
		t.Error("Sections not reset")
	}
}

func TestManager_Concurrency(t *testing.T) {
	t.Run("concurrent reads are safe", func(t *testing.T) {
		manager := NewManager(newMockStore())
		manager.RegisterSection(&mockSection{id: "test"})

		done := make(chan bool)
		for i := 0; i < 10; i++ {
			go func() {
				manager.GetSection("test")
				manager.GetSections()
				done <- true
			}()
		}
		for i := 0; i < 10; i++ {
			<-done
		}
	})

	t.Run("concurrent writes are safe", func(t *testing.T) {
		manager := NewManager(newMockStore())

		done := make(chan bool)
		for i := 0; i < 10; i++ {
			i := i
			go func() {
				manager.RegisterSection(&mockSection{id: fmt.Sprintf("section%d", i)})
				done <- true
			}()
		}
		for i := 0; i < 10; i++ {
			<-done
		}

		if len(manager.GetSections()) != 10 {
			t.Errorf("Expected 10 sections, got %d", len(manager.GetSections()))
		}
	})
}
