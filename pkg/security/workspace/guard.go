// Package workspace guards destructive filesystem operations. The session
// manager deletes browser profiles that fail validation; the guard makes sure
// such deletions can only ever touch paths under the configured work area.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard validates that paths stay inside a root directory before they are
// handed to destructive operations.
type Guard struct {
	root string
}

// NewGuard creates a guard rooted at dir. The root is resolved to an absolute
// path with symlinks evaluated so later comparisons are byte-wise.
func NewGuard(dir string) (*Guard, error) {
	if dir == "" {
		return nil, fmt.Errorf("guard root cannot be empty")
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guard root: %w", err)
	}
	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to evaluate guard root symlinks: %w", err)
		}
		// Root may not exist yet; fall back to the cleaned absolute path.
		evalPath = filepath.Clean(absPath)
	}
	return &Guard{root: evalPath}, nil
}

// Root returns the guarded root directory.
func (g *Guard) Root() string {
	return g.root
}

// ResolvePath converts path to an absolute path with symlinks evaluated where
// the path exists. Relative paths resolve against the guard root.
func (g *Guard) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.root, path)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		resolved = filepath.Clean(path)
	}
	return resolved, nil
}

// IsWithin reports whether resolved is the root itself or a descendant of it.
func (g *Guard) IsWithin(resolved string) bool {
	if resolved == g.root {
		return true
	}
	return strings.HasPrefix(resolved, g.root+string(filepath.Separator))
}

// ValidatePath resolves path and rejects anything outside the root,
// including traversal via ".." segments or symlinks pointing elsewhere.
func (g *Guard) ValidatePath(path string) error {
	resolved, err := g.ResolvePath(path)
	if err != nil {
		return err
	}
	if !g.IsWithin(resolved) {
		return fmt.Errorf("path %q is outside the guarded root %q", path, g.root)
	}
	return nil
}

// RemoveAll deletes path after validating it is inside the root. Deleting the
// root itself is refused.
func (g *Guard) RemoveAll(path string) error {
	resolved, err := g.ResolvePath(path)
	if err != nil {
		return err
	}
	if !g.IsWithin(resolved) {
		return fmt.Errorf("refusing to delete %q: outside the guarded root %q", path, g.root)
	}
	if resolved == g.root {
		return fmt.Errorf("refusing to delete the guarded root itself")
	}
	return os.RemoveAll(resolved)
}
