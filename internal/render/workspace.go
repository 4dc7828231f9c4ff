package render

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a job-scoped temporary directory. It is created before any
// per-scene work begins and removed on every exit path; the only artifact
// that survives teardown is the already-published output file.
type Workspace struct {
	root string
}

// NewWorkspace creates the job's directory under baseDir. The name is
// derived from the job id, so a leaked directory is attributable.
func NewWorkspace(baseDir string, jobID uuid.UUID) (*Workspace, error) {
	root := filepath.Join(baseDir, "job-"+jobID.String())
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Path returns an absolute path for a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.root, name)
}

// Cleanup removes the workspace recursively, tolerating partial contents.
// Safe to call more than once.
func (w *Workspace) Cleanup() {
	if err := os.RemoveAll(w.root); err != nil {
		log.Printf("[Workspace] Warning: failed to remove %s: %v", w.root, err)
	}
}
