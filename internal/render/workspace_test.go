package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestWorkspaceLifecycle(t *testing.T) {
	base := t.TempDir()
	jobID := uuid.New()

	ws, err := NewWorkspace(base, jobID)
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}

	if filepath.Dir(ws.Root()) != base {
		t.Errorf("workspace %s not under base %s", ws.Root(), base)
	}

	// Populate with nested content to exercise recursive removal.
	if err := os.MkdirAll(filepath.Join(ws.Root(), "clips"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ws.Path("audio.mp3"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root(), "clips", "c0.mp4"), []byte("y"), 0644); err != nil {
		t.Fatal(err)
	}

	ws.Cleanup()

	if _, err := os.Stat(ws.Root()); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after cleanup: %v", err)
	}

	// Second cleanup is a no-op.
	ws.Cleanup()
}

func TestWorkspacePathsAreScoped(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), uuid.New())
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	defer ws.Cleanup()

	p := ws.Path("scene_0.png")
	if filepath.Dir(p) != ws.Root() {
		t.Errorf("path %s escapes workspace %s", p, ws.Root())
	}
}
