package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/protasker/internal/annotationservice"
)

func TestNewCoreWiresStoreAndIndex(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "nested", "doc.json")
	cfg.Index.Path = filepath.Join(dir, "index.db")
	cfg.Annotations.CustomTypes = []string{"bug"}

	c, err := newCore(cfg, "", nil)
	if err != nil {
		t.Fatalf("newCore: %v", err)
	}
	defer c.Close()
	c.store.OnChange(c.svc.HandleChange)

	ctx := context.Background()
	if _, err := c.svc.AddAnnotation(ctx, annotationservice.AddRequest{Path: "/a", Type: "bug", Content: "crash on save"}); err != nil {
		t.Fatalf("custom type should be accepted: %v", err)
	}
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		t.Fatalf("store document not written: %v", err)
	}
	res, err := c.svc.FullText(ctx, "crash", 10)
	if err != nil {
		t.Fatalf("FullText: %v", err)
	}
	if len(res) != 1 {
		t.Errorf("fulltext hits = %d, want 1", len(res))
	}
}

func TestAnnotationsLoader(t *testing.T) {
	if annotationsLoader("") != nil {
		t.Fatal("empty path should give no loader")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("annotations:\n  custom_types: [idea]\n  notifications: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := annotationsLoader(path)()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.CustomTypes) != 1 || got.CustomTypes[0] != "idea" || got.Notifications {
		t.Errorf("annotations = %+v", got)
	}

	if err := os.WriteFile(path, []byte("annotations:\n  custom_types: [note]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := annotationsLoader(path)(); err == nil {
		t.Error("built-in custom type should fail validation")
	}
}
