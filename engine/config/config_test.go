package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Renderer.ChunkWindow != 32 {
		t.Fatalf("chunk window = %d", cfg.Renderer.ChunkWindow)
	}
	if cfg.Renderer.RenderBatch != 6 {
		t.Fatalf("render batch = %d", cfg.Renderer.RenderBatch)
	}
	if len(cfg.Renderer.ZoomBudgets) != 4 {
		t.Fatalf("zoom budgets = %v", cfg.Renderer.ZoomBudgets)
	}
	for z := 1; z < len(cfg.Renderer.ZoomBudgets); z++ {
		if cfg.Renderer.ZoomBudgets[z] > cfg.Renderer.ZoomBudgets[z-1] {
			t.Fatalf("budgets must not grow with zoom: %v", cfg.Renderer.ZoomBudgets)
		}
	}
}

func TestLoadOverridesAndFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	body := `
renderer:
  chunk_window: 16
  zoom_budgets: [40, 30, 20, 10]
server:
  base_url: "http://assets.example.net"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Renderer.ChunkWindow != 16 {
		t.Fatalf("chunk window = %d", cfg.Renderer.ChunkWindow)
	}
	if cfg.Renderer.ZoomBudgets[3] != 10 {
		t.Fatalf("zoom budgets = %v", cfg.Renderer.ZoomBudgets)
	}
	if cfg.Renderer.RenderBatch != 6 {
		t.Fatalf("render batch default missing: %d", cfg.Renderer.RenderBatch)
	}
	if cfg.Server.BaseURL != "http://assets.example.net" {
		t.Fatalf("base url = %q", cfg.Server.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsBadBudgetCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("renderer:\n  zoom_budgets: [1, 2]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for wrong budget count")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
