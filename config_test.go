package readpos

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ContextRadius != 300 {
		t.Errorf("ContextRadius = %d, want 300", cfg.ContextRadius)
	}
	if cfg.DefaultChapterCount != 50 {
		t.Errorf("DefaultChapterCount = %d, want 50", cfg.DefaultChapterCount)
	}
	if cfg.FuzzyMatchRatio != 0.6 {
		t.Errorf("FuzzyMatchRatio = %f, want 0.6", cfg.FuzzyMatchRatio)
	}
	if cfg.SpineFallbackCap != 20 {
		t.Errorf("SpineFallbackCap = %d, want 20", cfg.SpineFallbackCap)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "readpos.yaml")
	content := "context_radius: 150\nfuzzy_match_ratio: 0.75\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ContextRadius != 150 {
		t.Errorf("ContextRadius = %d, want 150", cfg.ContextRadius)
	}
	if cfg.FuzzyMatchRatio != 0.75 {
		t.Errorf("FuzzyMatchRatio = %f, want 0.75", cfg.FuzzyMatchRatio)
	}
	// Untouched fields keep their defaults.
	if cfg.DefaultChapterCount != 50 {
		t.Errorf("DefaultChapterCount = %d, want default 50", cfg.DefaultChapterCount)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/readpos.yaml")
	if err == nil {
		t.Fatal("LoadConfig succeeded for a missing file")
	}
	// Defaults are still usable.
	if cfg.ContextRadius != 300 {
		t.Errorf("ContextRadius = %d, want default 300", cfg.ContextRadius)
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(p, []byte("context_radius: [not a number"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("LoadConfig accepted malformed YAML")
	}
}
