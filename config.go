package readpos

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config collects the tuning constants of the mapping pipeline. The
// structural-estimation values (offset divisors, default chapter count,
// paragraph size) are carried over from observed device behavior and have
// no stated derivation; treat them as calibration candidates, not ground
// truth.
type Config struct {
	// ContextRadius is the number of characters taken before and after a
	// located span when building its surrounding context window.
	ContextRadius int `yaml:"context_radius"`

	// BlockContextLimit caps the fallback context taken from the start of
	// the enclosing block when the span text cannot be located within it.
	BlockContextLimit int `yaml:"block_context_limit"`

	// MinContextLen is the minimum usable context length; shorter contexts
	// are replaced by the span text alone.
	MinContextLen int `yaml:"min_context_len"`

	// MinFuzzyTargetLen is the minimum target length (in characters) for
	// which fuzzy word alignment is attempted after an exact miss.
	MinFuzzyTargetLen int `yaml:"min_fuzzy_target_len"`

	// FuzzyMatchRatio is the fraction of the target's words a fuzzy
	// alignment must cover to be accepted.
	FuzzyMatchRatio float64 `yaml:"fuzzy_match_ratio"`

	// SpineFallbackCap limits the number of chapters synthesized from raw
	// spine order when no navigation document exists.
	SpineFallbackCap int `yaml:"spine_fallback_cap"`

	// DefaultChapterCount is the assumed chapter count when live structure
	// analysis is unavailable. Undocumented estimate.
	DefaultChapterCount int `yaml:"default_chapter_count"`

	// LargeOffsetThreshold separates character-count offsets from small
	// positional offsets in structural estimation.
	LargeOffsetThreshold int `yaml:"large_offset_threshold"`

	// LargeOffsetDivisor scales offsets above LargeOffsetThreshold into a
	// progress fraction. Undocumented estimate.
	LargeOffsetDivisor int `yaml:"large_offset_divisor"`

	// SmallOffsetDivisor scales offsets at or below LargeOffsetThreshold.
	// Undocumented estimate.
	SmallOffsetDivisor int `yaml:"small_offset_divisor"`

	// ParagraphSizeEstimate splits a raw offset into paragraph and
	// character components during structural estimation.
	ParagraphSizeEstimate int `yaml:"paragraph_size_estimate"`

	// CacheSize bounds the number of analyzed structures retained by the
	// read-through cache.
	CacheSize int `yaml:"cache_size"`
}

// DefaultConfig returns the configuration matching observed device output.
func DefaultConfig() Config {
	return Config{
		ContextRadius:         300,
		BlockContextLimit:     800,
		MinContextLen:         100,
		MinFuzzyTargetLen:     20,
		FuzzyMatchRatio:       0.6,
		SpineFallbackCap:      20,
		DefaultChapterCount:   50,
		LargeOffsetThreshold:  100,
		LargeOffsetDivisor:    10000,
		SmallOffsetDivisor:    100,
		ParagraphSizeEstimate: 50,
		CacheSize:             32,
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("readpos: read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("readpos: parse config %s: %w", path, err)
	}
	return cfg, nil
}
