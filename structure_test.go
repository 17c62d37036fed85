package readpos

import "testing"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"/books/novel.epub", FormatEPUB},
		{"/books/novel.kepub.epub", FormatKEPUB},
		{"/books/novel.kepub", FormatKEPUB},
		{"/books/Novel.KEPUB.EPUB", FormatKEPUB},
		{"/books/novel", FormatEPUB},
	}
	for _, tt := range tests {
		if got := detectFormat(tt.path); got != tt.want {
			t.Errorf("detectFormat(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestAnalyzeStructureEPUB(t *testing.T) {
	an := NewAnalyzer()
	s := an.AnalyzeStructure(buildTestEPUB(t))

	if s.Format != FormatEPUB {
		t.Errorf("Format = %q, want %q", s.Format, FormatEPUB)
	}
	if s.TotalChapters() != 3 {
		t.Fatalf("TotalChapters = %d, want 3", s.TotalChapters())
	}
	if s.Chapters[0].Title != "Chapter One" {
		t.Errorf("Chapters[0].Title = %q, want %q", s.Chapters[0].Title, "Chapter One")
	}
	if len(s.SpineOrder) != 3 {
		t.Errorf("SpineOrder = %v, want 3 ids", s.SpineOrder)
	}
}

func TestAnalyzeStructureKEPUB(t *testing.T) {
	an := NewAnalyzer()
	s := an.AnalyzeStructure(buildTestKEPUB(t))

	if s.Format != FormatKEPUB {
		t.Errorf("Format = %q, want %q", s.Format, FormatKEPUB)
	}
	if s.TotalChapters() != 3 {
		t.Fatalf("TotalChapters = %d, want 3", s.TotalChapters())
	}
	// Titles come from the first heading of each spine file.
	want := []string{"Chapter One", "Chapter Two", "Chapter Three"}
	for i, w := range want {
		if s.Chapters[i].Title != w {
			t.Errorf("Chapters[%d].Title = %q, want %q", i, s.Chapters[i].Title, w)
		}
	}
}

func TestAnalyzeStructureFailureYieldsEmpty(t *testing.T) {
	an := NewAnalyzer()
	s := an.AnalyzeStructure("/nonexistent/book.epub")
	if s.TotalChapters() != 0 {
		t.Errorf("TotalChapters = %d, want 0 for unreadable archive", s.TotalChapters())
	}
	if s.Format != FormatEPUB {
		t.Errorf("Format = %q, want %q", s.Format, FormatEPUB)
	}
}

func TestAnalyzeStructureCached(t *testing.T) {
	an := NewAnalyzer()
	p := buildTestEPUB(t)

	first := an.AnalyzeStructure(p)
	second := an.AnalyzeStructure(p)
	if first.TotalChapters() != second.TotalChapters() {
		t.Errorf("cached analysis differs: %d vs %d", first.TotalChapters(), second.TotalChapters())
	}
}

func TestStructureCacheEviction(t *testing.T) {
	c := newStructureCache(2)
	c.put("a", 1, BookStructure{Format: FormatEPUB})
	c.put("b", 1, BookStructure{Format: FormatEPUB})
	c.put("c", 1, BookStructure{Format: FormatEPUB})

	if _, ok := c.get("a", 1); ok {
		t.Error("oldest entry not evicted")
	}
	if _, ok := c.get("b", 1); !ok {
		t.Error("entry b missing")
	}
	if _, ok := c.get("c", 1); !ok {
		t.Error("entry c missing")
	}
}

func TestStructureCacheModTimeInvalidates(t *testing.T) {
	c := newStructureCache(4)
	c.put("a", 1, BookStructure{Format: FormatEPUB})
	if _, ok := c.get("a", 2); ok {
		t.Error("stale mtime entry served")
	}
}
