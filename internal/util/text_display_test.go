package util

import (
	"strings"
	"testing"
	"time"

	"papersearch/internal/models"
)

func TestPagePreviewTruncates(t *testing.T) {
	short := PagePreview("hello\x00 world")
	if short != "hello world" {
		t.Fatalf("unexpected preview: %q", short)
	}
	long := PagePreview(strings.Repeat("x", PagePreviewLimit+5))
	if !strings.HasPrefix(long, strings.Repeat("x", PagePreviewLimit)+"\n\n... [Content truncated.") {
		t.Fatalf("expected truncation notice, got tail %q", long[len(long)-40:])
	}
}

func TestFullTextPreviewJoinsPages(t *testing.T) {
	pages := []models.PageText{{PageNumber: 1, Text: "one"}, {PageNumber: 2, Text: "two"}}
	if got := FullTextPreview(pages); got != "one\n\ntwo" {
		t.Fatalf("unexpected full text: %q", got)
	}
	big := []models.PageText{{Text: strings.Repeat("a", 6000)}, {Text: strings.Repeat("b", 6000)}}
	got := FullTextPreview(big)
	if !strings.HasSuffix(got, "[Content truncated due to length. Total pages: 2]") {
		t.Fatalf("missing truncation notice: %q", got[len(got)-60:])
	}
}

func TestFormatKeywordResults(t *testing.T) {
	if got := FormatKeywordResults("gsm8k", nil); got != `No papers found matching keyword: "gsm8k"` {
		t.Fatalf("unexpected empty output: %q", got)
	}
	occ := make([]models.Occurrence, 5)
	for i := range occ {
		occ[i] = models.Occurrence{PageNumber: i + 1, Snippet: "gsm8k scores"}
	}
	out := FormatKeywordResults("gsm8k", []models.KeywordResult{{
		UniversalID:     "2401.00001",
		PaperTitle:      "Math",
		Votes:           7,
		PublicationDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Occurrences:     occ,
	}})
	for _, want := range []string{"1 paper(s) with 5 occurrence(s)", "2024-01-02", "Page 3:", "... and 2 more occurrence(s)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Page 4:") {
		t.Fatalf("expected only three occurrences rendered:\n%s", out)
	}
}
