package util

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"papersearch/internal/models"
)

const (
	PagePreviewLimit      = 2000
	FullPaperPreviewLimit = 10000
)

// TruncateRunes cuts s to at most limit runes and reports whether it did.
func TruncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	return string([]rune(s)[:limit]), true
}

// PagePreview sanitizes a page and caps it for display.
func PagePreview(text string) string {
	out, cut := TruncateRunes(SanitizeText(text), PagePreviewLimit)
	if cut {
		out += "\n\n... [Content truncated. Use a smaller page range or request specific sections if needed]"
	}
	return out
}

// FullTextPreview joins sanitized pages with blank lines and caps the result.
func FullTextPreview(pages []models.PageText) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = SanitizeText(p.Text)
	}
	out, cut := TruncateRunes(strings.Join(parts, "\n\n"), FullPaperPreviewLimit)
	if cut {
		out += fmt.Sprintf("\n\n... [Content truncated due to length. Total pages: %d]", len(pages))
	}
	return out
}

func FormatPage(universalID string, pageNumber int, text string) string {
	return fmt.Sprintf("**Paper**: %s\n**Page Number**: %d\n\n**Content**:\n%s",
		universalID, pageNumber, PagePreview(text))
}

func FormatFullPaper(p models.FullPaper) string {
	return fmt.Sprintf("**Title**: %s\n**Universal ID**: %s\n**Total Pages**: %d\n\n**Full Text**:\n%s",
		p.Title, p.UniversalID, len(p.Pages), FullTextPreview(p.Pages))
}

func FormatAbstract(a models.PaperAbstract) string {
	return fmt.Sprintf("**%s**\n\n**arXiv ID**: %s\n\n**Abstract**:\n%s",
		SanitizeText(a.Title), a.UniversalID, SanitizeText(a.Abstract))
}

// FormatKeywordResults renders results the way an agent transcript shows
// them: the first three occurrences per paper, each cut to 200 runes.
func FormatKeywordResults(query string, results []models.KeywordResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No papers found matching keyword: %q", query)
	}
	total := 0
	for _, r := range results {
		total += len(r.Occurrences)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Found %d paper(s) with %d occurrence(s) for %q:**\n\n", len(results), total, query)
	for _, r := range results {
		fmt.Fprintf(&b, "**%s**\n", r.PaperTitle)
		fmt.Fprintf(&b, "   - arXiv ID: %s\n", r.UniversalID)
		fmt.Fprintf(&b, "   - Publication Date: %s\n", r.PublicationDate.UTC().Format("2006-01-02"))
		fmt.Fprintf(&b, "   - Votes: %d\n", r.Votes)
		fmt.Fprintf(&b, "   - Occurrences: %d\n\n", len(r.Occurrences))
		for i, occ := range r.Occurrences {
			if i == 3 {
				break
			}
			snippet, cut := TruncateRunes(SanitizeText(occ.Snippet), 200)
			if cut {
				snippet += "..."
			}
			fmt.Fprintf(&b, "   Page %d: %q\n\n", occ.PageNumber, snippet)
		}
		if n := len(r.Occurrences); n > 3 {
			fmt.Fprintf(&b, "   ... and %d more occurrence(s)\n\n", n-3)
		}
	}
	return b.String()
}

// FormatSimilarPapers renders nearest-neighbour results in ANN order.
func FormatSimilarPapers(results []models.SimilarPaper) string {
	if len(results) == 0 {
		return "No similar papers found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Found %d similar paper(s):**\n\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. **%s** (%s)\n", i+1, r.Title, r.UniversalID)
		fmt.Fprintf(&b, "   - Distance: %.4f\n", r.SimilarityDistance)
		fmt.Fprintf(&b, "   - Publication Date: %s\n", r.PublicationDate.UTC().Format("2006-01-02"))
		fmt.Fprintf(&b, "   - Votes: %d\n\n", r.Votes)
	}
	return b.String()
}
