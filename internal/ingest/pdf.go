package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"papersearch/internal/storage"
	"papersearch/internal/util"

	"github.com/ledongthuc/pdf"
)

var trailingSection = regexp.MustCompile(`\s+(\d{1,2}|[IVX]{1,4})\.?\s*$`)

const (
	maxTitleRunes    = 300
	maxAbstractRunes = 2000
)

// Document is a parsed PDF ready for insertion.
type Document struct {
	Paper    storage.NewPaper
	Checksum string
}

// PDFPages returns the sanitized plain text of every page in order. Pages the
// extractor cannot read are kept as empty strings so numbering stays aligned.
func PDFPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	found := false
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = util.SanitizeText(text)
		if text != "" {
			found = true
		}
		pages = append(pages, text)
	}
	if !found {
		return nil, util.ErrNoExtractableText
	}
	return pages, nil
}

// PaperFromPDF builds a paper from a file named <universalId>.pdf. The
// publication date comes from the identifier when it encodes one and from the
// file's modification time otherwise.
func PaperFromPDF(path string) (Document, error) {
	sum, err := util.FileChecksum(path)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	pages, err := PDFPages(path)
	if err != nil {
		return Document{}, err
	}
	paper := PaperFromPages(UniversalIDFromPath(path), pages, info.ModTime())
	return Document{Paper: paper, Checksum: sum}, nil
}

func UniversalIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PaperFromPages applies the title and abstract heuristics to extracted pages.
func PaperFromPages(universalID string, pages []string, fallbackDate time.Time) storage.NewPaper {
	first := ""
	for _, p := range pages {
		if p != "" {
			first = p
			break
		}
	}
	date, ok := ImpliedPublicationDate(universalID)
	if !ok {
		date = fallbackDate.UTC()
	}
	title := heuristicTitle(first)
	if title == "" {
		title = universalID
	}
	return storage.NewPaper{
		UniversalID:     universalID,
		Title:           title,
		Abstract:        heuristicAbstract(first),
		PublicationDate: date,
		Pages:           pages,
	}
}

func heuristicTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return truncate(line, maxTitleRunes)
		}
	}
	return ""
}

// heuristicAbstract takes the text between an "Abstract" heading and the
// introduction, or the opening of the first page when there is no heading.
func heuristicAbstract(text string) string {
	lower := strings.ToLower(text)
	start := strings.Index(lower, "abstract")
	if start < 0 {
		return truncate(strings.Join(strings.Fields(text), " "), maxAbstractRunes)
	}
	body := text[start+len("abstract"):]
	if end := strings.Index(strings.ToLower(body), "introduction"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimLeft(body, " \t\r\n.:-")
	body = trailingSection.ReplaceAllString(strings.TrimSpace(body), "")
	return truncate(strings.Join(strings.Fields(body), " "), maxAbstractRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
