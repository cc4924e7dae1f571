// Package extract converts binary attachments into plain text via Gemini
// multimodal calls. Extractors never abort a sync run: every failure path
// degrades to a descriptive placeholder string.
package extract

import (
	"regexp"
	"strings"

	"design-assistant-backend/pkg/gemini"
)

// Kind tags a file with the document family it belongs to, derived from the
// file-type column on the source item.
type Kind string

const (
	KindEmail            Kind = "email"
	KindPDF              Kind = "pdf"
	KindImage            Kind = "image"
	KindCSV              Kind = "csv"
	KindAttachment       Kind = "attachment"
	KindUpdateAttachment Kind = "update_attachment"
	KindMondayColumns    Kind = "monday_columns"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// KindFromColumnTitle maps a file-type column title to a Kind. Known titles
// get canonical kinds; anything else is slugged so new column names still
// produce a stable tag.
func KindFromColumnTitle(title string) Kind {
	normalized := strings.ToLower(strings.TrimSpace(title))
	switch normalized {
	case "email":
		return KindEmail
	case "ai data", "ai_data":
		return KindCSV
	}
	slug := strings.Trim(slugPattern.ReplaceAllString(normalized, "_"), "_")
	if slug == "" {
		return KindAttachment
	}
	return Kind(slug)
}

// KindForExtension guesses a kind from a filename when no column mapping
// applies (update attachments keep KindUpdateAttachment for the File row but
// still need an extraction route).
func KindForExtension(filename string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(extOf(filename), "."))
	switch ext {
	case "pdf":
		return KindPDF
	case "jpg", "jpeg", "png", "webp", "gif", "bmp", "tiff":
		return KindImage
	case "csv":
		return KindCSV
	case "eml", "msg":
		return KindEmail
	}
	return KindAttachment
}

func extOf(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		return filename[idx:]
	}
	return ""
}

// Section is one labeled region of a document's extracted text. Labels feed
// chunk metadata so citations can point back into the source.
type Section struct {
	Label string
	Text  string
}

// Document is the extraction output for one file.
type Document struct {
	Name     string
	Sections []Section
}

// Text joins all sections for callers that do not care about structure.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Service runs format-specific extraction through the shared Gemini client.
type Service struct {
	gemini     *gemini.Service
	maxWorkers int
}

func NewService(g *gemini.Service, maxWorkers int) *Service {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Service{gemini: g, maxWorkers: maxWorkers}
}
