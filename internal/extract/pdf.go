package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"design-assistant-backend/pkg/gemini"
	"design-assistant-backend/pkg/parallel"
)

const (
	// Batched PDF calls are only worth it for a small set that fits well
	// inside the inline-data limit.
	pdfBatchMinFiles = 2
	pdfBatchMaxFiles = 3
	pdfBatchMaxBytes = 100 * 1024 * 1024

	pdfDelimiterPrefix = "=== PDF: "
	pdfDelimiterSuffix = " ==="

	pdfPrompt = "Extract all text content from this PDF document. " +
		"Include text from tables, diagrams, headers and footers. " +
		"Preserve the reading order. Return only the extracted text."
)

// PDFFile is one PDF staged for extraction.
type PDFFile struct {
	Name string
	Data []byte
}

// ShouldBatchPDFs reports whether a file set goes through one combined
// inference call. Deterministic given the file set.
func ShouldBatchPDFs(files []PDFFile) bool {
	var total int64
	for _, f := range files {
		total += int64(len(f.Data))
	}
	return ShouldBatchPDFSizes(len(files), total)
}

// ShouldBatchPDFSizes is the size-only form for callers that know the byte
// counts before loading any file contents.
func ShouldBatchPDFSizes(count int, totalBytes int64) bool {
	if count < pdfBatchMinFiles || count > pdfBatchMaxFiles {
		return false
	}
	return totalBytes <= pdfBatchMaxBytes
}

// ExtractPDF runs one inference call for a single document.
func (s *Service) ExtractPDF(ctx context.Context, file PDFFile) (string, error) {
	text, err := s.gemini.GenerateText(ctx,
		gemini.BlobPart("application/pdf", file.Data),
		gemini.TextPart(pdfPrompt),
	)
	if err != nil {
		return "", fmt.Errorf("pdf extraction failed for %s: %w", file.Name, err)
	}
	return text, nil
}

// ExtractPDFs extracts a set of PDFs, attempting one combined call when the
// set qualifies and falling back to independent parallel calls otherwise (or
// when the combined call fails in any way). The result has one entry per
// input, in input order; attachment filenames are not unique, so results are
// never keyed by name.
func (s *Service) ExtractPDFs(ctx context.Context, files []PDFFile) []string {
	if len(files) == 0 {
		return nil
	}

	if ShouldBatchPDFs(files) {
		if texts, err := s.extractPDFsBatched(ctx, files); err == nil {
			return texts
		} else {
			log.Printf("[Extract] Batched PDF call failed, falling back to singles: %v", err)
		}
	}

	results := parallel.RunOrdered(files, func(f PDFFile) (string, string, error) {
		text, err := s.ExtractPDF(ctx, f)
		return f.Name, text, err
	}, s.maxWorkers)

	texts := make([]string, len(files))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts
}

func (s *Service) extractPDFsBatched(ctx context.Context, files []PDFFile) ([]string, error) {
	parts := make([]gemini.Part, 0, len(files)+1)
	var names []string
	for _, f := range files {
		parts = append(parts, gemini.BlobPart("application/pdf", f.Data))
		names = append(names, f.Name)
	}
	parts = append(parts, gemini.TextPart(fmt.Sprintf(
		"Extract all text content from each of these %d PDF documents, in order: %s. "+
			"Include text from tables and diagrams. Start each document's output with a line "+
			"of the exact form %q followed by that document's text.",
		len(files), strings.Join(names, ", "),
		pdfDelimiterPrefix+"<name>"+pdfDelimiterSuffix,
	)))

	combined, err := s.gemini.GenerateText(ctx, parts...)
	if err != nil {
		return nil, err
	}

	// Segments map to inputs by position, not by name: the model is told to
	// emit documents in input order, and duplicate filenames are legal.
	segments := splitBatchedPDFText(combined)
	if len(segments) != len(files) {
		return nil, fmt.Errorf("combined response has %d delimited segments, want %d", len(segments), len(files))
	}
	texts := make([]string, len(files))
	for i, seg := range segments {
		texts[i] = seg.text
	}
	return texts, nil
}

// batchedSegment is one delimited document from a combined response.
type batchedSegment struct {
	name string
	text string
}

// splitBatchedPDFText parses a combined response back into per-file segments,
// in the order the delimiter lines appear.
func splitBatchedPDFText(combined string) []batchedSegment {
	var segments []batchedSegment
	var current string
	var open bool
	var buf strings.Builder

	flush := func() {
		if open {
			segments = append(segments, batchedSegment{name: current, text: strings.TrimSpace(buf.String())})
		}
		buf.Reset()
	}

	for _, line := range strings.Split(combined, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, pdfDelimiterPrefix) && strings.HasSuffix(trimmed, pdfDelimiterSuffix) {
			flush()
			current = strings.TrimSuffix(strings.TrimPrefix(trimmed, pdfDelimiterPrefix), pdfDelimiterSuffix)
			open = true
			continue
		}
		if open {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	flush()
	return segments
}
