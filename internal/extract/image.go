package extract

import (
	"context"
	"fmt"
	"strings"

	"design-assistant-backend/pkg/gemini"
)

const imagePrompt = "Describe this image in detail. If it contains text, " +
	"transcribe all of it. If it is a technical drawing, plan or diagram, " +
	"describe the layout, labels, dimensions and annotations."

var imageMIMETypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
}

// ImageMIMEType maps a filename to its inline-data MIME type. ok is false for
// formats the model does not accept.
func ImageMIMEType(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(extOf(filename), "."))
	mime, ok := imageMIMETypes[ext]
	return mime, ok
}

// ExtractImage runs one visual inference call. Unsupported formats return a
// placeholder instead of an error so the file still gets ingested.
func (s *Service) ExtractImage(ctx context.Context, filename string, data []byte) (string, error) {
	mime, ok := ImageMIMEType(filename)
	if !ok {
		return fmt.Sprintf("[Image %s: unsupported format, content not extracted]", filename), nil
	}

	text, err := s.gemini.GenerateText(ctx,
		gemini.BlobPart(mime, data),
		gemini.TextPart(imagePrompt),
	)
	if err != nil {
		return "", fmt.Errorf("image extraction failed for %s: %w", filename, err)
	}
	return text, nil
}
