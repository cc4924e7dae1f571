package extract

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"design-assistant-backend/pkg/parallel"
)

func init() {
	// Real-world emails arrive in every legacy charset imaginable.
	message.CharsetReader = charset.Reader
}

// EmailAttachment is one part of an email written to scratch storage. The
// bytes live on disk, not in memory; TempPath is removed by Cleanup.
type EmailAttachment struct {
	Filename  string
	TempPath  string
	MIMEType  string
	Size      int64
	ContentID string
	Inline    bool
}

// ParsedEmail is the structural decomposition of one message.
type ParsedEmail struct {
	HeaderBlock string
	Body        string
	Attachments []EmailAttachment
}

// Cleanup removes every scratch file. Safe to call repeatedly; called on all
// paths, including parse failures, so scratch files never leak.
func (p *ParsedEmail) Cleanup() {
	if p == nil {
		return
	}
	for i := range p.Attachments {
		if p.Attachments[i].TempPath != "" {
			_ = os.Remove(p.Attachments[i].TempPath)
			p.Attachments[i].TempPath = ""
		}
	}
}

// AttachmentResult pairs an attachment with its extracted text, ready to
// become a derived File.
type AttachmentResult struct {
	EmailAttachment
	Kind Kind
	Text string
}

// EmailExtraction is the full output for one email file: labeled sections
// for the email body plus per-attachment derived documents.
type EmailExtraction struct {
	Parsed      *ParsedEmail
	Sections    []Section
	Attachments []AttachmentResult
}

// ParseEmail decomposes a MIME message: header block, best-effort body
// (plain text preferred, HTML fallback), attachments and inline images
// spilled to scratch files. On error the partial result is cleaned up.
func ParseEmail(r io.Reader) (*ParsedEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	parsed := &ParsedEmail{HeaderBlock: buildHeaderBlock(&mr.Header)}

	var plainBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed part should not discard what parsed so far.
			log.Printf("[Extract] Skipping malformed email part: %v", err)
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			switch {
			case ct == "text/plain" && plainBody == "":
				body, _ := io.ReadAll(part.Body)
				plainBody = string(body)
			case ct == "text/html" && htmlBody == "":
				body, _ := io.ReadAll(part.Body)
				htmlBody = string(body)
			case strings.HasPrefix(ct, "image/"):
				// Inline images referenced by content-id (or just embedded
				// by type) still carry drawings worth extracting.
				contentID := strings.Trim(h.Get("Content-Id"), "<>")
				name := fmt.Sprintf("inline_%s", contentID)
				if contentID == "" {
					name = fmt.Sprintf("inline_%d%s", len(parsed.Attachments), extForMIME(ct))
				}
				if att, err := spillAttachment(name, ct, contentID, true, part.Body); err == nil {
					parsed.Attachments = append(parsed.Attachments, *att)
				} else {
					parsed.Cleanup()
					return nil, err
				}
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if filename == "" {
				filename = fmt.Sprintf("attachment_%d", len(parsed.Attachments))
			}
			ct, _, _ := h.ContentType()
			if att, err := spillAttachment(filename, ct, "", false, part.Body); err == nil {
				parsed.Attachments = append(parsed.Attachments, *att)
			} else {
				parsed.Cleanup()
				return nil, err
			}
		}
	}

	if plainBody != "" {
		parsed.Body = strings.TrimSpace(plainBody)
	} else {
		parsed.Body = strings.TrimSpace(stripHTML(htmlBody))
	}
	return parsed, nil
}

func spillAttachment(filename, mimeType, contentID string, inline bool, body io.Reader) (*EmailAttachment, error) {
	tmp, err := os.CreateTemp("", "email-attachment-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	size, err := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if err == nil {
			err = closeErr
		}
		return nil, fmt.Errorf("failed to spill attachment %s: %w", filename, err)
	}
	return &EmailAttachment{
		Filename:  filename,
		TempPath:  tmp.Name(),
		MIMEType:  mimeType,
		Size:      size,
		ContentID: contentID,
		Inline:    inline,
	}, nil
}

func buildHeaderBlock(h *mail.Header) string {
	var b strings.Builder
	writeAddresses := func(label, field string) {
		if addrs, err := h.AddressList(field); err == nil && len(addrs) > 0 {
			parts := make([]string, 0, len(addrs))
			for _, a := range addrs {
				parts = append(parts, a.String())
			}
			fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(parts, ", "))
		}
	}
	writeAddresses("From", "From")
	writeAddresses("To", "To")
	writeAddresses("Cc", "Cc")
	if subject, err := h.Subject(); err == nil && subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", subject)
	}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		if loc, locErr := time.LoadLocation("Europe/London"); locErr == nil {
			date = date.In(loc)
		}
		fmt.Fprintf(&b, "Date: %s\n", date.Format("Mon, 02 Jan 2006 15:04 MST"))
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	htmlBlockPattern = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	htmlTagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML is a best-effort HTML-to-text fallback for emails with no plain
// text part.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := htmlBlockPattern.ReplaceAllString(html, "")
	text = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</tr>`).ReplaceAllString(text, "\n")
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(text)
	return blankRunPattern.ReplaceAllString(text, "\n\n")
}

func extForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}

// ExtractEmail parses one email file and extracts its attachments: PDFs go
// through the (possibly batched) PDF path, images through parallel visual
// calls, CSVs through the structured parser. Proprietary .msg messages are
// not parseable here and degrade to a placeholder. The caller owns the
// returned extraction and must call Parsed.Cleanup once the attachment
// scratch files are consumed.
func (s *Service) ExtractEmail(ctx context.Context, filename, path string) (*EmailExtraction, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".msg") {
		return &EmailExtraction{
			Parsed: &ParsedEmail{},
			Sections: []Section{{
				Label: "body",
				Text:  fmt.Sprintf("[Email %s: proprietary .msg format, content not extracted]", filename),
			}},
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open email %s: %w", filename, err)
	}
	defer f.Close()

	parsed, err := ParseEmail(f)
	if err != nil {
		return nil, err
	}

	extraction := &EmailExtraction{Parsed: parsed}
	if parsed.HeaderBlock != "" {
		extraction.Sections = append(extraction.Sections, Section{Label: "header", Text: parsed.HeaderBlock})
	}
	if parsed.Body != "" {
		extraction.Sections = append(extraction.Sections, Section{Label: "body", Text: parsed.Body})
	}

	extraction.Attachments = s.extractEmailAttachments(ctx, parsed.Attachments)
	return extraction, nil
}

func (s *Service) extractEmailAttachments(ctx context.Context, attachments []EmailAttachment) []AttachmentResult {
	if len(attachments) == 0 {
		return nil
	}

	results := make([]AttachmentResult, len(attachments))
	var pdfFiles []PDFFile
	var pdfResultIdx []int

	for i, att := range attachments {
		kind := KindForExtension(att.Filename)
		if att.Inline {
			kind = KindImage
		}
		results[i] = AttachmentResult{EmailAttachment: att, Kind: kind}

		switch kind {
		case KindPDF:
			data, err := os.ReadFile(att.TempPath)
			if err != nil {
				results[i].Text = fmt.Sprintf("Error processing %s: %v", att.Filename, err)
				continue
			}
			pdfFiles = append(pdfFiles, PDFFile{Name: att.Filename, Data: data})
			pdfResultIdx = append(pdfResultIdx, i)
		case KindCSV:
			data, err := os.ReadFile(att.TempPath)
			if err != nil {
				results[i].Text = fmt.Sprintf("Error processing %s: %v", att.Filename, err)
				continue
			}
			parsed, err := ParseCSV(data)
			if err != nil {
				results[i].Text = fmt.Sprintf("Error processing %s: %v", att.Filename, err)
				continue
			}
			results[i].Text = parsed.Text()
		case KindImage:
		default:
			results[i].Text = fmt.Sprintf("[Attachment %s (%s): content not extracted]", att.Filename, att.MIMEType)
		}
	}

	// PDFs go through the shared batch/fallback path so a 2-3 file set
	// costs one inference call.
	if len(pdfFiles) > 0 {
		texts := s.ExtractPDFs(ctx, pdfFiles)
		for j, text := range texts {
			results[pdfResultIdx[j]].Text = text
		}
	}

	// Images are independent and fault-isolated; a failed image becomes a
	// placeholder without touching the others.
	var imageIdx []int
	for i := range results {
		if results[i].Kind == KindImage {
			imageIdx = append(imageIdx, i)
		}
	}
	if len(imageIdx) > 0 {
		imageResults := parallel.RunOrdered(imageIdx, func(i int) (string, string, error) {
			att := results[i].EmailAttachment
			data, err := os.ReadFile(att.TempPath)
			if err != nil {
				return att.Filename, "", err
			}
			text, err := s.ExtractImage(ctx, att.Filename, data)
			return att.Filename, text, err
		}, s.maxWorkers)
		for j, r := range imageResults {
			results[imageIdx[j]].Text = r.Text
		}
	}

	return results
}
