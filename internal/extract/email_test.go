package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEmail = "From: Alice <alice@example.com>\r\n" +
	"To: Bob <bob@example.com>\r\n" +
	"Subject: Kitchen revision\r\n" +
	"Date: Mon, 02 Mar 2026 10:30:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"xyz\"\r\n" +
	"\r\n" +
	"--xyz\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please see the attached parameters.\r\n" +
	"--xyz\r\n" +
	"Content-Type: text/csv\r\n" +
	"Content-Disposition: attachment; filename=\"params.csv\"\r\n" +
	"\r\n" +
	"Parameter,Value,Source\r\nDepth,600mm,survey\r\n" +
	"--xyz--\r\n"

func TestParseEmail(t *testing.T) {
	parsed, err := ParseEmail(strings.NewReader(sampleEmail))
	require.NoError(t, err)
	defer parsed.Cleanup()

	assert.Contains(t, parsed.HeaderBlock, "From: ")
	assert.Contains(t, parsed.HeaderBlock, "<alice@example.com>")
	assert.Contains(t, parsed.HeaderBlock, "Subject: Kitchen revision")
	assert.Contains(t, parsed.HeaderBlock, "Date: Mon, 02 Mar 2026")
	assert.Equal(t, "Please see the attached parameters.", parsed.Body)

	require.Len(t, parsed.Attachments, 1)
	att := parsed.Attachments[0]
	assert.Equal(t, "params.csv", att.Filename)
	assert.False(t, att.Inline)
	assert.NotEmpty(t, att.TempPath)
}

func TestParseEmailHTMLFallback(t *testing.T) {
	raw := "From: a@example.com\r\n" +
		"Subject: html only\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><head><style>p{}</style></head><body><p>First line</p><p>Second &amp; last</p></body></html>\r\n"

	parsed, err := ParseEmail(strings.NewReader(raw))
	require.NoError(t, err)
	defer parsed.Cleanup()

	assert.Contains(t, parsed.Body, "First line")
	assert.Contains(t, parsed.Body, "Second & last")
	assert.NotContains(t, parsed.Body, "<p>")
	assert.NotContains(t, parsed.Body, "style")
}

func TestParsedEmailCleanupIsIdempotent(t *testing.T) {
	parsed, err := ParseEmail(strings.NewReader(sampleEmail))
	require.NoError(t, err)

	parsed.Cleanup()
	parsed.Cleanup()
	assert.Empty(t, parsed.Attachments[0].TempPath)
}

func TestExtractEmailMsgPlaceholder(t *testing.T) {
	svc := NewService(nil, 2)

	extraction, err := svc.ExtractEmail(context.Background(), "legacy.msg", "/nonexistent")
	require.NoError(t, err)
	require.Len(t, extraction.Sections, 1)
	assert.Contains(t, extraction.Sections[0].Text, ".msg format")
	assert.Empty(t, extraction.Attachments)
}

func TestStripHTML(t *testing.T) {
	text := stripHTML("<div>a</div><script>var x;</script><br>b&nbsp;c")
	assert.NotContains(t, text, "var x")
	assert.Contains(t, text, "a")
	assert.Contains(t, text, "b c")
}
