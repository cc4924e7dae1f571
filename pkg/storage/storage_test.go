package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "plan.pdf", SanitizeFilename("plan.pdf"))
	assert.Equal(t, "kitchen_rev_2.pdf", SanitizeFilename("kitchen rev 2.pdf"))
	assert.Equal(t, "_etc_passwd", SanitizeFilename("/etc/passwd"))
	assert.Equal(t, "a_b.csv", SanitizeFilename("a\\b.csv"))
	assert.Equal(t, "file", SanitizeFilename("   "))
	assert.Equal(t, "_final_.pdf", SanitizeFilename("«final».pdf"))
}

func TestBuildObjectPath(t *testing.T) {
	path := BuildObjectPath("42", "7", "1001", "abc123", "10", "plan.pdf")
	assert.Equal(t, "monday/42/7/1001/abc123/10/plan.pdf", path)
}
