package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVKeyValueSchema(t *testing.T) {
	data := []byte("Parameter,Value,Source\nWall height,2.4m,drawing\nFinish,Oak,email\n")

	result, err := ParseCSV(data)
	require.NoError(t, err)
	require.True(t, result.IsKeyValue())
	require.Len(t, result.Parameters, 2)
	assert.Equal(t, CSVParameter{Parameter: "Wall height", Value: "2.4m", Source: "drawing"}, result.Parameters[0])
	assert.Contains(t, result.Text(), "Parameter: Wall height | Value: 2.4m | Source: drawing")
}

func TestParseCSVKeyValueCaseInsensitiveAnyOrder(t *testing.T) {
	data := []byte("VALUE,source,pArAmEtEr\n2.4m,drawing,Wall height\n")

	result, err := ParseCSV(data)
	require.NoError(t, err)
	require.True(t, result.IsKeyValue())
	assert.Equal(t, "Wall height", result.Parameters[0].Parameter)
	assert.Equal(t, "2.4m", result.Parameters[0].Value)
}

func TestParseCSVGenericFallback(t *testing.T) {
	data := []byte("Name,Qty,Unit\nScrews,100,box\nHinges,4,pair\n")

	result, err := ParseCSV(data)
	require.NoError(t, err)
	assert.False(t, result.IsKeyValue())
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Screws", result.Rows[0]["Name"])
	assert.Contains(t, result.Text(), "Name: Hinges | Qty: 4 | Unit: pair")
}

func TestParseCSVSniffsSemicolonDelimiter(t *testing.T) {
	data := []byte("Parameter;Value;Source\nDepth;600mm;survey\n")

	result, err := ParseCSV(data)
	require.NoError(t, err)
	require.True(t, result.IsKeyValue())
	assert.Equal(t, "600mm", result.Parameters[0].Value)
}

func TestParseCSVStripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Parameter,Value,Source\nA,B,C\n")...)

	result, err := ParseCSV(data)
	require.NoError(t, err)
	assert.True(t, result.IsKeyValue())
}

func TestParseCSVEmpty(t *testing.T) {
	result, err := ParseCSV([]byte(""))
	require.NoError(t, err)
	assert.False(t, result.IsKeyValue())
	assert.Empty(t, result.Rows)
}
