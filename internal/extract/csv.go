package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

const csvSniffSampleBytes = 4096

// CSVParameter is one row of the structured parameter/value/source schema.
type CSVParameter struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
	Source    string `json:"source"`
}

// CSVResult is the two-pass interpretation of a CSV file: a parameter table
// when the header matches the key-value schema, generic row dictionaries
// otherwise.
type CSVResult struct {
	Parameters []CSVParameter
	Rows       []map[string]string
	Headers    []string
}

// IsKeyValue reports whether the structured schema matched.
func (r *CSVResult) IsKeyValue() bool { return r.Parameters != nil }

// Text renders the parsed content as lines suitable for chunking.
func (r *CSVResult) Text() string {
	var b strings.Builder
	if r.IsKeyValue() {
		for _, p := range r.Parameters {
			fmt.Fprintf(&b, "Parameter: %s | Value: %s", p.Parameter, p.Value)
			if p.Source != "" {
				fmt.Fprintf(&b, " | Source: %s", p.Source)
			}
			b.WriteString("\n")
		}
		return b.String()
	}
	for _, row := range r.Rows {
		pairs := make([]string, 0, len(r.Headers))
		for _, h := range r.Headers {
			if v := row[h]; v != "" {
				pairs = append(pairs, fmt.Sprintf("%s: %s", h, v))
			}
		}
		b.WriteString(strings.Join(pairs, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

// sniffDelimiter picks the delimiter with the highest count in a sample of
// the file rather than assuming commas. Exported tooling exports CSVs with
// semicolons and tabs often enough that guessing wrong is the common case.
func sniffDelimiter(data []byte) rune {
	sample := data
	if len(sample) > csvSniffSampleBytes {
		sample = sample[:csvSniffSampleBytes]
	}
	firstLine := string(sample)
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}

	best := ','
	bestCount := strings.Count(firstLine, ",")
	for _, cand := range []rune{';', '\t', '|'} {
		if n := strings.Count(firstLine, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}

// ParseCSV interprets a CSV file. First pass looks for a case-insensitive
// header of exactly parameter/value/source; on mismatch it falls back to
// generic rows keyed by header.
func ParseCSV(data []byte) (*CSVResult, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return &CSVResult{}, nil
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	if cols, ok := keyValueColumns(headers); ok {
		result := &CSVResult{Parameters: []CSVParameter{}, Headers: headers}
		for _, rec := range records[1:] {
			p := CSVParameter{
				Parameter: fieldAt(rec, cols[0]),
				Value:     fieldAt(rec, cols[1]),
				Source:    fieldAt(rec, cols[2]),
			}
			if p.Parameter == "" && p.Value == "" {
				continue
			}
			result.Parameters = append(result.Parameters, p)
		}
		return result, nil
	}

	result := &CSVResult{Headers: headers}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = fieldAt(rec, i)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// keyValueColumns matches the structured schema: exactly the three columns
// parameter, value and source, case-insensitively, in any order.
func keyValueColumns(headers []string) ([3]int, bool) {
	var cols [3]int
	if len(headers) != 3 {
		return cols, false
	}
	found := 0
	for i, h := range headers {
		switch strings.ToLower(h) {
		case "parameter":
			cols[0] = i
			found++
		case "value":
			cols[1] = i
			found++
		case "source":
			cols[2] = i
			found++
		}
	}
	return cols, found == 3
}

func fieldAt(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
