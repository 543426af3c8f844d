// Package dataset parses labelled feature tables.
//
// A table is delimited text with a header row naming one identifier column
// (typically the source file name), one Label column and any number of numeric
// feature columns. Identifier and label are removed from the feature matrix;
// every other column, in header order, becomes a feature.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrFormat is returned for malformed or incomplete tables.
var ErrFormat = errors.New("table format error")

// DefaultLabelColumn is the header of the class column.
const DefaultLabelColumn = "Label"

// DefaultIDColumns lists the accepted identifier headers, in priority order.
var DefaultIDColumns = []string{"File Names", "File Name", "FileName", "filename", "file_name", "id"}

// Options tunes how a table is parsed.
type Options struct {
	Comma       rune // 0 sniffs ',', ';' or tab from the header
	LabelColumn string
	IDColumns   []string
}

func (o Options) labelColumn() string {
	if strings.TrimSpace(o.LabelColumn) == "" {
		return DefaultLabelColumn
	}
	return strings.TrimSpace(o.LabelColumn)
}

func (o Options) idColumns() []string {
	if len(o.IDColumns) == 0 {
		return DefaultIDColumns
	}
	return o.IDColumns
}

// Table is a parsed training table.
type Table struct {
	IDColumn     string
	LabelColumn  string
	FeatureNames []string
	IDs          []string
	X            [][]float64
	Y            []string
}

// Len returns the number of samples.
func (t *Table) Len() int { return len(t.Y) }

// NumFeatures returns the feature column count.
func (t *Table) NumFeatures() int { return len(t.FeatureNames) }

// Classes returns the sorted distinct labels.
func (t *Table) Classes() []string {
	seen := make(map[string]struct{}, 8)
	for _, label := range t.Y {
		seen[label] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for label := range seen {
		classes = append(classes, label)
	}
	sort.Strings(classes)
	return classes
}

// ClassCounts returns the number of samples per label.
func (t *Table) ClassCounts() map[string]int {
	counts := make(map[string]int)
	for _, label := range t.Y {
		counts[label]++
	}
	return counts
}

// subset builds a table from the given row indices, sharing feature slices.
func (t *Table) subset(rows []int) *Table {
	out := &Table{
		IDColumn:     t.IDColumn,
		LabelColumn:  t.LabelColumn,
		FeatureNames: t.FeatureNames,
		IDs:          make([]string, len(rows)),
		X:            make([][]float64, len(rows)),
		Y:            make([]string, len(rows)),
	}
	for i, row := range rows {
		out.IDs[i] = t.IDs[row]
		out.X[i] = t.X[row]
		out.Y[i] = t.Y[row]
	}
	return out
}

// Load parses a delimited table from r.
func Load(r io.Reader, opts Options) (*Table, error) {
	reader := bufio.NewReader(r)

	comma := opts.Comma
	if comma == 0 {
		head, _ := reader.Peek(4096)
		comma = sniffDelimiter(head)
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = comma
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: table is empty", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrFormat, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	labelName := opts.labelColumn()
	labelIdx := findColumn(header, labelName)
	if labelIdx < 0 {
		return nil, fmt.Errorf("%w: missing %q column", ErrFormat, labelName)
	}

	idIdx := -1
	for _, candidate := range opts.idColumns() {
		if idx := findColumn(header, candidate); idx >= 0 && idx != labelIdx {
			idIdx = idx
			break
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: missing identifier column (one of %s)", ErrFormat, strings.Join(opts.idColumns(), ", "))
	}

	featureIdx := make([]int, 0, len(header))
	featureNames := make([]string, 0, len(header))
	for i, name := range header {
		if i == labelIdx || i == idIdx {
			continue
		}
		featureIdx = append(featureIdx, i)
		featureNames = append(featureNames, name)
	}
	if len(featureIdx) == 0 {
		return nil, fmt.Errorf("%w: no feature columns besides %q and %q", ErrFormat, header[idIdx], header[labelIdx])
	}

	table := &Table{
		IDColumn:     header[idIdx],
		LabelColumn:  header[labelIdx],
		FeatureNames: featureNames,
	}

	line := 1
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrFormat, line, err)
		}
		if isBlank(record) {
			continue
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("%w: row %d has %d fields, header has %d", ErrFormat, line, len(record), len(header))
		}

		label := strings.TrimSpace(record[labelIdx])
		if label == "" {
			return nil, fmt.Errorf("%w: row %d has an empty %q", ErrFormat, line, header[labelIdx])
		}

		values := make([]float64, len(featureIdx))
		for j, col := range featureIdx {
			cell := strings.TrimSpace(record[col])
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d column %q: %q is not a finite number", ErrFormat, line, header[col], cell)
			}
			values[j] = v
		}

		table.IDs = append(table.IDs, strings.TrimSpace(record[idIdx]))
		table.X = append(table.X, values)
		table.Y = append(table.Y, label)
	}

	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: table has a header but no rows", ErrFormat)
	}

	return table, nil
}

func findColumn(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks the most frequent of ',', ';' and tab on the first line.
func sniffDelimiter(head []byte) rune {
	if idx := bytes.IndexByte(head, '\n'); idx >= 0 {
		head = head[:idx]
	}
	best, bestCount := ',', bytes.Count(head, []byte{','})
	for _, candidate := range []rune{';', '\t'} {
		if count := bytes.Count(head, []byte(string(candidate))); count > bestCount {
			best, bestCount = candidate, count
		}
	}
	return best
}
