// Package workbook implements the Workbook Parser & Validator: it reads
// a downloaded xlsx buffer, locates the header row, maps headers onto
// canonical field names, and coerces each cell per the field's kind.
//
// Grounded on the teacher's internal/ingest CSV-to-struct mapping (header
// normalization, per-column coercion with warning collection rather than
// hard failure) generalized from CSV onto xlsx rows read through
// github.com/xuri/excelize/v2 — a dependency present in the teacher's
// go.mod but previously unused; this package is its first real caller.
package workbook

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wagid-sheikh/simplify-downloader/internal/clock"
	pipelineerrors "github.com/wagid-sheikh/simplify-downloader/internal/errors"
)

// FieldKind governs how a column's raw cell text is coerced.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldDate
	FieldNumeric
	FieldPhone
)

// ColumnSpec describes one canonical field a report's rows must (or may)
// carry, and which header labels map onto it.
type ColumnSpec struct {
	Canonical string
	Kind      FieldKind
	Headers   []string // accepted header labels, matched case-insensitively after trimming
	Required  bool      // missing column entirely ⇒ KindSchema
	DedupKey  bool      // for FieldDate/FieldPhone: unparseable ⇒ reject the row, not null+warning
}

// ReportSpec names the full column set for one spreadsheet shape.
type ReportSpec struct {
	Name    string
	Columns []ColumnSpec
}

// Row is one parsed, coerced record: canonical field name to value. Value
// is string, float64, clock.Date, or nil.
type Row map[string]any

// Injected are the fields stamped onto every row regardless of the
// source spreadsheet.
type Injected struct {
	CostCenter   string
	StoreCode    string
	RunID        string
	RunDate      clock.Date
	SourceSystem string
}

// ParseResult is the outcome of parsing one workbook.
type ParseResult struct {
	Rows     []Row
	Warnings []string
}

// Parse reads data as an xlsx workbook, using the first non-empty sheet,
// locates the header row (among the first 10 rows, the one that maps
// the most of spec's known headers, provided it maps at least half of
// them), maps and coerces every subsequent row against
// spec, and stamps injected onto each surviving row.
//
// A row whose dedup-key column fails to coerce is dropped with a
// warning rather than failing the whole parse; a spec column marked
// Required that is entirely absent from the header row fails the whole
// parse with KindSchema.
func Parse(data []byte, spec ReportSpec, clk *clock.Clock, injected Injected) (ParseResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return ParseResult{}, pipelineerrors.New(pipelineerrors.KindParse, "workbook.Parse",
			"could not open xlsx data", err)
	}
	defer f.Close()

	sheet := firstNonEmptySheet(f)
	if sheet == "" {
		return ParseResult{}, pipelineerrors.New(pipelineerrors.KindSchema, "workbook.Parse",
			"workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return ParseResult{}, pipelineerrors.New(pipelineerrors.KindParse, "workbook.Parse",
			fmt.Sprintf("could not read sheet %q", sheet), err)
	}

	headerIdx, headerMap := locateHeader(rows, spec)
	if headerIdx < 0 {
		return ParseResult{}, pipelineerrors.New(pipelineerrors.KindSchema, "workbook.Parse",
			fmt.Sprintf("%s: no header row recognized", spec.Name), nil)
	}

	if missing := missingRequiredColumns(spec, headerMap); len(missing) > 0 {
		return ParseResult{}, pipelineerrors.New(pipelineerrors.KindSchema, "workbook.Parse",
			fmt.Sprintf("%s: missing required column(s): %s", spec.Name, strings.Join(missing, ", ")), nil)
	}

	result := ParseResult{}
	for _, raw := range rows[headerIdx+1:] {
		if allBlank(raw) {
			continue
		}
		row, warnings, drop := coerceRow(raw, spec, headerMap, clk)
		result.Warnings = append(result.Warnings, warnings...)
		if drop {
			continue
		}
		stampInjected(row, injected)
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

func firstNonEmptySheet(f *excelize.File) string {
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err == nil && len(rows) > 0 {
			return name
		}
	}
	return ""
}

// locateHeader scans the first handful of rows for the one that maps the
// largest number of spec's known headers, requiring at least half of
// spec's columns to be recognized.
func locateHeader(rows [][]string, spec ReportSpec) (int, map[string]int) {
	const scanLimit = 10
	best, bestIdx, bestMap := -1, -1, map[string]int(nil)

	limit := scanLimit
	if limit > len(rows) {
		limit = len(rows)
	}

	for i := 0; i < limit; i++ {
		m := mapHeaders(rows[i], spec)
		if len(m) > best {
			best, bestIdx, bestMap = len(m), i, m
		}
	}

	if bestIdx < 0 || best*2 < len(spec.Columns) {
		return -1, nil
	}
	return bestIdx, bestMap
}

func mapHeaders(headerRow []string, spec ReportSpec) map[string]int {
	normalized := make(map[string]int, len(headerRow))
	for col, label := range headerRow {
		normalized[normalizeHeader(label)] = col
	}

	m := make(map[string]int)
	for _, col := range spec.Columns {
		for _, h := range col.Headers {
			if idx, ok := normalized[normalizeHeader(h)]; ok {
				m[col.Canonical] = idx
				break
			}
		}
	}
	return m
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(s)), " "))
}

func missingRequiredColumns(spec ReportSpec, headerMap map[string]int) []string {
	var missing []string
	for _, col := range spec.Columns {
		if col.Required {
			if _, ok := headerMap[col.Canonical]; !ok {
				missing = append(missing, col.Canonical)
			}
		}
	}
	return missing
}

func allBlank(raw []string) bool {
	for _, c := range raw {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellAt(raw []string, idx int) string {
	if idx < 0 || idx >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[idx])
}

// coerceRow converts one data row into a Row. drop is true if a
// dedup-key column could not be parsed.
func coerceRow(raw []string, spec ReportSpec, headerMap map[string]int, clk *clock.Clock) (Row, []string, bool) {
	row := Row{}
	var warnings []string

	for _, col := range spec.Columns {
		idx, ok := headerMap[col.Canonical]
		text := ""
		if ok {
			text = cellAt(raw, idx)
		}

		switch col.Kind {
		case FieldDate:
			if text == "" {
				if col.DedupKey {
					return nil, append(warnings, fmt.Sprintf("%s: empty dedup-key date, row dropped", col.Canonical)), true
				}
				row[col.Canonical] = nil
				continue
			}
			d, err := parseFlexibleDate(text, clk)
			if err != nil {
				if col.DedupKey {
					return nil, append(warnings, fmt.Sprintf("%s: unparseable dedup-key date %q, row dropped", col.Canonical, text)), true
				}
				row[col.Canonical] = nil
				warnings = append(warnings, fmt.Sprintf("%s: unparseable date %q, set null", col.Canonical, text))
				continue
			}
			row[col.Canonical] = d

		case FieldNumeric:
			n, err := parseNumeric(text)
			if err != nil {
				row[col.Canonical] = float64(0)
				if text != "" {
					warnings = append(warnings, fmt.Sprintf("%s: unparseable number %q, defaulted to 0", col.Canonical, text))
				}
				continue
			}
			row[col.Canonical] = n

		case FieldPhone:
			p, ok := parsePhone(text)
			if !ok {
				if col.DedupKey {
					return nil, append(warnings, fmt.Sprintf("%s: unparseable dedup-key phone %q, row dropped", col.Canonical, text)), true
				}
				row[col.Canonical] = nil
				if text != "" {
					warnings = append(warnings, fmt.Sprintf("%s: unparseable phone %q, set null", col.Canonical, text))
				}
				continue
			}
			row[col.Canonical] = p

		default:
			row[col.Canonical] = text
		}
	}

	return row, warnings, false
}

func stampInjected(row Row, injected Injected) {
	row["cost_center"] = injected.CostCenter
	row["store_code"] = injected.StoreCode
	row["run_id"] = injected.RunID
	row["run_date"] = injected.RunDate
	row["source_system"] = injected.SourceSystem
}

func parseNumeric(text string) (float64, error) {
	cleaned := strings.ReplaceAll(text, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.ParseFloat(cleaned, 64)
}

func parsePhone(text string) (string, bool) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "+91", "").Replace(text)
	if len(cleaned) > 10 && strings.HasPrefix(cleaned, "91") {
		cleaned = cleaned[len(cleaned)-10:]
	}
	if len(cleaned) != 10 {
		return "", false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return cleaned, true
}
