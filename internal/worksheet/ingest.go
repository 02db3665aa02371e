package worksheet

import (
	"regexp"
	"strings"
)

// HeaderScanWindow is the number of leading rows searched for the first
// data row.
const HeaderScanWindow = 10

// defaultDataStart is used when no row in the scan window qualifies.
const defaultDataStart = 1

// numericKeyRegex matches process identifiers such as "10", "10.1", "20-3", "30A".
var numericKeyRegex = regexp.MustCompile(`^[0-9]+([.\-_][0-9A-Za-z]+)*[A-Za-z]?$`)

// headerKeywords mark a header row; the first data row follows it.
var headerKeywords = []string{"number", "no", "process", "번호", "공정", "name", "scope", "구분"}

// nameKeywords mark a header whose key column holds process names.
var nameKeywords = []string{"name", "공정명"}

// KeyKind tells what the first column of a sheet holds.
type KeyKind int

const (
	KeyNumber KeyKind = iota // process number (or scope name for productScope)
	KeyName                  // process name
)

func (k KeyKind) String() string {
	if k == KeyName {
		return "name"
	}
	return "number"
}

// Sheet is one labeled raw row/column matrix as produced by a workbook reader.
type Sheet struct {
	Name string
	Rows [][]string
}

// Pair is one (key, value) emission. Row is the 0-based source row index.
type Pair struct {
	Row   int
	Key   string
	Value string
}

// SheetPairs is the ordered output of ingesting one sheet.
type SheetPairs struct {
	Sheet     string
	Spec      SheetSpec
	KeyKind   KeyKind
	DataStart int
	Pairs     []Pair
}

// Records converts the pairs into attribute records, preserving order.
func (p SheetPairs) Records() []RawAttributeRecord {
	out := make([]RawAttributeRecord, 0, len(p.Pairs))
	for _, pair := range p.Pairs {
		if p.KeyKind == KeyName {
			out = append(out, NewRecord("", pair.Key, p.Spec.Slot, pair.Value))
		} else {
			out = append(out, NewRecord(pair.Key, "", p.Spec.Slot, pair.Value))
		}
	}
	return out
}

// SheetSummary reports what happened to one processed sheet.
type SheetSummary struct {
	Sheet     string `json:"sheet"`
	Code      string `json:"code"`
	KeyKind   string `json:"keyKind"`
	DataStart int    `json:"dataStart"`
	Pairs     int    `json:"pairs"`
}

// IngestReport summarizes a workbook ingestion.
type IngestReport struct {
	Processed []SheetSummary `json:"processed"`
	Skipped   []string       `json:"skipped,omitempty"`
	Records   int            `json:"records"`
}

// Ingestor turns labeled sheets into ordered (key, value) pairs.
// It knows the sheet vocabulary but nothing about process semantics.
type Ingestor struct {
	vocab  *Vocabulary
	window int
}

// NewIngestor creates an ingestor over a vocabulary.
// A nil vocabulary uses DefaultVocabulary.
func NewIngestor(vocab *Vocabulary) *Ingestor {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Ingestor{vocab: vocab, window: HeaderScanWindow}
}

// Vocabulary returns the ingestor's sheet vocabulary.
func (in *Ingestor) Vocabulary() *Vocabulary {
	return in.vocab
}

// Ingest processes one sheet. ok is false when the sheet name is not in the
// vocabulary; that is not an error.
func (in *Ingestor) Ingest(sheet Sheet) (result SheetPairs, ok bool) {
	spec, ok := in.vocab.Lookup(sheet.Name)
	if !ok {
		return SheetPairs{}, false
	}

	result = SheetPairs{Sheet: sheet.Name, Spec: spec}
	if len(sheet.Rows) == 0 {
		return result, true
	}

	start, kind := findDataStart(sheet.Rows, in.window)
	result.DataStart = start
	result.KeyKind = kind

	identity := spec.Slot.IsIdentity()
	for i := start; i < len(sheet.Rows); i++ {
		row := sheet.Rows[i]
		if len(row) == 0 {
			continue
		}
		key := CleanCell(row[0])
		if IsNullLike(key) {
			continue
		}

		emitted := false
		for _, cell := range row[1:] {
			value := CleanCell(cell)
			if IsNullLike(value) {
				continue
			}
			result.Pairs = append(result.Pairs, Pair{Row: i, Key: key, Value: value})
			emitted = true
		}

		// A bare key on an identity sheet still declares the entity.
		if !emitted && identity {
			result.Pairs = append(result.Pairs, Pair{Row: i, Key: key, Value: key})
		}
	}

	return result, true
}

// IngestWorkbook ingests every sheet in workbook order and returns the
// concatenated records.
func (in *Ingestor) IngestWorkbook(wb Workbook) ([]RawAttributeRecord, IngestReport) {
	var (
		records []RawAttributeRecord
		report  IngestReport
	)

	for _, sheet := range wb.Sheets {
		pairs, ok := in.Ingest(sheet)
		if !ok {
			report.Skipped = append(report.Skipped, sheet.Name)
			continue
		}
		records = append(records, pairs.Records()...)
		report.Processed = append(report.Processed, SheetSummary{
			Sheet:     sheet.Name,
			Code:      pairs.Spec.Code(),
			KeyKind:   pairs.KeyKind.String(),
			DataStart: pairs.DataStart,
			Pairs:     len(pairs.Pairs),
		})
	}

	report.Records = len(records)
	return records, report
}

// findDataStart locates the first data row within the scan window.
// A row whose first cell looks like a process identifier is data; a row
// holding a header keyword makes the next row data.
func findDataStart(rows [][]string, window int) (int, KeyKind) {
	limit := window
	if len(rows) < limit {
		limit = len(rows)
	}

	for i := 0; i < limit; i++ {
		row := rows[i]
		if len(row) == 0 {
			continue
		}
		if numericKeyRegex.MatchString(CleanCell(row[0])) {
			return i, KeyNumber
		}
		if isHeaderRow(row) {
			return i + 1, headerKeyKind(row)
		}
	}

	return defaultDataStart, KeyNumber
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		if containsAny(Fold(cell), headerKeywords) {
			return true
		}
	}
	return false
}

func headerKeyKind(row []string) KeyKind {
	if containsAny(Fold(row[0]), nameKeywords) {
		return KeyName
	}
	return KeyNumber
}

// containsAny matches ASCII keywords as whole words and Hangul keywords
// as substrings.
func containsAny(cell string, keywords []string) bool {
	if cell == "" {
		return false
	}
	words := strings.FieldsFunc(cell, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r < 0x80
	})
	for _, kw := range keywords {
		if kw[0] >= 0x80 {
			if strings.Contains(cell, kw) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == kw {
				return true
			}
		}
	}
	return false
}
