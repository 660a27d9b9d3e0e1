// Package csvformat infers the shape of a raw CSV bank export: delimiter,
// header presence, and a best-guess mapping from columns to logical fields.
package csvformat

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/ledgerline/statements/internal/domain"
)

// Candidate delimiters, checked in order.
var delimiters = []rune{',', ';', '\t', '|'}

// sampleLines is how many leading lines the delimiter check inspects.
const sampleLines = 10

// maxSampleRows is how many data rows Detect reports back for user-facing
// confirmation.
const maxSampleRows = 5

// Curated header keywords per logical field. Matching is on the lower-cased
// header, exact first, then substring.
var (
	dateKeywords = []string{
		"date", "datum", "data", "value date", "transaction date",
		"booking date", "buchungstag", "fecha", "posted",
	}
	descriptionKeywords = []string{
		"description", "reference", "memo", "libelle", "libellé",
		"bezeichnung", "narrative", "details", "payee", "merchant", "text",
	}
	amountKeywords = []string{
		"amount", "value", "betrag", "montant", "importe", "sum",
	}
	typeKeywords = []string{
		"type", "debit/credit", "d/c", "dc", "cr/dr", "direction",
	}
	currencyKeywords = []string{
		"currency", "ccy", "devise", "währung", "waehrung",
	}
	debitKeywords = []string{
		"debit", "withdrawal", "paid out", "money out",
	}
	creditKeywords = []string{
		"credit", "deposit", "paid in", "money in",
	}
)

// DetectDelimiter picks the delimiter that splits the first few lines into a
// consistent column count greater than one, preferring the highest count.
// Defaults to comma when no candidate passes the consistency check.
func DetectDelimiter(text string) rune {
	lines := leadingLines(text, sampleLines)
	if len(lines) == 0 {
		return ','
	}

	best := ','
	bestCols := 0
	for _, d := range delimiters {
		cols := splitCount(lines[0], d)
		if cols <= 1 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			if splitCount(line, d) != cols {
				consistent = false
				break
			}
		}
		if consistent && cols > bestCols {
			best = d
			bestCols = cols
		}
	}
	return best
}

// IsHeaderRow reports whether a row looks like labels rather than data:
// every cell, after stripping grouping punctuation, fails to parse as a
// number.
func IsHeaderRow(cells []string) bool {
	for _, cell := range cells {
		if looksNumeric(cell) {
			return false
		}
	}
	return true
}

// AutoMapColumns matches lower-cased headers against the curated keyword
// lists. Returns nil when no date column or no amount source is found. When
// no unified amount column exists, a detected debit column serves as the
// amount source. Description defaults to the second column if undetected.
func AutoMapColumns(headers []string) *domain.CSVColumnMapping {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	dateCol := matchColumn(lowered, dateKeywords)
	descCol := matchColumn(lowered, descriptionKeywords)
	amountCol := matchColumn(lowered, amountKeywords)
	typeCol := matchColumn(lowered, typeKeywords)
	currencyCol := matchColumn(lowered, currencyKeywords)

	if amountCol < 0 {
		// Fall back to separate debit/credit columns; the debit column is
		// the amount source.
		if debitCol := matchColumn(lowered, debitKeywords); debitCol >= 0 {
			amountCol = debitCol
		} else if creditCol := matchColumn(lowered, creditKeywords); creditCol >= 0 {
			amountCol = creditCol
		}
	}

	if dateCol < 0 || amountCol < 0 {
		return nil
	}
	if descCol < 0 && len(headers) > 1 {
		descCol = 1
	}
	if descCol < 0 {
		descCol = 0
	}

	mapping := &domain.CSVColumnMapping{
		Date:        dateCol,
		Description: descCol,
		Amount:      amountCol,
	}
	if typeCol >= 0 {
		mapping.Type = &typeCol
	}
	if currencyCol >= 0 {
		mapping.Currency = &currencyCol
	}
	return mapping
}

// Detect runs the full inference over raw file text: delimiter, rows, header
// decision, auto-mapping, and a handful of sample rows.
func Detect(text string) (*domain.CSVFormatInfo, error) {
	delimiter := DetectDelimiter(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, domain.NewParseError("unreadable CSV", err.Error())
	}
	if len(rows) == 0 {
		return nil, domain.NewParseError("empty file", "")
	}

	info := &domain.CSVFormatInfo{
		Delimiter:  string(delimiter),
		HasHeaders: IsHeaderRow(rows[0]),
	}

	dataRows := rows
	if info.HasHeaders {
		info.Headers = rows[0]
		info.Mapping = AutoMapColumns(rows[0])
		dataRows = rows[1:]
	}

	n := len(dataRows)
	if n > maxSampleRows {
		n = maxSampleRows
	}
	info.SampleRows = dataRows[:n]
	return info, nil
}

func leadingLines(text string, max int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == max {
			break
		}
	}
	return lines
}

func splitCount(line string, delimiter rune) int {
	return len(strings.Split(line, string(delimiter)))
}

// numericStripper removes grouping punctuation before the numeric check.
var numericStripper = strings.NewReplacer(
	",", "", ".", "", "-", "", "(", "", ")", "",
	"£", "", "$", "", "€", "", " ", "", " ", "",
)

func looksNumeric(cell string) bool {
	stripped := numericStripper.Replace(strings.TrimSpace(cell))
	if stripped == "" {
		return false
	}
	_, err := strconv.ParseFloat(stripped, 64)
	return err == nil
}

func matchColumn(lowered []string, keywords []string) int {
	for _, kw := range keywords {
		for i, h := range lowered {
			if h == kw {
				return i
			}
		}
	}
	for _, kw := range keywords {
		for i, h := range lowered {
			if h != "" && strings.Contains(h, kw) {
				return i
			}
		}
	}
	return -1
}
