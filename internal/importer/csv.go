// Package importer turns bank CSV exports into transactions ready to store.
package importer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pocketbook/internal/core"
)

var (
	ErrNoHeader       = errors.New("csv has no header row")
	ErrColumnsMissing = errors.New("could not detect date, description and amount columns")
)

var (
	dateHeader   = regexp.MustCompile(`(?i)date|posted|trans`)
	descHeader   = regexp.MustCompile(`(?i)desc|memo|payee|merchant|name`)
	amountHeader = regexp.MustCompile(`(?i)amount|debit|credit|sum`)
)

// Rows matching any of these are stored ignored. Amazon orders are itemized
// separately and the rest are transfers or bank fees.
var defaultIgnorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)AMAZON`),
	regexp.MustCompile(`(?i)mobile payment`),
	regexp.MustCompile(`(?i)mobile banking payment`),
	regexp.MustCompile(`(?i)mobile banking transfer`),
	regexp.MustCompile(`(?i)monthly maintenance fee`),
}

// Columns holds the detected column indexes.
type Columns struct {
	Date        int
	Description int
	Amount      int
}

// Row is one parsed CSV record.
type Row struct {
	Line        int
	ExternalID  string
	Date        core.Date
	Description string
	Amount      core.Money
	Ignored     bool
}

// Transaction converts the row into a new, uncategorized transaction.
func (r Row) Transaction() core.Transaction {
	return core.Transaction{
		ExternalID:  r.ExternalID,
		Date:        r.Date,
		Description: r.Description,
		Amount:      r.Amount,
		Ignored:     r.Ignored,
	}
}

// File is the result of parsing one upload.
type File struct {
	Hash    string
	Columns Columns
	Rows    []Row
	// Errors lists rows that were skipped, one per line.
	Errors []error
}

// DetectColumns picks the first header matching each column pattern. A
// header is used for at most one column.
func DetectColumns(header []string) (Columns, error) {
	used := make(map[int]bool)
	find := func(re *regexp.Regexp) int {
		for i, h := range header {
			if !used[i] && re.MatchString(strings.TrimSpace(h)) {
				used[i] = true
				return i
			}
		}
		return -1
	}
	cols := Columns{Date: find(dateHeader), Description: find(descHeader), Amount: find(amountHeader)}
	if cols.Date < 0 || cols.Description < 0 || cols.Amount < 0 {
		return cols, fmt.Errorf("%w: header %q", ErrColumnsMissing, header)
	}
	return cols, nil
}

// Parse reads a whole CSV export. The header row is required; rows with an
// empty field, an unparsable date or an unparsable amount are reported in
// File.Errors and skipped.
func Parse(r io.Reader) (File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, fmt.Errorf("read csv: %w", err)
	}
	f := File{Hash: Hash(data)}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return f, ErrNoHeader
	}
	if err != nil {
		return f, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	f.Columns, err = DetectColumns(header)
	if err != nil {
		return f, err
	}

	line := 1
	for {
		line++
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Errors = append(f.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if blank(rec) {
			continue
		}
		row, err := parseRow(rec, f.Columns)
		if err != nil {
			f.Errors = append(f.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		row.Line = line
		f.Rows = append(f.Rows, row)
	}
	return f, nil
}

func parseRow(rec []string, cols Columns) (Row, error) {
	field := func(i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	dateStr, desc, amountStr := field(cols.Date), field(cols.Description), field(cols.Amount)
	if dateStr == "" || desc == "" || amountStr == "" {
		return Row{}, errors.New("missing date, description or amount")
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		return Row{}, err
	}
	amount, err := core.ParseAmount(amountStr)
	if err != nil {
		return Row{}, fmt.Errorf("amount %q: %w", amountStr, err)
	}
	return Row{
		ExternalID:  DedupKey(date, desc, amount),
		Date:        date,
		Description: desc,
		Amount:      amount,
		Ignored:     ShouldIgnore(desc),
	}, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// DedupKey is the external id of an imported row:
// date, the first 30 characters of the description and the amount.
func DedupKey(date core.Date, desc string, amount core.Money) string {
	return date.String() + "_" + truncate(desc, 30) + "_" + amount.String()
}

// ManualKey is the external id of a manually entered transaction. The
// timestamp keeps two identical entries apart.
func ManualKey(date core.Date, payee string, amount core.Money, at time.Time) string {
	return DedupKey(date, payee, amount) + "_" + strconv.FormatInt(at.UnixMilli(), 10)
}

// ShouldIgnore reports whether an imported row is stored ignored.
func ShouldIgnore(desc string) bool {
	for _, re := range defaultIgnorePatterns {
		if re.MatchString(desc) {
			return true
		}
	}
	return false
}

// Hash is the hex SHA-256 of the uploaded bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
