package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/shopspring/decimal"
)

const DefaultDateFormat = "%Y-%m-%d"

// ImportOptions describes the layout of a bank export. Column indices are
// zero based.
type ImportOptions struct {
	ValueColumn       int
	DateColumn        int
	DescriptionColumn int
	SkipRows          int
	Delimiter         rune
	Thousands         string
	Decimal           string
	DateFormat        string
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Decimal == "" {
		o.Decimal = "."
	}
	if o.DateFormat == "" {
		o.DateFormat = DefaultDateFormat
	}
	return o
}

// ImportedRow is one parsed line of an export. It has no sources or
// receiver yet; Link turns it into a Transaction. Value keeps the sign found
// in the file.
type ImportedRow struct {
	Line        int             `json:"line"`
	Value       decimal.Decimal `json:"value"`
	Date        Date            `json:"date"`
	Description string          `json:"description"`
}

// ImportCSV parses every row of r after SkipRows. The first malformed row
// aborts the import with an error wrapping ErrImport.
func ImportCSV(r io.Reader, opts ImportOptions) ([]ImportedRow, error) {
	opts = opts.withDefaults()
	layout, err := strftime.Layout(opts.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: date format %q: %w", ErrImport, opts.DateFormat, err)
	}
	if opts.ValueColumn < 0 || opts.DateColumn < 0 || opts.DescriptionColumn < 0 {
		return nil, fmt.Errorf("%w: negative column index", ErrImport)
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows []ImportedRow
	for line := 1; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrImport, line, err)
		}
		if line <= opts.SkipRows {
			continue
		}
		row, err := parseRow(fields, opts, layout)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrImport, line, err)
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(fields []string, opts ImportOptions, layout string) (ImportedRow, error) {
	need := max(opts.ValueColumn, opts.DateColumn, opts.DescriptionColumn)
	if len(fields) <= need {
		return ImportedRow{}, fmt.Errorf("expected at least %d columns, got %d", need+1, len(fields))
	}

	raw := strings.TrimSpace(fields[opts.ValueColumn])
	if opts.Thousands != "" {
		raw = strings.ReplaceAll(raw, opts.Thousands, "")
	}
	raw = strings.ReplaceAll(raw, opts.Decimal, ".")
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return ImportedRow{}, fmt.Errorf("value %q: %w", fields[opts.ValueColumn], err)
	}

	when, err := time.Parse(layout, strings.TrimSpace(fields[opts.DateColumn]))
	if err != nil {
		return ImportedRow{}, fmt.Errorf("date %q: %w", fields[opts.DateColumn], err)
	}

	return ImportedRow{
		Value:       value,
		Date:        DateOf(when),
		Description: strings.TrimSpace(fields[opts.DescriptionColumn]),
	}, nil
}

// Link builds a transaction from the row. The usual Transaction validation
// applies.
func (r ImportedRow) Link(sources, receiver IDSet, tags ...string) (*Transaction, error) {
	return NewTransaction(r.Value, r.Description, sources, receiver,
		WithDate(r.Date), WithTags(tags...))
}

// LinkAll links every row with the same sources and receiver.
func LinkAll(rows []ImportedRow, sources, receiver IDSet, tags ...string) (*Transactions, error) {
	reg := &Transactions{items: make([]*Transaction, 0, len(rows))}
	for _, row := range rows {
		t, err := row.Link(sources, receiver, tags...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", row.Line, err)
		}
		reg.items = append(reg.items, t)
	}
	return reg, nil
}
