package core

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	// DefaultSheet is the sheet name used for every exported workbook.
	DefaultSheet = "Sheet1"

	// ErrorResult is the normalized value of a cell holding a spreadsheet error.
	ErrorResult = "ERROR"

	// DateLayout is how date-formatted numeric cells are rendered on import
	// and how time.Time fields are rendered on export.
	DateLayout = "2006-01-02 15:04:05"
)

var (
	// ErrNoFile is returned when no filename or stream was supplied.
	ErrNoFile = errors.New("no file provided")

	// ErrUnsupportedFormat is returned for files that are neither .xls nor .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file type: expected .xls or .xlsx")

	// ErrNoSheet is returned when a workbook contains no worksheet.
	ErrNoSheet = errors.New("workbook has no sheets")

	// ErrUnknownType is returned when no binding is registered for a record type.
	ErrUnknownType = errors.New("unknown record type")

	// ErrUnknownField is returned when a field key is not bound on a record type.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnsupportedType is returned when a field's Go type has no coercion rule.
	ErrUnsupportedType = errors.New("unsupported field type")
)

// Char is a single-character field. The first rune of a cell is stored.
type Char rune

// String renders the character, or an empty string for the zero value.
func (c Char) String() string {
	if c == 0 {
		return ""
	}
	return string(rune(c))
}

// MarshalText encodes the character as a one-rune string.
func (c Char) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText keeps the first rune of text.
func (c *Char) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*c = 0
		return nil
	}
	r, _ := utf8.DecodeRune(text)
	*c = Char(r)
	return nil
}

// Accessor returns a pointer to one field of a record.
// The same pointer is written on import and read on export.
type Accessor[T any] func(*T) any

// Column describes one bound field of a record type.
type Column struct {
	Key   string // Stable field selector, usually the Go field name
	Label string // Header text the column binds to (unique per type)
	Order int    // Export position; 0 means import-only
}

// Exported reports whether the column is written on export.
func (c Column) Exported() bool {
	return c.Order > 0
}

// TypeInfo contains display information about a registered record type.
type TypeInfo struct {
	Key           string   `json:"key"`           // Unique identifier: "customers"
	Group         string   `json:"group"`         // Grouping for listings: "Sales"
	Label         string   `json:"label"`         // Display name: "Customers"
	Headers       []string `json:"headers"`       // Importable labels in declaration order
	ExportHeaders []string `json:"exportHeaders"` // Exported labels in export order
}

// FieldError records a value that could not be coerced into its field.
// The field keeps its zero value and the row is still processed.
type FieldError struct {
	Row    int    `json:"row"`    // 0-based physical row index
	Field  string `json:"field"`  // Column key
	Value  string `json:"value"`  // Normalized cell value
	Reason string `json:"reason"` // Err rendered for transport
	Err    error  `json:"-"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("row %d field %s value %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// ImportResult contains the outcome of reading one workbook.
type ImportResult[T any] struct {
	Records     []T          `json:"records"`     // Populated records in row order, blank rows excluded
	RowsRead    int          `json:"rowsRead"`    // Present data rows examined (header excluded)
	BlankRows   []int        `json:"blankRows"`   // 0-based indexes of rows dropped as blank
	FieldErrors []FieldError `json:"fieldErrors"` // Per-field coercion failures
	Headers     []string     `json:"headers"`     // Registered labels found in the header row
	Missing     []string     `json:"missing"`     // Registered labels absent from the header row
}

// RawRow is one row of untyped export data.
type RawRow struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}
