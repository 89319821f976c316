package core

// convert.go provides type conversion between normalized cell text and
// record fields.
//
// Import coercion handles the messy reality of user-provided spreadsheets:
//   - Numbers are parsed leniently: unparsable input becomes zero
//   - Integer fields accept integral floats ("12.0") as written by Excel
//   - Various boolean representations (yes/no, true/false, on/off, 1/0)
//   - Multiple date formats (ISO, US, EU, two-digit years)
//
// Strict targets (sql.Scanner, encoding.TextUnmarshaler, time.Time) report
// an error instead; callers treat that as a per-field failure.
//
// Export formatting is the inverse: every bound field renders to a string,
// with nil pointers and invalid nullable values rendering as "".

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// DateLayout comes first because it is what date cells normalize to.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		DateLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// assign stores a normalized cell value into the field dst points to.
// Empty values are skipped so the field keeps its zero value.
func assign(dst any, raw string) error {
	if raw == "" {
		return nil
	}

	switch p := dst.(type) {
	case *any:
		*p = raw
	case *string:
		*p = raw
	case *int:
		*p = int(parseIntLenient(raw, strconv.IntSize))
	case *int8:
		*p = int8(parseIntLenient(raw, 8))
	case *int16:
		*p = int16(parseIntLenient(raw, 16))
	case *int32:
		*p = int32(parseIntLenient(raw, 32))
	case *int64:
		*p = parseIntLenient(raw, 64)
	case *uint:
		*p = uint(parseUintLenient(raw, strconv.IntSize))
	case *uint8:
		*p = uint8(parseUintLenient(raw, 8))
	case *uint16:
		*p = uint16(parseUintLenient(raw, 16))
	case *uint32:
		*p = uint32(parseUintLenient(raw, 32))
	case *uint64:
		*p = parseUintLenient(raw, 64)
	case *float32:
		*p = float32(parseFloatLenient(raw, 32))
	case *float64:
		*p = parseFloatLenient(raw, 64)
	case *Char:
		r, _ := utf8.DecodeRuneInString(raw)
		*p = Char(r)
	case *bool:
		*p = parseBoolLenient(raw)
	case *time.Time:
		t, err := ParseDate(raw)
		if err != nil {
			return err
		}
		*p = t
	case *pgtype.Date:
		t, err := ParseDate(raw)
		if err != nil {
			return err
		}
		*p = pgtype.Date{Time: t, Valid: true}
	case sql.Scanner:
		if err := p.Scan(raw); err != nil {
			return fmt.Errorf("scan %T: %w", dst, err)
		}
	case encoding.TextUnmarshaler:
		if err := p.UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("unmarshal %T: %w", dst, err)
		}
	default:
		return assignReflect(dst, raw)
	}
	return nil
}

// assignReflect covers named basic types and pointer fields.
func assignReflect(dst any, raw string) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: accessor returned %T, want a field pointer", ErrUnsupportedType, dst)
	}

	e := v.Elem()
	switch e.Kind() {
	case reflect.String:
		e.SetString(raw)
	case reflect.Bool:
		e.SetBool(parseBoolLenient(raw))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.SetInt(parseIntLenient(raw, e.Type().Bits()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.SetUint(parseUintLenient(raw, e.Type().Bits()))
	case reflect.Float32, reflect.Float64:
		e.SetFloat(parseFloatLenient(raw, e.Type().Bits()))
	case reflect.Pointer:
		// Nullable field: allocate, fill, then attach.
		n := reflect.New(e.Type().Elem())
		if err := assign(n.Interface(), raw); err != nil {
			return err
		}
		e.Set(n)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, e.Type())
	}
	return nil
}

// parseIntLenient parses an integer, accepting integral floats.
// Returns 0 for unparsable or out-of-range input.
func parseIntLenient(s string, bits int) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, bits); err == nil {
		return i
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0
	}
	limit := math.Ldexp(1, bits-1)
	if f < -limit || f >= limit {
		return 0
	}
	return int64(f)
}

// parseUintLenient is parseIntLenient for unsigned targets.
// Negative input returns 0.
func parseUintLenient(s string, bits int) uint64 {
	s = strings.TrimSpace(s)
	if u, err := strconv.ParseUint(s, 10, bits); err == nil {
		return u
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f >= math.Ldexp(1, bits) {
		return 0
	}
	return uint64(f)
}

// parseFloatLenient parses a float, returning 0 for unparsable input.
func parseFloatLenient(s string, bits int) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), bits)
	if err != nil {
		return 0
	}
	return f
}

// parseBoolLenient accepts true/t/yes/y/on/1 (case-insensitive).
// Everything else is false.
func parseBoolLenient(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "on", "1":
		return true
	default:
		return false
	}
}

// ParseDate converts a string to time.Time.
// Supports the normalized DateLayout, ISO and common regional formats,
// and handles 2-digit years with a pivot.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// formatValue renders the field ptr points to for export.
func formatValue(ptr any) string {
	v := reflect.ValueOf(ptr)
	if !v.IsValid() {
		return ""
	}
	if v.Kind() != reflect.Pointer {
		if s, ok := formatKnown(ptr); ok {
			return s
		}
		return fmt.Sprint(ptr)
	}
	if v.IsNil() {
		return ""
	}

	elem := v.Elem()
	switch elem.Kind() {
	case reflect.Pointer, reflect.Interface:
		return formatValue(elem.Interface())
	}
	if s, ok := formatKnown(elem.Interface()); ok {
		return s
	}

	// Pointer-receiver methods such as (*big.Rat).String.
	switch t := ptr.(type) {
	case fmt.Stringer:
		return t.String()
	case encoding.TextMarshaler:
		if b, err := t.MarshalText(); err == nil {
			return string(b)
		}
		return ""
	}

	return fmt.Sprint(elem.Interface())
}

// formatKnown renders values with a defined export representation.
func formatKnown(x any) (string, bool) {
	if v := reflect.ValueOf(x); v.Kind() == reflect.Pointer && v.IsNil() {
		return "", true
	}

	switch t := x.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case []byte:
		return string(t), true
	case bool:
		return strconv.FormatBool(t), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case Char:
		return t.String(), true
	case time.Time:
		if t.IsZero() {
			return "", true
		}
		return t.Format(DateLayout), true
	case driver.Valuer:
		val, err := t.Value()
		if err != nil || val == nil {
			return "", true
		}
		return formatValue(val), true
	case fmt.Stringer:
		return t.String(), true
	case encoding.TextMarshaler:
		b, err := t.MarshalText()
		if err != nil {
			return "", true
		}
		return string(b), true
	}
	return "", false
}
