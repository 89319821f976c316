package biff

import (
	"strconv"
	"strings"
)

// funcSpec names a built-in worksheet function. argc is -1 for functions
// that take a variable number of arguments.
type funcSpec struct {
	name string
	argc int
}

// functions maps the built-in function index (Ftab) to its name.
var functions = map[uint16]funcSpec{
	0: {"COUNT", -1}, 1: {"IF", -1}, 2: {"ISNA", 1}, 3: {"ISERROR", 1},
	4: {"SUM", -1}, 5: {"AVERAGE", -1}, 6: {"MIN", -1}, 7: {"MAX", -1},
	8: {"ROW", -1}, 9: {"COLUMN", -1}, 10: {"NA", 0}, 11: {"NPV", -1},
	12: {"STDEV", -1}, 13: {"DOLLAR", -1}, 14: {"FIXED", -1}, 15: {"SIN", 1},
	16: {"COS", 1}, 17: {"TAN", 1}, 18: {"ATAN", 1}, 19: {"PI", 0},
	20: {"SQRT", 1}, 21: {"EXP", 1}, 22: {"LN", 1}, 23: {"LOG10", 1},
	24: {"ABS", 1}, 25: {"INT", 1}, 26: {"SIGN", 1}, 27: {"ROUND", 2},
	28: {"LOOKUP", -1}, 29: {"INDEX", -1}, 30: {"REPT", 2}, 31: {"MID", 3},
	32: {"LEN", 1}, 33: {"VALUE", 1}, 34: {"TRUE", 0}, 35: {"FALSE", 0},
	36: {"AND", -1}, 37: {"OR", -1}, 38: {"NOT", 1}, 39: {"MOD", 2},
	48: {"TEXT", 2}, 63: {"RAND", 0}, 65: {"DATE", 3}, 66: {"TIME", 3},
	67: {"DAY", 1}, 68: {"MONTH", 1}, 69: {"YEAR", 1}, 70: {"WEEKDAY", -1},
	74: {"NOW", 0}, 76: {"ROWS", 1}, 77: {"COLUMNS", 1}, 78: {"OFFSET", -1},
	82: {"SEARCH", -1}, 97: {"ATAN2", 2}, 98: {"ASIN", 1}, 99: {"ACOS", 1},
	100: {"CHOOSE", -1}, 101: {"HLOOKUP", -1}, 102: {"VLOOKUP", -1},
	109: {"LOG", -1}, 111: {"CHAR", 1}, 112: {"LOWER", 1}, 113: {"UPPER", 1},
	114: {"PROPER", 1}, 115: {"LEFT", -1}, 116: {"RIGHT", -1}, 117: {"EXACT", 2},
	118: {"TRIM", 1}, 119: {"REPLACE", 4}, 120: {"SUBSTITUTE", -1},
	124: {"FIND", -1}, 126: {"ISERR", 1}, 127: {"ISTEXT", 1},
	128: {"ISNUMBER", 1}, 129: {"ISBLANK", 1}, 130: {"T", 1}, 131: {"N", 1},
	140: {"DATEVALUE", 1}, 141: {"TIMEVALUE", 1}, 169: {"COUNTA", -1},
	183: {"PRODUCT", -1}, 184: {"FACT", 1}, 197: {"TRUNC", -1},
	212: {"ROUNDUP", 2}, 213: {"ROUNDDOWN", 2}, 221: {"TODAY", 0},
	227: {"MEDIAN", -1}, 228: {"SUMPRODUCT", -1}, 285: {"FLOOR", 2},
	288: {"CEILING", 2}, 336: {"CONCATENATE", -1}, 337: {"POWER", 2},
	342: {"RADIANS", 1}, 343: {"DEGREES", 1}, 344: {"SUBTOTAL", -1},
	345: {"SUMIF", -1}, 346: {"COUNTIF", 2}, 347: {"COUNTBLANK", 1},
}

var binaryOps = map[uint8]string{
	0x03: "+", 0x04: "-", 0x05: "*", 0x06: "/", 0x07: "^", 0x08: "&",
	0x09: "<", 0x0A: "<=", 0x0B: "=", 0x0C: ">=", 0x0D: ">", 0x0E: "<>",
	0x0F: " ", 0x10: ",", 0x11: ":",
}

// ErrorText returns the worksheet spelling of an Excel error code.
func ErrorText(code uint8) string {
	switch code {
	case 0x00:
		return "#NULL!"
	case 0x07:
		return "#DIV/0!"
	case 0x0F:
		return "#VALUE!"
	case 0x17:
		return "#REF!"
	case 0x1D:
		return "#NAME?"
	case 0x24:
		return "#NUM!"
	case 0x2A:
		return "#N/A"
	}
	return "#ERR" + strconv.Itoa(int(code)) + "!"
}

// renderFormula turns a parsed-expression token stream back into formula
// text. ok is false when the stream references something outside the
// record, such as a shared formula, a defined name or another sheet.
func renderFormula(tokens []byte) (string, bool) {
	c := cursor{b: tokens}
	var stack []string

	pop := func(n int) ([]string, bool) {
		if n > len(stack) {
			return nil, false
		}
		args := append([]string(nil), stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return args, true
	}

	for c.remaining() > 0 {
		ptg := c.u8()
		if op, isBinary := binaryOps[ptg]; isBinary {
			args, ok := pop(2)
			if !ok {
				return "", false
			}
			stack = append(stack, args[0]+op+args[1])
			continue
		}

		switch ptg {
		case 0x12, 0x13: // unary plus, minus
			args, ok := pop(1)
			if !ok {
				return "", false
			}
			sign := "+"
			if ptg == 0x13 {
				sign = "-"
			}
			stack = append(stack, sign+args[0])
		case 0x14: // percent
			args, ok := pop(1)
			if !ok {
				return "", false
			}
			stack = append(stack, args[0]+"%")
		case 0x15: // parentheses
			args, ok := pop(1)
			if !ok {
				return "", false
			}
			stack = append(stack, "("+args[0]+")")
		case 0x16: // missing argument
			stack = append(stack, "")
		case 0x17:
			s := c.unicodeString8()
			stack = append(stack, `"`+strings.ReplaceAll(s, `"`, `""`)+`"`)
		case 0x19:
			flags := c.u8()
			data := c.u16()
			switch {
			case flags&0x04 != 0: // choose jump table
				c.skip(2 * (int(data) + 1))
			case flags&0x10 != 0: // SUM of a single argument
				args, ok := pop(1)
				if !ok {
					return "", false
				}
				stack = append(stack, "SUM("+args[0]+")")
			}
		case 0x1C:
			stack = append(stack, ErrorText(c.u8()))
		case 0x1D:
			if c.u8() != 0 {
				stack = append(stack, "TRUE")
			} else {
				stack = append(stack, "FALSE")
			}
		case 0x1E:
			stack = append(stack, strconv.Itoa(int(c.u16())))
		case 0x1F:
			stack = append(stack, strconv.FormatFloat(c.f64(), 'f', -1, 64))
		default:
			if ptg < 0x20 {
				return "", false
			}
			base := ptg&0x9F | 0x20
			switch base {
			case 0x26, 0x27, 0x28: // memory wrappers around the tokens that follow
				c.skip(6)
				continue
			case 0x29:
				c.skip(2)
				continue
			}
			text, args, ok := operand(&c, base)
			if !ok {
				return "", false
			}
			if args < 0 {
				stack = append(stack, text)
				continue
			}
			params, ok := pop(args)
			if !ok {
				return "", false
			}
			stack = append(stack, text+"("+strings.Join(params, ",")+")")
		}
		if c.short {
			return "", false
		}
	}

	if c.short || len(stack) != 1 {
		return "", false
	}
	return stack[0], true
}

// operand decodes a classed token, folded to its reference class. For
// function calls it returns the name and the argument count; for plain
// operands args is -1.
func operand(c *cursor, ptg uint8) (text string, args int, ok bool) {
	switch ptg {
	case 0x21: // fixed-arity function
		f, known := functions[c.u16()]
		if !known || f.argc < 0 {
			return "", 0, false
		}
		return f.name, f.argc, true
	case 0x22: // variable-arity function
		argc := int(c.u8() & 0x7F)
		id := c.u16()
		f, known := functions[id&0x7FFF]
		if !known || id&0x8000 != 0 {
			return "", 0, false
		}
		return f.name, argc, true
	case 0x24:
		row, col := c.u16(), c.u16()
		return cellRef(row, col), -1, true
	case 0x25:
		r1, r2, c1, c2 := c.u16(), c.u16(), c.u16(), c.u16()
		return cellRef(r1, c1) + ":" + cellRef(r2, c2), -1, true
	case 0x2A:
		c.skip(4)
		return "#REF!", -1, true
	case 0x2B:
		c.skip(8)
		return "#REF!", -1, true
	}
	return "", 0, false
}

// cellRef renders a BIFF8 cell reference. Bits 14 and 15 of the column
// word mark a relative column and a relative row.
func cellRef(row, col uint16) string {
	var b strings.Builder
	if col&0x4000 == 0 {
		b.WriteByte('$')
	}
	b.WriteString(columnName(int(col & 0x3FFF)))
	if col&0x8000 == 0 {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(int(row) + 1))
	return b.String()
}

// columnName converts a 0-based column index to its letters.
func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
