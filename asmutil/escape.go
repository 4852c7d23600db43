package asmutil

import (
	"fmt"
	"strconv"
)

// DecodeEscapes converts a raw string-literal body (without its
// surrounding quotes) into its byte value, honoring the standard C
// escapes plus \xNN hex and \nnn octal (1-3 octal digits), as used by
// .string/.asciz decoding. Unknown escapes are preserved verbatim.
func DecodeEscapes(s string) []byte {
	result := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			consumed, b, ok := decodeEscapeAt(s, i)
			if ok {
				result = append(result, b...)
				i += consumed
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return result
}

// ParseEscapeChar parses a single escape sequence (starting with the
// backslash) and returns its byte value and the number of input
// characters consumed.
func ParseEscapeChar(escape string) (byte, int, error) {
	if len(escape) < 2 || escape[0] != '\\' {
		return 0, 0, fmt.Errorf("invalid escape sequence: %s", escape)
	}
	consumed, bytes, ok := decodeEscapeAt(escape, 0)
	if !ok {
		return 0, 0, fmt.Errorf("unknown escape sequence: %s", escape)
	}
	if len(bytes) != 1 {
		return 0, 0, fmt.Errorf("escape sequence must produce a single byte: %s", escape)
	}
	return bytes[0], consumed, nil
}

func decodeEscapeAt(s string, i int) (int, []byte, bool) {
	if i+1 >= len(s) || s[i] != '\\' {
		return 0, nil, false
	}
	switch s[i+1] {
	case 'n':
		return 2, []byte{'\n'}, true
	case 't':
		return 2, []byte{'\t'}, true
	case 'r':
		return 2, []byte{'\r'}, true
	case '\\':
		return 2, []byte{'\\'}, true
	case '"':
		return 2, []byte{'"'}, true
	case '\'':
		return 2, []byte{'\''}, true
	case 'a':
		return 2, []byte{'\a'}, true
	case 'b':
		return 2, []byte{'\b'}, true
	case 'f':
		return 2, []byte{'\f'}, true
	case 'v':
		return 2, []byte{'\v'}, true
	case 'x':
		if i+3 >= len(s) {
			return 0, nil, false
		}
		val, err := strconv.ParseUint(s[i+2:i+4], 16, 8)
		if err != nil {
			return 0, nil, false
		}
		return 4, []byte{byte(val)}, true
	case '0', '1', '2', '3', '4', '5', '6', '7':
		// Octal escape: \nnn, 1-3 octal digits.
		j := i + 1
		end := j
		for end < len(s) && end < j+3 && s[end] >= '0' && s[end] <= '7' {
			end++
		}
		val, err := strconv.ParseUint(s[j:end], 8, 8)
		if err != nil {
			return 0, nil, false
		}
		return 1 + (end - j), []byte{byte(val)}, true
	default:
		return 0, nil, false
	}
}
