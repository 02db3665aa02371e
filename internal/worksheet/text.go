package worksheet

// text.go normalizes the messy cell text found in spreadsheet exports:
//
//   - Full-width digits and compatibility characters (NFKC)
//   - Excel formula prefixes (="10")
//   - Placeholder values that mean "no value" (-, N/A, null)
//   - CP949 encoded CSV files saved by Korean Excel installs
//   - UTF-8 byte order marks

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// nullLike holds folded cell values treated as empty.
var nullLike = map[string]bool{
	"":          true,
	"-":         true,
	"null":      true,
	"nil":       true,
	"none":      true,
	"undefined": true,
	"n/a":       true,
	"na":        true,
	"nan":       true,
}

// Squash applies NFKC normalization, trims the string and collapses inner
// whitespace runs to a single space.
func Squash(s string) string {
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns the case-folded form of Squash(s), used for name matching.
func Fold(s string) string {
	// Casers are stateful; build one per call.
	return cases.Fold().String(Squash(s))
}

// CleanCell removes common export artifacts from a cell value:
// - Normalizes width and whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = Squash(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// IsNullLike reports whether a cleaned cell value should be treated as empty.
func IsNullLike(s string) bool {
	return nullLike[Fold(s)]
}

// decodeText converts raw file bytes to valid UTF-8.
// A leading BOM is dropped. Bytes that are not UTF-8 are decoded as CP949,
// and anything still invalid is replaced with U+FFFD.
func decodeText(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}

	if decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data); err == nil && utf8.Valid(decoded) {
		return decoded
	}

	return sanitizeUTF8(data)
}

func sanitizeUTF8(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.WriteRune(r)
		}
		data = data[size:]
	}

	return buf.Bytes()
}
