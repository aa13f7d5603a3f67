package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a string with CRLF normalized. Invalid UTF-8 becomes U+FFFD.
func extractPlain(content []byte) string {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}
