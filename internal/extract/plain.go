package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain returns content as a string. A UTF-8 byte order mark is dropped, invalid
// UTF-8 sequences are replaced with the replacement character, and CRLF becomes LF.
func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return strings.ReplaceAll(string(content), "\r\n", "\n"), nil
}
