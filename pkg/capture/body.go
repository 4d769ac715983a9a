package capture

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"
	"unicode/utf8"
)

// decodeText decodes a buffered response body to text, honoring the
// Content-Encoding header. Undecodable bodies yield "".
func decodeText(body []byte, encoding string) string {
	if len(body) == 0 {
		return ""
	}

	data := body
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return ""
		}
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return ""
		}
		data = decoded
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		decoded, err := io.ReadAll(r)
		if err != nil {
			return ""
		}
		data = decoded
	default:
		// br, zstd, multi-codings: not worth carrying decoders for.
		return ""
	}

	if !utf8.Valid(data) {
		return ""
	}
	return string(data)
}
