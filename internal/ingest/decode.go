package ingest

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"log"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// compressionHints are content-type fragments OCS agents use for
// compressed bodies (application/x-compress, application/x-compress-zlib).
var compressionHints = []string{"compress", "zlib", "gzip"}

var xmlEncodingDecl = regexp.MustCompile(`^\x{FEFF}?\s*<\?xml[^>]*\bencoding\s*=\s*["']([A-Za-z0-9._:-]+)["']`)

// DecodeBody turns a raw request body into trimmed UTF-8 text. It never
// fails: an undecompressable body is used as-is and invalid byte sequences
// are replaced.
func DecodeBody(body []byte, contentType string) string {
	if isCompressed(contentType) {
		if out, err := decompress(body); err == nil {
			body = out
		} else {
			log.Printf("⚠️  Decompression failed (%s), treating body as plain text: %v", contentType, err)
		}
	}
	return strings.TrimSpace(toUTF8(body))
}

func isCompressed(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, hint := range compressionHints {
		if strings.Contains(ct, hint) {
			return true
		}
	}
	return false
}

// decompress tries a zlib stream first and falls back to gzip framing.
func decompress(body []byte) ([]byte, error) {
	zr, zerr := zlib.NewReader(bytes.NewReader(body))
	if zerr == nil {
		out, err := io.ReadAll(zr)
		zr.Close()
		if err == nil {
			return out, nil
		}
		zerr = err
	}

	gr, gerr := gzip.NewReader(bytes.NewReader(body))
	if gerr != nil {
		return nil, zerr
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// toUTF8 honours a non-UTF-8 encoding declared in the XML prolog and
// otherwise decodes as UTF-8, dropping a byte order mark and replacing
// invalid sequences with U+FFFD.
func toUTF8(body []byte) string {
	dec := unicode.UTF8BOM.NewDecoder()
	if m := xmlEncodingDecl.FindSubmatch(body); m != nil {
		if enc, err := htmlindex.Get(string(m[1])); err == nil && !isUTF8(enc) {
			dec = enc.NewDecoder()
		}
	}
	out, err := dec.Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), "�")
	}
	return string(out)
}

func isUTF8(enc encoding.Encoding) bool {
	name, err := htmlindex.Name(enc)
	return err == nil && name == "utf-8"
}
