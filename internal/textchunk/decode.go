package textchunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"
)

// PNGSignature is the eight byte PNG file header.
var PNGSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

const (
	// compressionDeflate is the only compression method defined for zTXt/iTXt.
	compressionDeflate = 0

	// maxInflated caps a single decompressed text chunk. Larger chunks are
	// dropped rather than truncated.
	maxInflated = 16 << 20
)

var errInflatedTooLarge = errors.New("decompressed text chunk exceeds limit")

// Decode extracts the text chunks of a PNG container. Data that is not a PNG
// yields an empty map. Chunks that are malformed, truncated or use an unknown
// compression method contribute nothing; the remaining chunks still decode.
// CRCs are not verified.
func Decode(data []byte) Map {
	var m Map
	if !bytes.HasPrefix(data, PNGSignature) {
		return m
	}

	pos := len(PNGSignature)
	for pos+8 <= len(data) {
		length := uint64(binary.BigEndian.Uint32(data[pos : pos+4]))
		chunkType := string(data[pos+4 : pos+8])
		start := uint64(pos + 8)
		end := start + length
		if end > uint64(len(data)) {
			// Declared length overruns the buffer; nothing after it can be framed.
			break
		}
		body := data[start:end]

		var (
			keyword, text string
			ok            bool
		)
		switch chunkType {
		case "tEXt":
			keyword, text, ok = decodeText(body)
		case "zTXt":
			keyword, text, ok = decodeCompressedText(body)
		case "iTXt":
			keyword, text, ok = decodeInternationalText(body)
		case "IEND":
			return m
		}
		if ok {
			m.Add(keyword, text)
		}

		// Skip the CRC; a missing trailing CRC ends the loop on the next check.
		pos = int(end) + 4
	}
	return m
}

// DecodeReader reads r fully and decodes it.
func DecodeReader(r io.Reader) (Map, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Map{}, err
	}
	return Decode(data), nil
}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, PNGSignature)
}

// decodeText handles tEXt: keyword NUL text, both latin1.
func decodeText(body []byte) (string, string, bool) {
	keyword, rest, ok := splitKeyword(body)
	if !ok {
		return "", "", false
	}
	return keyword, latin1(rest), true
}

// decodeCompressedText handles zTXt: keyword NUL method payload.
func decodeCompressedText(body []byte) (string, string, bool) {
	keyword, rest, ok := splitKeyword(body)
	if !ok || len(rest) < 1 {
		return "", "", false
	}
	if rest[0] != compressionDeflate {
		return "", "", false
	}
	raw, err := inflate(rest[1:])
	if err != nil {
		return "", "", false
	}
	return keyword, latin1(raw), true
}

// decodeInternationalText handles iTXt: keyword NUL flag method language NUL
// translated-keyword NUL text. The text is UTF-8.
func decodeInternationalText(body []byte) (string, string, bool) {
	keyword, rest, ok := splitKeyword(body)
	if !ok || len(rest) < 2 {
		return "", "", false
	}
	flag, method := rest[0], rest[1]
	rest = rest[2:]

	// Language tag.
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		return "", "", false
	}
	rest = rest[i+1:]

	// Translated keyword.
	i = bytes.IndexByte(rest, 0)
	if i < 0 {
		return "", "", false
	}
	payload := rest[i+1:]

	switch flag {
	case 0:
	case 1:
		if method != compressionDeflate {
			return "", "", false
		}
		raw, err := inflate(payload)
		if err != nil {
			return "", "", false
		}
		payload = raw
	default:
		return "", "", false
	}

	text := string(payload)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return keyword, text, true
}

// splitKeyword returns the latin1 keyword before the first NUL and the bytes after it.
func splitKeyword(body []byte) (string, []byte, bool) {
	i := bytes.IndexByte(body, 0)
	if i <= 0 {
		return "", nil, false
	}
	return latin1(body[:i]), body[i+1:], true
}

func inflate(p []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	raw, err := io.ReadAll(io.LimitReader(r, maxInflated+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxInflated {
		return nil, errInflatedTooLarge
	}
	return raw, nil
}

func latin1(b []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
