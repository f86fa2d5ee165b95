package payjoin

import (
	"io"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"
)

// ContentTypeV1 is the BIP-78 wire content type a v1 request's Content-Type header must equal.
const ContentTypeV1 = "text/plain"

// DefaultMaxContentLength is the request-body size ceiling ParseRequest applies when its
// maxContentLength argument is zero or negative; any positive argument replaces it, higher or lower.
const DefaultMaxContentLength = 64 * 1024

// ParseRequest validates and reads a v1 Payjoin HTTP-ish request (the abstract method/headers/body
// triple spec.md section 4.1 describes) and returns the raw payload — still in the
// "<base64-PSBT>\n<query>" wire format ParsePayload expects.
func ParseRequest(contentType string, contentLength int64, body io.Reader, maxContentLength int64) ([]byte, error) {
	if len(contentType) == 0 {
		return nil, errOriginalPSBTRejected(errors.New("missing Content-Type header"))
	}
	if contentType != ContentTypeV1 {
		return nil, errOriginalPSBTRejected(errors.Errorf("invalid Content-Type %q", contentType))
	}

	if contentLength < 0 {
		return nil, errOriginalPSBTRejected(errors.New("missing Content-Length header"))
	}

	if maxContentLength <= 0 {
		maxContentLength = DefaultMaxContentLength
	}
	if contentLength > maxContentLength {
		return nil, errOriginalPSBTRejected(errors.Errorf("content length %d exceeds limit %d",
			contentLength, maxContentLength))
	}

	limited := io.LimitReader(body, contentLength)
	data, err := ioutil.ReadAll(limited)
	if err != nil {
		return nil, errOriginalPSBTRejected(errors.Wrap(err, "read body"))
	}

	return data, nil
}

// ParsePayload splits the wire payload into its base64-PSBT and query portions. Per design note
// 9, the payload is split on the first newline; a payload with no newline is treated as base64
// with an empty query rather than an error — preserved deliberately, not "fixed".
func ParsePayload(raw []byte) (psbtBase64 string, query string) {
	s := string(raw)

	idx := strings.IndexByte(s, '\n')
	if idx < 0 {
		return s, ""
	}

	psbtBase64 = s[:idx]
	query = strings.TrimRight(s[idx+1:], "\x00")
	return psbtBase64, query
}
