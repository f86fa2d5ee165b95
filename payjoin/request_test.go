package payjoin

import (
	"strings"
	"testing"
)

func TestParseRequest_AcceptsValidRequest(t *testing.T) {
	body := "aGVsbG8=\npj=https://example.com"
	data, err := ParseRequest(ContentTypeV1, int64(len(body)), strings.NewReader(body), 0)
	if err != nil {
		t.Fatalf("parse request: %s", err)
	}
	if string(data) != body {
		t.Errorf("got %q, want %q", string(data), body)
	}
}

func TestParseRequest_RejectsWrongContentType(t *testing.T) {
	_, err := ParseRequest("application/json", 5, strings.NewReader("hello"), 0)
	if err == nil {
		t.Fatal("expected error for wrong content type")
	}
}

func TestParseRequest_RejectsOversizedBody(t *testing.T) {
	_, err := ParseRequest(ContentTypeV1, 100, strings.NewReader("hello"), 10)
	if err == nil {
		t.Fatal("expected error for content length over the limit")
	}
}

func TestParseRequest_RejectsNegativeContentLength(t *testing.T) {
	_, err := ParseRequest(ContentTypeV1, -1, strings.NewReader("hello"), 0)
	if err == nil {
		t.Fatal("expected error for missing content length")
	}
}

func TestParsePayload_SplitsOnFirstNewline(t *testing.T) {
	psbtB64, query := ParsePayload([]byte("aGVsbG8=\npj=https://example.com&v=1"))
	if psbtB64 != "aGVsbG8=" {
		t.Errorf("got psbt %q, want aGVsbG8=", psbtB64)
	}
	if query != "pj=https://example.com&v=1" {
		t.Errorf("got query %q", query)
	}
}

func TestParsePayload_TrimsNulPaddingFromQuery(t *testing.T) {
	_, query := ParsePayload([]byte("aGVsbG8=\nv=1\x00\x00\x00"))
	if query != "v=1" {
		t.Errorf("got query %q, want v=1", query)
	}
}

// TestParsePayload_NoNewlineIsWholeBodyAsPSBT preserves the deliberately-not-fixed behavior
// spec.md section 9 calls out: a payload with no newline is treated as base64 with an empty
// query, not as an error.
func TestParsePayload_NoNewlineIsWholeBodyAsPSBT(t *testing.T) {
	psbtB64, query := ParsePayload([]byte("aGVsbG8="))
	if psbtB64 != "aGVsbG8=" {
		t.Errorf("got psbt %q, want aGVsbG8=", psbtB64)
	}
	if query != "" {
		t.Errorf("got query %q, want empty", query)
	}
}
