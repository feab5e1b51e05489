package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseDataURL(t *testing.T) {
	mime, data, err := parseDataURL("data:image/png;base64,AAAA")
	if err != nil {
		t.Fatalf("parseDataURL: %v", err)
	}
	if mime != "image/png" || data != "AAAA" {
		t.Errorf("got %q %q", mime, data)
	}

	// Bare base64 defaults to PNG, which is what generation produces.
	mime, data, err = parseDataURL("BBBB")
	if err != nil {
		t.Fatalf("parseDataURL bare: %v", err)
	}
	if mime != "image/png" || data != "BBBB" {
		t.Errorf("got %q %q", mime, data)
	}

	if _, _, err := parseDataURL("  "); err == nil {
		t.Error("blank input should fail")
	}
	if _, _, err := parseDataURL("data:image/png;base64"); err == nil {
		t.Error("missing comma should fail")
	}
}

func TestFileFromDataURL(t *testing.T) {
	name, bytes, err := fileFromDataURL("data:image/png;base64,iVBORw0KGgo=")
	if err != nil {
		t.Fatalf("fileFromDataURL: %v", err)
	}
	if !strings.HasSuffix(name, ".png") {
		t.Errorf("name = %q, want .png extension", name)
	}
	if len(bytes) == 0 {
		t.Error("decoded payload should not be empty")
	}

	if _, _, err := fileFromDataURL("data:image/png;base64,!!!"); err == nil {
		t.Error("invalid base64 should fail")
	}
}

func TestSplitByBytes(t *testing.T) {
	if got := splitByBytes("short", 4096); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text: got %v", got)
	}

	long := strings.Repeat("абв ", 2000) // multibyte, ~14000 bytes
	parts := splitByBytes(long, 4096)
	if len(parts) < 2 {
		t.Fatalf("parts = %d, want a split", len(parts))
	}

	var rejoined strings.Builder
	for _, p := range parts {
		if len([]byte(p)) > 4096 {
			t.Errorf("part is %d bytes, over the limit", len([]byte(p)))
		}
		if !utf8.ValidString(p) {
			t.Error("split broke a rune")
		}
		rejoined.WriteString(p)
	}
	if rejoined.String() != long {
		t.Error("rejoined parts differ from the input")
	}
}

func TestTruncateByBytes(t *testing.T) {
	if got := truncateByBytes("short", 1024); got != "short" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("я", 600) // 1200 bytes
	got := truncateByBytes(long, 1024)
	if len([]byte(got)) > 1024 {
		t.Errorf("truncated to %d bytes, want at most 1024", len([]byte(got)))
	}
	if !utf8.ValidString(got) {
		t.Error("truncation broke a rune")
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncation should be a prefix of the input")
	}
}
