package studio

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Minimal valid PNG header; enough for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16))

func TestEncodeImage(t *testing.T) {
	got := EncodeImage(pngBytes, "")
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("sniffed encode = %q, want image/png data URL", got)
	}

	got = EncodeImage([]byte("not an image"), "image/webp; charset=binary")
	if !strings.HasPrefix(got, "data:image/webp;base64,") {
		t.Errorf("explicit mime encode = %q, want image/webp honored", got)
	}

	got = EncodeImage([]byte{0x00, 0x01}, "")
	if !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("unknown payload = %q, want image/jpeg fallback", got)
	}
}

func TestEncodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subject.png")
	if err := os.WriteFile(path, pngBytes, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := EncodeFile(path)
	if err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("EncodeFile = %q, want image/png data URL", got)
	}

	if _, err := EncodeFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("EncodeFile on a missing path should fail")
	}
}

func TestInputFromDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngBytes)

	input, ok := InputFromDataURL("data:image/png;base64," + payload)
	if !ok {
		t.Fatal("valid data URL should parse")
	}
	if input.MimeType != "image/png" {
		t.Errorf("mimeType = %q, want image/png", input.MimeType)
	}
	if input.DataBase64 != payload {
		t.Error("payload should be the bare base64, no prefix")
	}

	// Bare base64 without a data: prefix still works, defaulting the mime.
	input, ok = InputFromDataURL(payload)
	if !ok {
		t.Fatal("bare base64 should parse")
	}
	if input.MimeType != "image/png" {
		t.Errorf("default mimeType = %q, want image/png", input.MimeType)
	}

	if _, ok := InputFromDataURL("   "); ok {
		t.Error("blank input should not parse")
	}
	if _, ok := InputFromDataURL("data:image/png;base64,"); ok {
		t.Error("empty payload should not parse")
	}
}

func TestInputsFromDataURLsSkipsInvalid(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngBytes)
	got := inputsFromDataURLs([]string{
		"data:image/png;base64," + payload,
		"",
		"data:image/jpeg;base64," + payload,
	})
	if len(got) != 2 {
		t.Errorf("inputs = %d, want 2 (blank skipped)", len(got))
	}
}
