package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		APIVersion: "v1beta",
		HTTPClient: srv.Client(),
	})
}

func modelTextResponse(text string) []byte {
	resp := generateContentResponse{
		Candidates: []candidate{{
			Content: content{Parts: []part{{Text: text}}},
		}},
	}
	body, _ := json.Marshal(resp)
	return body
}

func modelImageResponse(mimeType, data string) []byte {
	resp := generateContentResponse{
		Candidates: []candidate{{
			Content: content{Parts: []part{
				{Text: "here you go"},
				{InlineData: &blob{Data: data, MimeType: mimeType}},
			}},
		}},
	}
	body, _ := json.Marshal(resp)
	return body
}

func TestTitlesDecodesList(t *testing.T) {
	var gotPath, gotKey string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		w.Write(modelTextResponse(`["First Title", "Second Title"]`))
	})

	titles, err := client.Titles(context.Background(), Request{Instruction: "write titles"})
	if err != nil {
		t.Fatalf("Titles: %v", err)
	}
	if len(titles) != 2 || titles[0] != "First Title" {
		t.Errorf("titles = %v", titles)
	}
	if !strings.Contains(gotPath, "gemini-3-pro-preview:generateContent") {
		t.Errorf("path = %q, want text model endpoint", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestTitlesDecodesFencedList(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(modelTextResponse("Here you go:\n```json\n[\"A\", \"B\"]\n```"))
	})

	titles, err := client.Titles(context.Background(), Request{Instruction: "write titles"})
	if err != nil {
		t.Fatalf("Titles: %v", err)
	}
	if len(titles) != 2 {
		t.Errorf("titles = %v, want 2 entries", titles)
	}
}

func TestTitlesMalformedResponse(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(modelTextResponse("sorry, I can't help with that"))
	})

	_, err := client.Titles(context.Background(), Request{Instruction: "write titles"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("got %v, want ErrMalformedResponse", err)
	}
}

func TestStringListThinkingConfigFallback(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++

		var req generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		if req.GenerationConfig.ThinkingConfig != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "Unknown name \"thinkingConfig\""}}`))
			return
		}
		w.Write(modelTextResponse(`["A", "B", "C"]`))
	})

	list, err := client.Suggestions(context.Background(), Request{Instruction: "suggest"})
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want retry without thinkingConfig", calls)
	}
	if len(list) != 3 {
		t.Errorf("list = %v, want 3 entries", list)
	}
}

func TestThumbnailReturnsDataURL(t *testing.T) {
	var gotPath string
	var gotReq generateContentRequest
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		w.Write(modelImageResponse("image/png", "AAAA"))
	})

	image, err := client.Thumbnail(context.Background(), Request{
		Instruction: "draw",
		Images:      []ImageInput{{DataBase64: "data:image/jpeg;base64,BBBB", MimeType: "image/jpeg"}},
		AspectRatio: "16:9",
	})
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if image != "data:image/png;base64,AAAA" {
		t.Errorf("image = %q", image)
	}
	if !strings.Contains(gotPath, "gemini-2.5-flash-image:generateContent") {
		t.Errorf("path = %q, want image model endpoint", gotPath)
	}

	if gotReq.GenerationConfig.ImageConfig == nil || gotReq.GenerationConfig.ImageConfig.AspectRatio != "16:9" {
		t.Error("imageConfig aspect ratio should be forwarded")
	}

	// Any data URL prefix on the input must be stripped before transport.
	parts := gotReq.Contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil {
		t.Fatalf("parts = %+v", parts)
	}
	if parts[1].InlineData.Data != "BBBB" {
		t.Errorf("inline data = %q, want bare base64", parts[1].InlineData.Data)
	}
}

func TestEditNoImage(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(modelTextResponse("I cannot edit this image."))
	})

	_, err := client.Edit(context.Background(), Request{
		Instruction: "edit",
		Images:      []ImageInput{{DataBase64: "AAAA", MimeType: "image/png"}},
	})
	if !errors.Is(err, ErrNoImage) {
		t.Errorf("got %v, want ErrNoImage", err)
	}
}

func TestImageConfigFallback(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++

		var req generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}

		if req.GenerationConfig.ImageConfig != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"message": "Unknown name \"imageConfig\""}}`))
			return
		}
		w.Write(modelImageResponse("image/png", "AAAA"))
	})

	image, err := client.Thumbnail(context.Background(), Request{Instruction: "draw", AspectRatio: "16:9"})
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want retry without imageConfig", calls)
	}
	if image == "" {
		t.Error("image should come back from the retry")
	}
}

func TestStyleAnalysisReturnsTrimmedText(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(modelTextResponse("  Palette: red and black.\n  "))
	})

	got, err := client.StyleAnalysis(context.Background(), Request{Instruction: "analyze"})
	if err != nil {
		t.Fatalf("StyleAnalysis: %v", err)
	}
	if got != "Palette: red and black." {
		t.Errorf("analysis = %q", got)
	}
}

func TestHTTPErrorSurfacesStatus(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
	})

	_, err := client.Titles(context.Background(), Request{Instruction: "write titles"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want status and body", err)
	}
}

func TestTruncateForLogKeepsRunesWhole(t *testing.T) {
	if got := truncateForLog("  short  "); got != "short" {
		t.Errorf("got %q, want trimmed passthrough", got)
	}

	long := strings.Repeat("ж", 300)
	got := truncateForLog(long)
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if runes := []rune(got); len(runes) != 201 || runes[200] != '…' {
		t.Errorf("got %d runes, want 200 plus ellipsis", len(runes))
	}
}

func TestDecodeStringList(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
		ok   bool
	}{
		{"bare array", `["a", "b"]`, 2, true},
		{"fenced", "```json\n[\"a\"]\n```", 1, true},
		{"prose wrapped", `Sure: ["a", "b", "c"] hope that helps`, 3, true},
		{"blank entries dropped", `["a", "  ", "b"]`, 2, true},
		{"empty", "", 0, false},
		{"not a list", `{"a": 1}`, 0, false},
		{"all blank", `["", " "]`, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := decodeStringList(tc.in)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if len(got) != tc.want {
				t.Errorf("len = %d, want %d", len(got), tc.want)
			}
		})
	}
}
