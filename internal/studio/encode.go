package studio

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"thumb-studio-bot/internal/gemini"
)

// MaxSubjectBytes is the upload cap for main-subject photos. Background and
// reference uploads are capped by count only.
const MaxSubjectBytes = 4 << 20

// EncodeImage converts raw image bytes into a self-describing data URL.
// The mime type is sniffed from the payload when the caller does not know it.
func EncodeImage(data []byte, mimeType string) string {
	mimeType = normalizeMime(mimeType)
	if mimeType == "" {
		mimeType = normalizeMime(http.DetectContentType(data))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// EncodeFile reads a local image and encodes it. It fails only when the
// underlying read fails; size validation is the caller's concern.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return EncodeImage(data, ""), nil
}

var dataURLRegex = regexp.MustCompile(`^data:([^;]+);base64,`)

// InputFromDataURL converts a stored data URL back into the transport shape
// expected by the generation client.
func InputFromDataURL(dataURL string) (gemini.ImageInput, bool) {
	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return gemini.ImageInput{}, false
	}

	mime := "image/png"
	if matches := dataURLRegex.FindStringSubmatch(dataURL); len(matches) == 2 {
		mime = matches[1]
	}

	payload := dataURL
	if idx := strings.IndexByte(dataURL, ','); idx >= 0 {
		payload = dataURL[idx+1:]
	}
	if payload == "" {
		return gemini.ImageInput{}, false
	}

	return gemini.ImageInput{DataBase64: payload, MimeType: mime}, true
}

func inputsFromDataURLs(urls []string) []gemini.ImageInput {
	out := make([]gemini.ImageInput, 0, len(urls))
	for _, u := range urls {
		if in, ok := InputFromDataURL(u); ok {
			out = append(out, in)
		}
	}
	return out
}

func normalizeMime(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}
