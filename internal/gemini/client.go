package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	modelText  = "gemini-3-pro-preview"
	modelImage = "gemini-2.5-flash-image"
)

// ErrMalformedResponse is returned when a list request comes back with a
// payload that is not a JSON array of strings.
var ErrMalformedResponse = errors.New("malformed model response")

// ErrNoImage is returned when an image request produces no image payload.
// This is the documented signal for safety filtering or refusal upstream.
var ErrNoImage = errors.New("no image was produced")

const systemInstruction = `You are a YouTube packaging assistant.
You write click-worthy video titles and design 1280x720 thumbnails.
Follow the task instructions exactly. Never invent faces and never alter
the facial likeness of people in the provided photos.`

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// Titles runs a title request and decodes the response as an ordered list
// of candidate titles.
func (c *Client) Titles(ctx context.Context, req Request) ([]string, error) {
	return c.stringList(ctx, req)
}

// Suggestions runs a suggestion request and decodes the response as an
// ordered list of edit instructions.
func (c *Client) Suggestions(ctx context.Context, req Request) ([]string, error) {
	return c.stringList(ctx, req)
}

// Thumbnail runs a thumbnail generation request and returns the produced
// image as a data URL.
func (c *Client) Thumbnail(ctx context.Context, req Request) (string, error) {
	return c.image(ctx, req)
}

// Edit runs an edit request against an existing thumbnail and returns the
// edited image as a data URL.
func (c *Client) Edit(ctx context.Context, req Request) (string, error) {
	return c.image(ctx, req)
}

// StyleAnalysis runs a style analysis request and returns the model's
// free-text breakdown verbatim.
func (c *Client) StyleAnalysis(ctx context.Context, req Request) (string, error) {
	payload := generateContentRequest{
		Contents:          buildContents(req),
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: systemInstruction}}},
		GenerationConfig:  generationConfig{Temperature: 0.4},
	}

	resp, err := c.generateContent(ctx, modelText, payload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Client) stringList(ctx context.Context, req Request) ([]string, error) {
	gc := generationConfig{
		Temperature:      0.8,
		ResponseMimeType: "application/json",
		ThinkingConfig:   &thinkingConfig{ThinkingBudget: 4096},
	}

	payload := generateContentRequest{
		Contents:          buildContents(req),
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: systemInstruction}}},
		GenerationConfig:  gc,
	}

	resp, err := c.generateContent(ctx, modelText, payload)
	if err != nil && payload.GenerationConfig.ThinkingConfig != nil {
		if isUnknownFieldError(err, "thinkingConfig") {
			payload.GenerationConfig.ThinkingConfig = nil
			resp, err = c.generateContent(ctx, modelText, payload)
		}
	}
	if err != nil {
		return nil, err
	}

	list, ok := decodeStringList(resp.Text)
	if !ok {
		c.logger.Warn("list response not decodable", "text", truncateForLog(resp.Text))
		return nil, ErrMalformedResponse
	}
	return list, nil
}

func (c *Client) image(ctx context.Context, req Request) (string, error) {
	gc := generationConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}
	if ar := strings.TrimSpace(req.AspectRatio); ar != "" {
		gc.ImageConfig = &imageConfig{AspectRatio: ar}
	}

	payload := generateContentRequest{
		Contents:          buildContents(req),
		SystemInstruction: &content{Role: "user", Parts: []part{{Text: systemInstruction}}},
		GenerationConfig:  gc,
	}

	resp, err := c.generateContent(ctx, modelImage, payload)
	if err != nil && payload.GenerationConfig.ImageConfig != nil {
		if isUnknownFieldError(err, "imageConfig") {
			payload.GenerationConfig.ImageConfig = nil
			resp, err = c.generateContent(ctx, modelImage, payload)
		}
	}
	if err != nil {
		return "", err
	}

	if len(resp.Images) == 0 {
		c.logger.Warn("image request returned no image", "text", truncateForLog(resp.Text))
		return "", ErrNoImage
	}
	return resp.Images[0], nil
}

func buildContents(req Request) []content {
	parts := []part{{Text: strings.TrimSpace(req.Instruction)}}
	for _, img := range req.Images {
		parts = append(parts, part{
			InlineData: &blob{
				Data:     stripDataURLPrefix(img.DataBase64),
				MimeType: img.MimeType,
			},
		})
	}

	return []content{{Role: "user", Parts: parts}}
}

type response struct {
	Text   string
	Images []string
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (response, error) {
	if c.httpClient == nil {
		return response{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return response{}, fmt.Errorf("gemini API %s: %s", httpResp.Status, strings.TrimSpace(string(rawBody)))
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}

	text, images := extractParts(decoded)
	return response{Text: text, Images: images}, nil
}

func extractParts(resp generateContentResponse) (string, []string) {
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var textBuilder strings.Builder
	var images []string

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" && p.InlineData.MimeType != "" {
			images = append(images, fmt.Sprintf("data:%s;base64,%s", p.InlineData.MimeType, p.InlineData.Data))
		}
	}

	return textBuilder.String(), images
}

// decodeStringList accepts either a bare JSON array of strings or one
// wrapped in markdown fences / surrounding prose.
func decodeStringList(text string) ([]string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	candidates := []string{text}
	if start := strings.IndexByte(text, '['); start >= 0 {
		if end := strings.LastIndexByte(text, ']'); end > start {
			candidates = append(candidates, text[start:end+1])
		}
	}

	for _, candidate := range candidates {
		var list []string
		if err := json.Unmarshal([]byte(candidate), &list); err != nil {
			continue
		}

		out := make([]string, 0, len(list))
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out, true
		}
	}

	return nil, false
}

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature        float64         `json:"temperature,omitempty"`
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
	ImageConfig        *imageConfig    `json:"imageConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

func stripDataURLPrefix(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return value
}

func isUnknownFieldError(err error, field string) bool {
	message := err.Error()
	return strings.Contains(message, "Unknown name") && strings.Contains(message, field)
}

func truncateForLog(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > 200 {
		return string(runes[:200]) + "…"
	}
	return text
}
