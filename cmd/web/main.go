package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"thumb-studio-bot/internal/gemini"
	"thumb-studio-bot/internal/httpclient"
	"thumb-studio-bot/internal/studio"
)

// Stateless HTTP front for the generation pipeline. The caller owns the
// session: it holds the images, the style description, and the history, and
// replays them per request.
type server struct {
	gem     *gemini.Client
	timeout time.Duration
}

type apiError struct {
	Error string `json:"error"`
}

type listResponse struct {
	Items []string `json:"items"`
}

type textResponse struct {
	Text string `json:"text"`
}

type imageResponse struct {
	Image string `json:"image"`
}

func main() {
	_ = godotenv.Load()

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		panic("GEMINI_API_KEY is required")
	}

	addr := strings.TrimSpace(getEnv("WEB_ADDR", ":8080"))

	httpTimeout := time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second
	if httpTimeout <= 0 {
		httpTimeout = 180 * time.Second
	}

	requestTimeout := time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second
	if requestTimeout <= 0 {
		requestTimeout = 240 * time.Second
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: getEnvBool("PREFER_IPV4", true),
		Timeout:    httpTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     apiKey,
		BaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		APIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		HTTPClient: httpClient,
		Logger:     logger,
	})

	s := &server{gem: gem, timeout: requestTimeout}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/titles", s.handleTitles)
	mux.HandleFunc("/api/thumbnail", s.handleThumbnail)
	mux.HandleFunc("/api/style", s.handleStyle)
	mux.HandleFunc("/api/edit", s.handleEdit)
	mux.HandleFunc("/api/suggestions", s.handleSuggestions)

	srv := &http.Server{
		Addr:              addr,
		Handler:           withLogging(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("web started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func (s *server) handleTitles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var in struct {
		Topic    string `json:"topic"`
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(in.Topic) == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "topic is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	titles, err := s.gem.Titles(ctx, studio.BuildTitleRequest(in.Topic, studio.ParseLanguage(in.Language)))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: titles})
}

func (s *server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	const maxUploadBytes = 40 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "title is required"})
		return
	}

	subjects, err := formImages(r, "subject", 2)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	if len(subjects) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "at least one subject image is required"})
		return
	}
	for _, sub := range subjects {
		if decoded := base64DecodedLen(sub.DataBase64); decoded > studio.MaxSubjectBytes {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "subject images must be under 4 MB"})
			return
		}
	}

	backgrounds, err := formImages(r, "background", studio.MaxBackgroundImages)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	strength := studio.DefaultStyleStrength
	if raw := strings.TrimSpace(r.FormValue("style_strength")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			strength = parsed
		}
	}

	opts := studio.ThumbnailOptions{
		Title:            title,
		Language:         studio.ParseLanguage(r.FormValue("language")),
		TwoSubjects:      len(subjects) == 2,
		Subjects:         subjects,
		Backgrounds:      backgrounds,
		Layout:           studio.ParseLayout(r.FormValue("layout")),
		StyleDescription: strings.TrimSpace(r.FormValue("style_description")),
		StyleStrength:    strength,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	image, err := s.gem.Thumbnail(ctx, studio.BuildThumbnailRequest(opts))
	if err != nil {
		writeJSON(w, generationStatus(err), apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Image: image})
}

func (s *server) handleStyle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	const maxUploadBytes = 30 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	refs, err := formImages(r, "reference", studio.MaxReferenceImages)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}
	if len(refs) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "at least one reference image is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	desc, err := s.gem.StyleAnalysis(ctx, studio.BuildStyleAnalysisRequest(refs))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: desc})
}

func (s *server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	const maxBodyBytes = 20 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var in struct {
		Image       string `json:"image"`
		Instruction string `json:"instruction"`
		Language    string `json:"language"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(in.Instruction) == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "instruction is required"})
		return
	}

	active, ok := studio.InputFromDataURL(in.Image)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "image must be a base64 data URL"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	image, err := s.gem.Edit(ctx, studio.BuildEditRequest(active, in.Instruction, studio.ParseLanguage(in.Language)))
	if err != nil {
		writeJSON(w, generationStatus(err), apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Image: image})
}

func (s *server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var in struct {
		Title    string `json:"title"`
		Language string `json:"language"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "title is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	list, err := s.gem.Suggestions(ctx, studio.BuildSuggestionRequest(in.Title, studio.ParseLanguage(in.Language)))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: list})
}

// formImages collects the multipart files under a field name ("subject",
// "subject2", "background", "background2"…) up to the cap, in field order.
func formImages(r *http.Request, field string, limit int) ([]gemini.ImageInput, error) {
	var out []gemini.ImageInput
	for i := 1; i <= limit; i++ {
		name := field
		if i > 1 {
			name = field + strconv.Itoa(i)
		}

		file, header, err := r.FormFile(name)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, errors.New("invalid file field " + name)
		}

		input, err := readImage(file, header)
		file.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, input)
	}
	return out, nil
}

func readImage(file multipart.File, header *multipart.FileHeader) (gemini.ImageInput, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return gemini.ImageInput{}, errors.New("failed to read uploaded image")
	}

	dataURL := studio.EncodeImage(data, header.Header.Get("Content-Type"))
	input, ok := studio.InputFromDataURL(dataURL)
	if !ok {
		return gemini.ImageInput{}, errors.New("failed to encode uploaded image")
	}
	return input, nil
}

func base64DecodedLen(data string) int {
	return len(data) / 4 * 3
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// generationStatus distinguishes "the model refused" from transport failure.
func generationStatus(err error) int {
	if errors.Is(err, gemini.ErrNoImage) || errors.Is(err, gemini.ErrMalformedResponse) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
