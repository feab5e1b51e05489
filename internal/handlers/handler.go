package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"thumb-studio-bot/internal/album"
	"thumb-studio-bot/internal/gemini"
	"thumb-studio-bot/internal/studio"
	"thumb-studio-bot/internal/telegram"
)

type Options struct {
	Telegram *telegram.Client
	Gemini   *gemini.Client
	Sessions *studio.Store
	Logger   *slog.Logger
}

type Handler struct {
	tg        *telegram.Client
	gem       *gemini.Client
	sessions  *studio.Store
	logger    *slog.Logger
	collector *album.Collector
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:       opts.Telegram,
		gem:      opts.Gemini,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

func (h *Handler) SetAlbumCollector(c *album.Collector) {
	h.collector = c
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}

	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, msg)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, userID, msg.Text)
	}

	return nil
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		h.sessions.Reset(chatID, userID)
		return h.tg.SendText(chatID,
			"🎬 Thumb Studio\n\n"+
				"I turn a video topic into a title and a 1280x720 thumbnail.\n\n"+
				"Send me your video topic to begin.\n\n"+
				"Commands:\n"+
				"/language - switch title language (en/ar)\n"+
				"/reset - start over\n"+
				"/help - how it works",
		)
	case "help":
		return h.tg.SendText(chatID,
			"How it works:\n"+
				"1. Send a topic — I write 20 title ideas.\n"+
				"2. Pick one — we enter the thumbnail workspace.\n"+
				"3. Send your photo (it appears face-unchanged in the thumbnail), optionally background images and up to 3 reference thumbnails whose style I copy.\n"+
				"4. Generate, then refine: type an edit like \"make the text yellow\", or tap a suggestion. Undo/redo any step.\n"+
				"5. Download the result as a PNG.",
		)
	case "language":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			return h.tg.SendText(chatID, "Usage: /language en or /language ar")
		}
		lang := studio.ParseLanguage(arg)
		h.sessions.Update(chatID, userID, func(s *studio.Session) {
			s.Language = lang
		})
		return h.tg.SendText(chatID, fmt.Sprintf("✅ Language set to %s.", lang))
	case "reset":
		h.sessions.Reset(chatID, userID)
		return h.tg.SendText(chatID, "🔄 Starting over. Send me your video topic.")
	case "cancel":
		h.sessions.Update(chatID, userID, func(s *studio.Session) {
			s.SetAwaiting(studio.UploadNone)
		})
		return h.tg.SendText(chatID, "Okay, cancelled.")
	default:
		return h.tg.SendText(chatID, "Unknown command. /help shows what I can do.")
	}
}

// handleText routes free text by phase: a topic before titles exist, an edit
// instruction once the workspace is active.
func (h *Handler) handleText(ctx context.Context, chatID int64, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	snap := h.sessions.Get(chatID, userID)
	switch snap.Phase {
	case studio.PhaseGeneratingTitles:
		return h.tg.SendText(chatID, "⏳ Still writing titles, one moment…")
	case studio.PhaseWorkspace:
		return h.runEdit(ctx, chatID, userID, text, true)
	default:
		// TopicInput, or a fresh topic typed over the titles list.
		return h.runTitleGeneration(ctx, chatID, userID, text)
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	snap := h.sessions.Get(chatID, userID)
	if snap.Phase != studio.PhaseWorkspace {
		return h.tg.SendText(chatID, "Photos come later — first send me your video topic.")
	}

	photo := msg.Photo[len(msg.Photo)-1]

	if msg.MediaGroupID != "" && h.collector != nil {
		h.collector.Add(album.Photo{
			ChatID:  chatID,
			UserID:  userID,
			AlbumID: msg.MediaGroupID,
			FileID:  photo.FileID,
			Target:  string(snap.Workspace.Awaiting),
		})
		return nil
	}

	dataURL, size, err := h.downloadAsDataURL(ctx, photo.FileID)
	if err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ I couldn't download that photo. Please try again.")
	}

	target := resolveUploadTarget(snap)
	if (target == studio.UploadSubject1 || target == studio.UploadSubject2) && size > studio.MaxSubjectBytes {
		return h.tg.SendText(chatID, "❌ Subject photos must be under 4 MB. Please send a smaller one.")
	}

	h.sessions.Update(chatID, userID, func(s *studio.Session) {
		switch target {
		case studio.UploadSubject2:
			s.SetSubject(1, dataURL)
		case studio.UploadBackground:
			s.AddBackgrounds(dataURL)
		case studio.UploadReference:
			s.AddReferences(dataURL)
		default:
			s.SetSubject(0, dataURL)
		}
	})

	return h.renderWorkspace(chatID, userID, false)
}

// HandleAlbum receives a debounced multi-photo upload. Albums land as
// backgrounds unless the user had asked for style references when the
// upload started; the batch carries that target so a state change during
// the debounce window cannot redirect it.
func (h *Handler) HandleAlbum(ctx context.Context, batch album.Batch) {
	snap := h.sessions.Get(batch.ChatID, batch.UserID)
	if snap.Phase != studio.PhaseWorkspace {
		_ = h.tg.SendText(batch.ChatID, "Photos come later — first send me your video topic.")
		return
	}

	dataURLs := make([]string, len(batch.FileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range batch.FileIDs {
		i := i
		fileID := fileID
		eg.Go(func() error {
			dataURL, _, err := h.downloadAsDataURL(egCtx, fileID)
			if err != nil {
				return err
			}
			dataURLs[i] = dataURL
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("album download failed", "err", err)
		_ = h.tg.SendText(batch.ChatID, "❌ I couldn't download those photos. Please try again.")
		return
	}

	asReferences := batch.Target == string(studio.UploadReference)
	h.sessions.Update(batch.ChatID, batch.UserID, func(s *studio.Session) {
		if asReferences {
			s.AddReferences(dataURLs...)
		} else {
			s.AddBackgrounds(dataURLs...)
		}
	})

	_ = h.renderWorkspace(batch.ChatID, batch.UserID, false)
}

func (h *Handler) downloadAsDataURL(ctx context.Context, fileID string) (string, int, error) {
	base64Data, mimeType, err := h.tg.DownloadFileBase64(ctx, fileID)
	if err != nil {
		return "", 0, err
	}
	size := base64.StdEncoding.DecodedLen(len(base64Data))
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data), size, nil
}

// resolveUploadTarget picks where a single photo lands: an explicit await
// wins; otherwise empty subject slots fill first, then backgrounds.
func resolveUploadTarget(snap studio.Session) studio.UploadTarget {
	if snap.Workspace.Awaiting != studio.UploadNone {
		return snap.Workspace.Awaiting
	}
	if strings.TrimSpace(snap.Workspace.Subjects[0]) == "" {
		return studio.UploadSubject1
	}
	if snap.Workspace.TwoSubjects && strings.TrimSpace(snap.Workspace.Subjects[1]) == "" {
		return studio.UploadSubject2
	}
	return studio.UploadBackground
}

// userMessage maps client errors onto what the user sees.
func userMessage(err error) string {
	switch {
	case errors.Is(err, gemini.ErrMalformedResponse):
		return "The model returned something I couldn't read. Please try again."
	case errors.Is(err, gemini.ErrNoImage):
		return "No image came back — the request may have been filtered. Try different photos or wording."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long and timed out. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
