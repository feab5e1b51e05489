package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"thumb-studio-bot/internal/studio"
)

const suggestionTimeout = 90 * time.Second

func (h *Handler) runTitleGeneration(ctx context.Context, chatID int64, userID int64, topic string) error {
	var verr error
	snap := h.sessions.Update(chatID, userID, func(s *studio.Session) {
		verr = s.SubmitTopic(topic)
	})
	if verr != nil {
		return h.tg.SendText(chatID, "❌ "+validationMessage(verr))
	}

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, "✍️ Writing 20 title ideas…")

	titles, err := h.gem.Titles(ctx, studio.BuildTitleRequest(snap.Topic, snap.Language))
	if err != nil {
		h.logger.Error("title generation failed", "err", err)
		h.sessions.Update(chatID, userID, func(s *studio.Session) {
			s.TitlesFailed(userMessage(err))
		})
		return h.tg.SendText(chatID, "❌ "+userMessage(err)+"\nSend the topic again to retry.")
	}

	snap = h.sessions.Update(chatID, userID, func(s *studio.Session) {
		s.TitlesReady(titles)
	})
	return h.sendTitleList(chatID, userID, snap)
}

func (h *Handler) sendTitleList(chatID int64, userID int64, snap studio.Session) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 %d title ideas for %q — pick one:\n\n", len(snap.Titles), snap.Topic))
	for i, title := range snap.Titles {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, title))
	}

	_, err := h.tg.SendTextWithKeyboard(chatID, b.String(), titleKeyboard(userID, len(snap.Titles)))
	return err
}

func (h *Handler) runGenerate(ctx context.Context, chatID int64, userID int64) error {
	var verr error
	snap := h.sessions.Update(chatID, userID, func(s *studio.Session) {
		if verr = s.ValidateGenerate(); verr == nil {
			s.BeginGenerate()
		}
	})
	if verr != nil {
		return h.tg.SendText(chatID, "❌ "+validationMessage(verr))
	}

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, "🎨 Designing your thumbnail, this can take a minute…")

	// Style references are summarized once and the description reused until
	// the reference set changes.
	if snap.NeedsStyleAnalysis() {
		desc, err := h.gem.StyleAnalysis(ctx, studio.BuildStyleAnalysisRequest(snap.ReferenceInputs()))
		if err != nil {
			h.logger.Error("style analysis failed", "err", err)
			h.sessions.Update(chatID, userID, func(s *studio.Session) {
				s.GenerateFailed(userMessage(err))
			})
			return h.tg.SendText(chatID, "❌ "+userMessage(err))
		}
		snap = h.sessions.Update(chatID, userID, func(s *studio.Session) {
			s.StyleAnalyzed(desc)
		})
	}

	image, err := h.gem.Thumbnail(ctx, studio.BuildThumbnailRequest(snap.ThumbnailOptions()))
	if err != nil {
		h.logger.Error("thumbnail generation failed", "err", err)
		h.sessions.Update(chatID, userID, func(s *studio.Session) {
			s.GenerateFailed(userMessage(err))
		})
		return h.tg.SendText(chatID, "❌ "+userMessage(err))
	}

	h.sessions.Update(chatID, userID, func(s *studio.Session) {
		s.ThumbnailProduced(image)
	})

	if err := h.tg.SendPhotoDataURL(chatID, image, "✅ "+snap.SelectedTitle); err != nil {
		return err
	}

	h.maybeFetchSuggestions(chatID, userID)
	return h.renderWorkspace(chatID, userID, false)
}

func (h *Handler) runEdit(ctx context.Context, chatID int64, userID int64, instruction string, manual bool) error {
	var verr error
	snap := h.sessions.Update(chatID, userID, func(s *studio.Session) {
		if verr = s.ValidateEdit(instruction); verr == nil {
			s.BeginEdit(instruction)
		}
	})
	if verr != nil {
		return h.tg.SendText(chatID, "❌ "+validationMessage(verr))
	}

	active, _ := snap.Active()
	input, ok := studio.InputFromDataURL(active.DataURL)
	if !ok {
		h.sessions.Update(chatID, userID, func(s *studio.Session) {
			s.EditFailed("The current thumbnail is unreadable. Generate a fresh one.", manual)
		})
		return h.tg.SendText(chatID, "❌ The current thumbnail is unreadable. Generate a fresh one.")
	}

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, "🖌 Applying your edit…")

	image, err := h.gem.Edit(ctx, studio.BuildEditRequest(input, instruction, snap.Language))
	if err != nil {
		h.logger.Error("thumbnail edit failed", "err", err)
		h.sessions.Update(chatID, userID, func(s *studio.Session) {
			s.EditFailed(userMessage(err), manual)
		})
		return h.tg.SendText(chatID, "❌ "+userMessage(err))
	}

	h.sessions.Update(chatID, userID, func(s *studio.Session) {
		s.ThumbnailProduced(image)
	})

	if err := h.tg.SendPhotoDataURL(chatID, image, "✅ Edited: "+instruction); err != nil {
		return err
	}

	h.maybeFetchSuggestions(chatID, userID)
	return h.renderWorkspace(chatID, userID, false)
}

// maybeFetchSuggestions launches the fire-and-forget suggestion refresh for
// the active thumbnail. The result is applied only if that thumbnail is
// still active when the call resolves; failures are logged, never surfaced.
func (h *Handler) maybeFetchSuggestions(chatID int64, userID int64) {
	var (
		artifact studio.Artifact
		launch   bool
	)
	snap := h.sessions.Update(chatID, userID, func(s *studio.Session) {
		artifact, launch = s.NeedSuggestionFetch()
	})
	if !launch {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), suggestionTimeout)
		defer cancel()

		list, err := h.gem.Suggestions(ctx, studio.BuildSuggestionRequest(snap.SelectedTitle, snap.Language))
		if err != nil {
			h.logger.Warn("suggestion fetch failed", "err", err)
			h.sessions.Update(chatID, userID, func(s *studio.Session) {
				s.SuggestionFetchFailed(artifact.ID)
			})
			return
		}

		var applied bool
		h.sessions.Update(chatID, userID, func(s *studio.Session) {
			applied = s.ApplySuggestions(artifact.ID, list)
		})
		if applied {
			_ = h.renderWorkspace(chatID, userID, true)
		}
	}()
}

func (h *Handler) sendDownload(chatID int64, snap studio.Session) error {
	active, ok := snap.Active()
	if !ok {
		return h.tg.SendText(chatID, "❌ Nothing to download yet — generate a thumbnail first.")
	}

	filename := sanitizeFilename(snap.SelectedTitle) + ".png"
	return h.tg.SendDocumentDataURL(chatID, active.DataURL, filename, "⬇️ "+snap.SelectedTitle)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, studio.ErrBusy):
		return "I'm still working on the previous request, one moment…"
	case errors.Is(err, studio.ErrEmptyTopic):
		return "Please send a non-empty topic."
	case errors.Is(err, studio.ErrEmptyInstruction):
		return "Tell me what to change, e.g. \"make the text yellow\"."
	case errors.Is(err, studio.ErrNoActive):
		return "Generate a thumbnail first, then we can edit it."
	case errors.Is(err, studio.ErrMissingSubject):
		return "I need your subject photo first — send it now."
	case errors.Is(err, studio.ErrMissingSecond):
		return "Two-subject mode needs a second photo — send it, or switch back to one subject."
	default:
		return err.Error()
	}
}

// sanitizeFilename keeps letters (any script), digits, dashes and
// underscores; runs of anything else collapse to a single dash.
func sanitizeFilename(title string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range title {
		switch {
		case isFilenameRune(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteRune('-')
			lastDash = true
		}
	}

	out := strings.Trim(b.String(), "-")
	if runes := []rune(out); len(runes) > 64 {
		out = strings.Trim(string(runes[:64]), "-")
	}
	if out == "" {
		return "thumbnail"
	}
	return out
}

// Letters of any script stay, so Arabic titles keep readable filenames.
func isFilenameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}
