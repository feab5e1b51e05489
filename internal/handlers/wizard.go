package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"thumb-studio-bot/internal/studio"
)

const callbackPrefix = "ts"

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, callbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This panel belongs to someone else.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID

	switch action {
	case "title":
		if len(args) < 1 {
			return nil
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return nil
		}

		var serr error
		snap := h.sessions.Update(chatID, ownerID, func(s *studio.Session) {
			serr = s.SelectTitle(index)
		})
		if serr != nil {
			_ = h.tg.AnswerCallback(q.ID, "That title is no longer available.", true)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, "Title picked!", false)
		_ = h.tg.SendText(chatID, fmt.Sprintf("🎯 %q\n\nNow send your subject photo (under 4 MB).", snap.SelectedTitle))
		return h.renderWorkspace(chatID, ownerID, false)

	case "layout":
		if len(args) < 1 {
			return nil
		}
		h.sessions.Update(chatID, ownerID, func(s *studio.Session) {
			s.SetLayout(studio.ParseLayout(args[0]))
		})
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.renderWorkspace(chatID, ownerID, true)

	case "subjects":
		if len(args) < 1 {
			return nil
		}
		h.sessions.Update(chatID, ownerID, func(s *studio.Session) {
			s.SetTwoSubjects(args[0] == "2")
		})
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.renderWorkspace(chatID, ownerID, true)

	case "strength":
		if len(args) < 1 {
			return nil
		}
		delta := 10
		if args[0] == "down" {
			delta = -10
		}
		h.sessions.Update(chatID, ownerID, func(s *studio.Session) {
			s.SetStyleStrength(s.Workspace.StyleStrength + delta)
		})
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.renderWorkspace(chatID, ownerID, true)

	case "await":
		if len(args) < 1 {
			return nil
		}
		target := studio.UploadTarget(args[0])
		h.sessions.Update(chatID, ownerID, func(s *studio.Session) {
			s.SetAwaiting(target)
		})
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.tg.SendText(chatID, awaitPrompt(target))

	case "clear":
		if len(args) < 1 {
			return nil
		}
		h.sessions.Update(chatID, ownerID, func(s *studio.Session) {
			if args[0] == "ref" {
				s.ClearReferences()
			} else {
				s.ClearBackgrounds()
			}
		})
		_ = h.tg.AnswerCallback(q.ID, "Cleared.", false)
		return h.renderWorkspace(chatID, ownerID, true)

	case "gen":
		_ = h.tg.AnswerCallback(q.ID, "Generating…", false)
		return h.runGenerate(ctx, chatID, ownerID)

	case "undo", "redo":
		var moved bool
		snap := h.sessions.Update(chatID, ownerID, func(s *studio.Session) {
			if action == "undo" {
				moved = s.Undo()
			} else {
				moved = s.Redo()
			}
		})
		if !moved {
			_ = h.tg.AnswerCallback(q.ID, "Nothing to "+action+".", false)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)

		active, _ := snap.Active()
		caption := fmt.Sprintf("🕘 Version %d of %d", snap.Cursor+1, len(snap.History))
		if err := h.tg.SendPhotoDataURL(chatID, active.DataURL, caption); err != nil {
			return err
		}
		h.maybeFetchSuggestions(chatID, ownerID)
		return h.renderWorkspace(chatID, ownerID, false)

	case "download":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.sendDownload(chatID, h.sessions.Get(chatID, ownerID))

	case "sug":
		if len(args) < 1 {
			return nil
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return nil
		}
		snap := h.sessions.Get(chatID, ownerID)
		if index < 0 || index >= len(snap.Suggestions) {
			_ = h.tg.AnswerCallback(q.ID, "That suggestion has expired.", false)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, "Applying…", false)
		return h.runEdit(ctx, chatID, ownerID, snap.Suggestions[index], false)

	case "reset":
		h.sessions.Reset(chatID, ownerID)
		_ = h.tg.AnswerCallback(q.ID, "Starting over.", false)
		return h.tg.SendText(chatID, "🔄 Fresh start. Send me your video topic.")

	default:
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return nil
	}
}

func awaitPrompt(target studio.UploadTarget) string {
	switch target {
	case studio.UploadSubject2:
		return "📷 Send the second subject photo (under 4 MB)."
	case studio.UploadBackground:
		return "🖼 Send background image(s) — an album works too (up to 5 kept)."
	case studio.UploadReference:
		return "✨ Send reference thumbnail(s) whose style I should copy (up to 3 kept)."
	default:
		return "📷 Send the subject photo (under 4 MB)."
	}
}

func (h *Handler) renderWorkspace(chatID int64, userID int64, edit bool) error {
	snap := h.sessions.Get(chatID, userID)
	if snap.Phase != studio.PhaseWorkspace {
		return nil
	}

	text := workspaceText(snap)
	kb := workspaceKeyboard(userID, snap)

	if edit && snap.UIMessageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, snap.UIMessageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.sessions.Update(chatID, userID, func(s *studio.Session) { s.UIMessageID = msgID })
	return nil
}

func workspaceText(snap studio.Session) string {
	ws := snap.Workspace

	var b strings.Builder
	b.WriteString("🎬 Thumbnail Workspace\n\n")
	b.WriteString("Title: " + snap.SelectedTitle + "\n")
	b.WriteString("Language: " + strings.ToUpper(string(snap.Language)) + "\n")
	b.WriteString("Layout: " + layoutName(ws.Layout) + "\n")

	subjects := "1"
	if ws.TwoSubjects {
		subjects = "2"
	}
	b.WriteString(fmt.Sprintf("Subjects: %s — photo 1 %s", subjects, haveMark(ws.Subjects[0])))
	if ws.TwoSubjects {
		b.WriteString(", photo 2 " + haveMark(ws.Subjects[1]))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Backgrounds: %d/%d\n", len(ws.Backgrounds), studio.MaxBackgroundImages))
	b.WriteString(fmt.Sprintf("Style refs: %d/%d", len(ws.References), studio.MaxReferenceImages))
	if len(ws.References) > 0 {
		if strings.TrimSpace(ws.StyleDescription) != "" {
			b.WriteString(" (analyzed ✓)")
		} else {
			b.WriteString(" (will analyze on generate)")
		}
		b.WriteString(fmt.Sprintf("\nStyle strength: %d%%", ws.StyleStrength))
	}
	b.WriteString("\n")

	if n := len(snap.History); n > 0 {
		b.WriteString(fmt.Sprintf("History: version %d of %d\n", snap.Cursor+1, n))
	}

	switch snap.Busy {
	case studio.RequestTitles:
		b.WriteString("\n⏳ Writing titles…\n")
	case studio.RequestThumbnail, studio.RequestAnalysis:
		b.WriteString("\n⏳ Generating…\n")
	case studio.RequestEdit:
		b.WriteString("\n⏳ Editing…\n")
	}

	if snap.LastError != "" {
		b.WriteString("\n⚠️ " + snap.LastError + "\n")
	}

	if len(snap.Suggestions) > 0 {
		b.WriteString("\n💡 Ideas (tap to apply):\n")
		for i, s := range snap.Suggestions {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
		}
	}

	if pending := strings.TrimSpace(snap.PendingEdit); pending != "" && snap.Busy == studio.RequestNone && snap.LastError != "" {
		b.WriteString("\nLast edit kept: " + pending + " (send again or rephrase)\n")
	}

	if len(snap.History) > 0 && snap.Busy == studio.RequestNone {
		b.WriteString("\n🖌 Type an edit, e.g. \"make the text yellow\".\n")
	}

	return strings.TrimSpace(b.String())
}

func workspaceKeyboard(ownerID int64, snap studio.Session) tgbotapi.InlineKeyboardMarkup {
	ws := snap.Workspace

	oneLabel := "👤 1 subject"
	twoLabel := "👥 2 subjects"
	if ws.TwoSubjects {
		twoLabel = "✅ " + twoLabel
	} else {
		oneLabel = "✅ " + oneLabel
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData(oneLabel, cb(ownerID, "subjects", "1")),
			tgbotapi.NewInlineKeyboardButtonData(twoLabel, cb(ownerID, "subjects", "2")),
		},
	}

	photoRow := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("📷 Subject 1 "+haveMark(ws.Subjects[0]), cb(ownerID, "await", string(studio.UploadSubject1))),
	}
	if ws.TwoSubjects {
		photoRow = append(photoRow,
			tgbotapi.NewInlineKeyboardButtonData("📷 Subject 2 "+haveMark(ws.Subjects[1]), cb(ownerID, "await", string(studio.UploadSubject2))),
		)
	}
	rows = append(rows, photoRow)

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🖼 Backgrounds (%d)", len(ws.Backgrounds)), cb(ownerID, "await", string(studio.UploadBackground))),
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✨ Style refs (%d)", len(ws.References)), cb(ownerID, "await", string(studio.UploadReference))),
	})

	if len(ws.Backgrounds) > 0 || len(ws.References) > 0 {
		var clearRow []tgbotapi.InlineKeyboardButton
		if len(ws.Backgrounds) > 0 {
			clearRow = append(clearRow, tgbotapi.NewInlineKeyboardButtonData("🗑 Backgrounds", cb(ownerID, "clear", "bg")))
		}
		if len(ws.References) > 0 {
			clearRow = append(clearRow, tgbotapi.NewInlineKeyboardButtonData("🗑 Style refs", cb(ownerID, "clear", "ref")))
		}
		rows = append(rows, clearRow)
	}

	var layoutRow []tgbotapi.InlineKeyboardButton
	for _, opt := range studio.Layouts() {
		label := opt.Name
		if opt.Key == string(ws.Layout) {
			label = "✅ " + label
		}
		layoutRow = append(layoutRow, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "layout", opt.Key)))
		if len(layoutRow) == 2 {
			rows = append(rows, layoutRow)
			layoutRow = nil
		}
	}
	if len(layoutRow) > 0 {
		rows = append(rows, layoutRow)
	}

	if len(ws.References) > 0 {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➖", cb(ownerID, "strength", "down")),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Style %d%%", ws.StyleStrength), cb(ownerID, "noop")),
			tgbotapi.NewInlineKeyboardButtonData("➕", cb(ownerID, "strength", "up")),
		})
	}

	for i, s := range snap.Suggestions {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("💡 "+truncateLabel(s, 48), cb(ownerID, "sug", strconv.Itoa(i))),
		})
	}

	actionRow := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🚀 Generate", cb(ownerID, "gen")),
	}
	if len(snap.History) > 0 {
		actionRow = append(actionRow,
			tgbotapi.NewInlineKeyboardButtonData("↩️ Undo", cb(ownerID, "undo")),
			tgbotapi.NewInlineKeyboardButtonData("↪️ Redo", cb(ownerID, "redo")),
		)
	}
	rows = append(rows, actionRow)

	lastRow := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🔄 Start over", cb(ownerID, "reset")),
	}
	if len(snap.History) > 0 {
		lastRow = append([]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬇️ Download PNG", cb(ownerID, "download")),
		}, lastRow...)
	}
	rows = append(rows, lastRow)

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func titleKeyboard(ownerID int64, count int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i := 0; i < count; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i+1), cb(ownerID, "title", strconv.Itoa(i))))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("🔄 Different topic", cb(ownerID, "reset")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}

func layoutName(layout studio.LayoutPreset) string {
	for _, opt := range studio.Layouts() {
		if opt.Key == string(layout) {
			return opt.Name
		}
	}
	return "Default"
}

func haveMark(dataURL string) string {
	if strings.TrimSpace(dataURL) == "" {
		return "—"
	}
	return "✅"
}

func truncateLabel(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
