package handlers

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"thumb-studio-bot/internal/studio"
)

func testWorkspaceSnap(t *testing.T) studio.Session {
	t.Helper()

	s := studio.NewSession(studio.LanguageEnglish)
	if err := s.SubmitTopic("sharpening"); err != nil {
		t.Fatal(err)
	}
	s.TitlesReady([]string{"Title A", "Title B"})
	if err := s.SelectTitle(0); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestCallbackData(t *testing.T) {
	got := cb(42, "layout", "versus")
	if got != "ts:42:layout:versus" {
		t.Errorf("cb = %q", got)
	}

	got = cb(7, "gen")
	if got != "ts:7:gen" {
		t.Errorf("cb = %q", got)
	}
}

func TestTitleKeyboardRows(t *testing.T) {
	kb := titleKeyboard(1, 20)

	// 20 numbered buttons in rows of five, plus the reset row.
	if len(kb.InlineKeyboard) != 5 {
		t.Fatalf("rows = %d, want 5", len(kb.InlineKeyboard))
	}
	for i := 0; i < 4; i++ {
		if len(kb.InlineKeyboard[i]) != 5 {
			t.Errorf("row %d has %d buttons, want 5", i, len(kb.InlineKeyboard[i]))
		}
	}
	if got := *kb.InlineKeyboard[0][0].CallbackData; got != "ts:1:title:0" {
		t.Errorf("first button = %q", got)
	}
	if got := *kb.InlineKeyboard[3][4].CallbackData; got != "ts:1:title:19" {
		t.Errorf("last numbered button = %q", got)
	}
}

func TestWorkspaceTextStates(t *testing.T) {
	snap := testWorkspaceSnap(t)

	text := workspaceText(snap)
	if !strings.Contains(text, "Title A") {
		t.Error("workspace text should show the selected title")
	}
	if !strings.Contains(text, "photo 1 —") {
		t.Error("missing subject should show as absent")
	}

	snap.SetSubject(0, "data:image/jpeg;base64,AA==")
	snap.ThumbnailProduced("data:image/png;base64,AA==")
	snap.ThumbnailProduced("data:image/png;base64,BB==")
	snap.Undo()

	text = workspaceText(snap)
	if !strings.Contains(text, "version 1 of 2") {
		t.Errorf("history position missing:\n%s", text)
	}

	snap.GenerateFailed("model unavailable")
	text = workspaceText(snap)
	if !strings.Contains(text, "model unavailable") {
		t.Error("last error should be shown")
	}
}

func TestWorkspaceKeyboardShape(t *testing.T) {
	snap := testWorkspaceSnap(t)

	kb := workspaceKeyboard(9, snap)
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData == nil {
				t.Fatalf("button %q has no callback data", btn.Text)
			}
			if !strings.HasPrefix(*btn.CallbackData, "ts:9:") {
				t.Errorf("button %q data = %q, want owner-scoped", btn.Text, *btn.CallbackData)
			}
		}
	}

	flat := flattenData(kb)
	if contains(flat, "ts:9:undo") {
		t.Error("undo should not appear before any thumbnail exists")
	}
	if contains(flat, "ts:9:strength:up") {
		t.Error("strength controls should not appear without references")
	}

	snap.AddReferences("data:image/png;base64,AA==")
	snap.ThumbnailProduced("data:image/png;base64,BB==")
	snap.ApplySuggestions(snap.History[0].ID, []string{"Make the text yellow"})

	flat = flattenData(workspaceKeyboard(9, snap))
	for _, want := range []string{"ts:9:undo", "ts:9:redo", "ts:9:download", "ts:9:strength:up", "ts:9:sug:0"} {
		if !contains(flat, want) {
			t.Errorf("keyboard missing %q after generation", want)
		}
	}
}

func TestTruncateLabel(t *testing.T) {
	if got := truncateLabel("short", 48); got != "short" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("word ", 20)
	got := truncateLabel(long, 10)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("got %q, want ellipsis suffix", got)
	}
	if len([]rune(got)) > 11 {
		t.Errorf("got %d runes, want at most 11", len([]rune(got)))
	}
}

func flattenData(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, item := range list {
		if item == want {
			return true
		}
	}
	return false
}
