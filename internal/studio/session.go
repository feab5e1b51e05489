package studio

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"thumb-studio-bot/internal/gemini"
)

// Phase is the top-level application mode.
type Phase string

const (
	PhaseTopicInput       Phase = "topic_input"
	PhaseGeneratingTitles Phase = "generating_titles"
	PhaseTitlesDisplayed  Phase = "titles_displayed"
	PhaseWorkspace        Phase = "workspace"
)

// RequestKind tags which generation call is in flight. It drives UI
// affordances only; it carries no invariant of its own.
type RequestKind string

const (
	RequestNone      RequestKind = ""
	RequestTitles    RequestKind = "titles"
	RequestThumbnail RequestKind = "thumbnail"
	RequestEdit      RequestKind = "edit"
	RequestAnalysis  RequestKind = "analysis"
)

const (
	MaxBackgroundImages = 5
	MaxReferenceImages  = 3

	MinStyleStrength     = 10
	MaxStyleStrength     = 100
	DefaultStyleStrength = 70
)

// UploadTarget says what the next incoming photo(s) should become.
type UploadTarget string

const (
	UploadNone       UploadTarget = ""
	UploadSubject1   UploadTarget = "subject1"
	UploadSubject2   UploadTarget = "subject2"
	UploadBackground UploadTarget = "background"
	UploadReference  UploadTarget = "reference"
)

// Artifact is one produced thumbnail. Its identity is what the suggestion
// fetcher compares against when a result arrives late.
type Artifact struct {
	ID        uuid.UUID
	DataURL   string
	CreatedAt time.Time
}

// Workspace holds the thumbnail inputs. All image fields are data URLs.
type Workspace struct {
	TwoSubjects bool
	Subjects    [2]string
	Backgrounds []string
	References  []string
	Layout      LayoutPreset

	// StyleDescription caches the analyzed style of References. Empty means
	// not analyzed yet (or invalidated by a reference change).
	StyleDescription string
	StyleStrength    int

	Awaiting UploadTarget
}

var (
	ErrBusy             = errors.New("another request is already in progress")
	ErrEmptyTopic       = errors.New("topic is empty")
	ErrEmptyInstruction = errors.New("edit instruction is empty")
	ErrNoActive         = errors.New("no thumbnail to edit yet")
	ErrMissingSubject   = errors.New("the first subject photo is required")
	ErrMissingSecond    = errors.New("two-subject mode needs a second subject photo")
)

// Session is the whole per-user state. Mutations happen only through the
// transition methods below, always under the owning Store's lock.
type Session struct {
	Phase    Phase
	Language Language

	Topic         string
	Titles        []string
	SelectedTitle string

	Workspace Workspace

	History []Artifact
	Cursor  int

	Suggestions []string
	// suggestionsFor is the artifact the cached Suggestions belong to;
	// suggestionPending is the artifact a fetch is currently in flight for.
	suggestionsFor    uuid.UUID
	suggestionPending uuid.UUID

	// PendingEdit preserves typed instruction text across a failed manual
	// edit so the user can retry without retyping.
	PendingEdit string

	LastError string
	Busy      RequestKind

	// UIMessageID is the pinned control-panel message the bot edits in
	// place. Pure UI affordance, carried across transitions.
	UIMessageID int

	UpdatedAt time.Time
}

func NewSession(lang Language) Session {
	return Session{
		Phase:    PhaseTopicInput,
		Language: lang,
		Workspace: Workspace{
			Layout:        LayoutDefault,
			StyleStrength: DefaultStyleStrength,
		},
		UpdatedAt: time.Now(),
	}
}

// StartOver resets everything back to topic entry. The pinned UI message
// survives so the panel keeps editing in place.
func (s *Session) StartOver() {
	msgID := s.UIMessageID
	*s = NewSession(s.Language)
	s.UIMessageID = msgID
}

// clearError implements latest-wins error display: every user-initiated
// transition drops the previous message first.
func (s *Session) clearError() {
	s.LastError = ""
}

func (s *Session) fail(msg string) {
	s.LastError = msg
	s.Busy = RequestNone
}

// SubmitTopic accepts the topic text and moves into title generation.
func (s *Session) SubmitTopic(topic string) error {
	s.clearError()
	if s.Busy != RequestNone {
		return ErrBusy
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return ErrEmptyTopic
	}

	s.Topic = topic
	s.Titles = nil
	s.Phase = PhaseGeneratingTitles
	s.Busy = RequestTitles
	return nil
}

// TitlesReady stores the generated list verbatim.
func (s *Session) TitlesReady(titles []string) {
	s.Titles = titles
	s.Phase = PhaseTitlesDisplayed
	s.Busy = RequestNone
}

// TitlesFailed returns to topic entry with the error set and no titles.
func (s *Session) TitlesFailed(msg string) {
	s.Titles = nil
	s.Phase = PhaseTopicInput
	s.fail(msg)
}

// SelectTitle records the choice and enters the workspace with an empty
// thumbnail history.
func (s *Session) SelectTitle(index int) error {
	s.clearError()
	if index < 0 || index >= len(s.Titles) {
		return errors.New("title index out of range")
	}

	s.SelectedTitle = s.Titles[index]
	s.Phase = PhaseWorkspace
	s.Workspace = Workspace{
		Layout:        LayoutDefault,
		StyleStrength: DefaultStyleStrength,
	}
	s.History = nil
	s.Cursor = 0
	s.Suggestions = nil
	s.suggestionsFor = uuid.Nil
	s.suggestionPending = uuid.Nil
	s.PendingEdit = ""
	return nil
}

func (s *Session) SetTwoSubjects(two bool) {
	s.clearError()
	s.Workspace.TwoSubjects = two
}

func (s *Session) SetSubject(slot int, dataURL string) {
	s.clearError()
	if slot < 0 || slot > 1 {
		return
	}
	s.Workspace.Subjects[slot] = dataURL
	s.Workspace.Awaiting = UploadNone
}

// AddBackgrounds appends background images, silently truncating beyond the
// cap.
func (s *Session) AddBackgrounds(dataURLs ...string) {
	s.clearError()
	s.Workspace.Backgrounds = appendCapped(s.Workspace.Backgrounds, dataURLs, MaxBackgroundImages)
	s.Workspace.Awaiting = UploadNone
}

func (s *Session) ClearBackgrounds() {
	s.clearError()
	s.Workspace.Backgrounds = nil
}

// AddReferences appends style references (truncated to the cap) and
// invalidates any cached style analysis.
func (s *Session) AddReferences(dataURLs ...string) {
	s.clearError()
	s.Workspace.References = appendCapped(s.Workspace.References, dataURLs, MaxReferenceImages)
	s.Workspace.StyleDescription = ""
	s.Workspace.Awaiting = UploadNone
}

// RemoveReference drops one reference. The cached analysis is invalidated
// even if the set becomes empty; re-adding does not restore it.
func (s *Session) RemoveReference(index int) {
	s.clearError()
	refs := s.Workspace.References
	if index < 0 || index >= len(refs) {
		return
	}
	s.Workspace.References = append(refs[:index], refs[index+1:]...)
	s.Workspace.StyleDescription = ""
}

func (s *Session) ClearReferences() {
	s.clearError()
	s.Workspace.References = nil
	s.Workspace.StyleDescription = ""
}

func (s *Session) SetLayout(layout LayoutPreset) {
	s.clearError()
	s.Workspace.Layout = layout
}

func (s *Session) SetStyleStrength(value int) {
	s.clearError()
	s.Workspace.StyleStrength = clampStrength(value)
}

func (s *Session) SetAwaiting(target UploadTarget) {
	s.clearError()
	s.Workspace.Awaiting = target
}

// NeedsStyleAnalysis reports whether generation must run an analysis call
// first: references exist but no cached description does.
func (s *Session) NeedsStyleAnalysis() bool {
	return len(s.Workspace.References) > 0 && strings.TrimSpace(s.Workspace.StyleDescription) == ""
}

// StyleAnalyzed caches the analysis for reuse until the reference set
// changes.
func (s *Session) StyleAnalyzed(description string) {
	s.Workspace.StyleDescription = strings.TrimSpace(description)
}

// ValidateGenerate enforces the input requirements before any external call
// is made.
func (s *Session) ValidateGenerate() error {
	if s.Busy != RequestNone {
		return ErrBusy
	}
	if strings.TrimSpace(s.Workspace.Subjects[0]) == "" {
		return ErrMissingSubject
	}
	if s.Workspace.TwoSubjects && strings.TrimSpace(s.Workspace.Subjects[1]) == "" {
		return ErrMissingSecond
	}
	return nil
}

// BeginGenerate marks the thumbnail call (and its implicit analysis) as in
// flight. Callers run ValidateGenerate first.
func (s *Session) BeginGenerate() {
	s.clearError()
	s.Busy = RequestThumbnail
}

// ValidateEdit enforces the edit preconditions.
func (s *Session) ValidateEdit(instruction string) error {
	if s.Busy != RequestNone {
		return ErrBusy
	}
	if strings.TrimSpace(instruction) == "" {
		return ErrEmptyInstruction
	}
	if _, ok := s.Active(); !ok {
		return ErrNoActive
	}
	return nil
}

func (s *Session) BeginEdit(instruction string) {
	s.clearError()
	s.PendingEdit = strings.TrimSpace(instruction)
	s.Busy = RequestEdit
}

// ThumbnailProduced appends a new artifact at the cursor, discarding any
// redo history beyond it, and invalidates the suggestion list.
func (s *Session) ThumbnailProduced(dataURL string) Artifact {
	artifact := Artifact{
		ID:        uuid.New(),
		DataURL:   dataURL,
		CreatedAt: time.Now(),
	}

	if len(s.History) > 0 {
		s.History = s.History[:s.Cursor+1]
	}
	s.History = append(s.History, artifact)
	s.Cursor = len(s.History) - 1

	s.Suggestions = nil
	s.suggestionsFor = uuid.Nil
	s.PendingEdit = ""
	s.Busy = RequestNone
	return artifact
}

// GenerateFailed surfaces the error; history is untouched.
func (s *Session) GenerateFailed(msg string) {
	s.fail(msg)
}

// EditFailed surfaces the error; the typed instruction survives only on the
// manual path so the user can retry it.
func (s *Session) EditFailed(msg string, manual bool) {
	s.fail(msg)
	if !manual {
		s.PendingEdit = ""
	}
}

// Undo moves the cursor back one artifact. No-op at the start.
func (s *Session) Undo() bool {
	s.clearError()
	if s.Cursor <= 0 {
		return false
	}
	s.Cursor--
	return true
}

// Redo moves the cursor forward one artifact. No-op at the end.
func (s *Session) Redo() bool {
	s.clearError()
	if len(s.History) == 0 || s.Cursor >= len(s.History)-1 {
		return false
	}
	s.Cursor++
	return true
}

// Active returns the artifact at the cursor.
func (s *Session) Active() (Artifact, bool) {
	if len(s.History) == 0 {
		return Artifact{}, false
	}
	return s.History[s.Cursor], true
}

// NeedSuggestionFetch reports whether a background suggestion fetch should
// launch for the active artifact, and records it as pending when so. A fetch
// already in flight for it, or a cached list for it, suppresses the launch.
func (s *Session) NeedSuggestionFetch() (Artifact, bool) {
	active, ok := s.Active()
	if !ok {
		return Artifact{}, false
	}
	if s.suggestionsFor == active.ID || s.suggestionPending == active.ID {
		return Artifact{}, false
	}
	s.suggestionPending = active.ID
	return active, true
}

// ApplySuggestions installs a fetched list only if the artifact it was
// fetched for is still active; a stale result is discarded.
func (s *Session) ApplySuggestions(forID uuid.UUID, list []string) bool {
	if s.suggestionPending == forID {
		s.suggestionPending = uuid.Nil
	}

	active, ok := s.Active()
	if !ok || active.ID != forID {
		return false
	}

	s.Suggestions = list
	s.suggestionsFor = forID
	return true
}

// SuggestionFetchFailed releases the pending marker. Failures are never
// surfaced to the user.
func (s *Session) SuggestionFetchFailed(forID uuid.UUID) {
	if s.suggestionPending == forID {
		s.suggestionPending = uuid.Nil
	}
}

// ReferenceInputs converts the style references into transport form for the
// analysis request.
func (s *Session) ReferenceInputs() []gemini.ImageInput {
	return inputsFromDataURLs(s.Workspace.References)
}

// ThumbnailOptions projects the workspace into the prompt builder's input.
func (s *Session) ThumbnailOptions() ThumbnailOptions {
	subjects := []string{s.Workspace.Subjects[0]}
	if s.Workspace.TwoSubjects {
		subjects = append(subjects, s.Workspace.Subjects[1])
	}

	return ThumbnailOptions{
		Title:            s.SelectedTitle,
		Language:         s.Language,
		TwoSubjects:      s.Workspace.TwoSubjects,
		Subjects:         inputsFromDataURLs(subjects),
		Backgrounds:      inputsFromDataURLs(s.Workspace.Backgrounds),
		Layout:           s.Workspace.Layout,
		StyleDescription: s.Workspace.StyleDescription,
		StyleStrength:    s.Workspace.StyleStrength,
	}
}

func appendCapped(existing []string, added []string, limit int) []string {
	for _, url := range added {
		if len(existing) >= limit {
			break
		}
		if strings.TrimSpace(url) == "" {
			continue
		}
		existing = append(existing, url)
	}
	return existing
}

func clampStrength(value int) int {
	if value < MinStyleStrength {
		return MinStyleStrength
	}
	if value > MaxStyleStrength {
		return MaxStyleStrength
	}
	return value
}
