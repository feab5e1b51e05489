package studio

import (
	"fmt"
	"strings"

	"thumb-studio-bot/internal/gemini"
)

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

func ParseLanguage(value string) Language {
	if strings.ToLower(strings.TrimSpace(value)) == string(LanguageArabic) {
		return LanguageArabic
	}
	return LanguageEnglish
}

type LayoutPreset string

const (
	LayoutDefault   LayoutPreset = "default"
	LayoutVersus    LayoutPreset = "versus"
	LayoutCollab    LayoutPreset = "collab"
	LayoutExplainer LayoutPreset = "explainer"
)

func ParseLayout(value string) LayoutPreset {
	key := LayoutPreset(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := layoutSpecs[key]; ok {
		return key
	}
	return LayoutDefault
}

// LayoutOption is a layout preset in UI-presentable form.
type LayoutOption struct {
	Key  string
	Name string
}

// Layouts lists the presets in display order.
func Layouts() []LayoutOption {
	keys := []LayoutPreset{LayoutDefault, LayoutVersus, LayoutCollab, LayoutExplainer}
	out := make([]LayoutOption, 0, len(keys))
	for _, k := range keys {
		out = append(out, LayoutOption{Key: string(k), Name: layoutSpecs[k].Name})
	}
	return out
}

const (
	canvasWidth  = 1280
	canvasHeight = 720
	aspectRatio  = "16:9"

	titleCount     = 20
	titleMaxRunes  = 70
	suggestionWant = 3
)

type languageSpec struct {
	Name      string
	Script    string
	Direction string
	Font      string
}

var languageSpecs = map[Language]languageSpec{
	LanguageEnglish: {
		Name:      "English",
		Script:    "Latin",
		Direction: "left-to-right",
		Font:      "heavy condensed sans-serif, all-caps friendly",
	},
	LanguageArabic: {
		Name:      "Arabic",
		Script:    "Arabic",
		Direction: "right-to-left",
		Font:      "bold modern Arabic typeface (Kufi or similar), fully connected letterforms",
	},
}

type layoutSpec struct {
	Name  string
	Rules []string
}

var layoutSpecs = map[LayoutPreset]layoutSpec{
	LayoutDefault: {
		Name: "Default",
		Rules: []string{
			"Single dominant placement: the subject fills roughly half the frame height, positioned on a rule-of-thirds line.",
			"Leave clean negative space for the title text on the opposite side.",
			"Strong subject/background separation with a subtle rim light.",
		},
	},
	LayoutVersus: {
		Name: "Versus / Comparison",
		Rules: []string{
			"Place the two subjects on opposing sides of the frame, facing inward toward each other.",
			"Divide the composition with a bold split or energy line down the middle.",
			"Give each side a contrasting color grade to heighten the sense of confrontation.",
			"Title text sits across the center or bottom, never covering either face.",
		},
	},
	LayoutCollab: {
		Name: "Collaboration",
		Rules: []string{
			"Place the subjects side by side in a friendly pairing, shoulders slightly overlapping.",
			"Use one unified warm color grade across both subjects.",
			"Both faces at similar scale; neither subject dominates.",
		},
	},
	LayoutExplainer: {
		Name: "Explainer",
		Rules: []string{
			"Place the subject smaller, toward one edge, gesturing or reacting.",
			"Reserve most of the canvas for a large, simple graphic element that illustrates the topic (arrows, diagrams, a highlighted object).",
			"Keep the graphic bold and readable at small sizes.",
		},
	},
}

// BuildTitleRequest assembles the prompt for generating candidate video
// titles for a topic. Deterministic; no I/O.
func BuildTitleRequest(topic string, lang Language) gemini.Request {
	spec := specForLanguage(lang)

	var b strings.Builder
	b.Grow(1024)

	b.WriteString("TASK: Write YouTube video titles.\n\n")
	b.WriteString("TOPIC:\n")
	b.WriteString("- " + strings.TrimSpace(topic) + "\n\n")

	b.WriteString("REQUIREMENTS:\n")
	b.WriteString(fmt.Sprintf("- Produce exactly %d candidate titles.\n", titleCount))
	b.WriteString(fmt.Sprintf("- Every title must be under %d characters.\n", titleMaxRunes))
	b.WriteString("- Mix rhetorical styles across the set: questions, numbered lists, bold claims, how-to phrasings.\n")
	b.WriteString("- Each title must be compelling on its own; no duplicates, no numbering prefixes.\n")
	b.WriteString(fmt.Sprintf("- Write every title in %s.\n", spec.Name))
	if lang == LanguageArabic {
		b.WriteString("- Phrase the titles in natural Arabic cultural idiom, not literal translations from English.\n")
	}
	b.WriteString("\n")

	b.WriteString("OUTPUT RULES:\n")
	b.WriteString(fmt.Sprintf("- Return a JSON array of exactly %d strings.\n", titleCount))
	b.WriteString("- No surrounding prose, no markdown, no keys.\n")

	return gemini.Request{Instruction: strings.TrimSpace(b.String())}
}

// ThumbnailOptions carries everything the thumbnail builder needs. Subjects
// and Backgrounds are ordered; subjects always precede backgrounds in the
// assembled request.
type ThumbnailOptions struct {
	Title            string
	Language         Language
	TwoSubjects      bool
	Subjects         []gemini.ImageInput
	Backgrounds      []gemini.ImageInput
	Layout           LayoutPreset
	StyleDescription string
	StyleStrength    int
}

// BuildThumbnailRequest assembles the prompt for generating a thumbnail from
// the workspace state. Validation happens before this is called; the builder
// trusts its inputs.
func BuildThumbnailRequest(opts ThumbnailOptions) gemini.Request {
	spec := specForLanguage(opts.Language)
	layout, ok := layoutSpecs[opts.Layout]
	if !ok {
		layout = layoutSpecs[LayoutDefault]
	}

	var b strings.Builder
	b.Grow(4096)

	b.WriteString("TASK: Design a YouTube video thumbnail.\n\n")

	b.WriteString("OUTPUT SPEC:\n")
	b.WriteString(fmt.Sprintf("- Canvas: exactly %dx%d pixels (%s).\n", canvasWidth, canvasHeight, aspectRatio))
	b.WriteString("- Full-bleed: no borders, bars, or padding; extend the scene to every edge.\n")
	b.WriteString("- High contrast and readability at small sizes; this must work as a 320px-wide preview.\n\n")

	b.WriteString("TITLE TEXT:\n")
	b.WriteString(fmt.Sprintf("- Render this title verbatim: %q\n", strings.TrimSpace(opts.Title)))
	b.WriteString(fmt.Sprintf("- Language: %s, %s script, %s reading direction.\n", spec.Name, spec.Script, spec.Direction))
	b.WriteString(fmt.Sprintf("- Typography: %s, with a strong outline or drop shadow for contrast.\n", spec.Font))
	b.WriteString("- The text may be shortened to its strongest three to five words if the full title does not fit legibly.\n\n")

	subjectCount := 1
	if opts.TwoSubjects {
		subjectCount = 2
	}
	b.WriteString("SUBJECT RULES:\n")
	b.WriteString(fmt.Sprintf("- The first %d attached image(s) are the main subject photo(s); %d subject(s) must appear in the thumbnail.\n", len(opts.Subjects), subjectCount))
	writeLines(&b, []string{
		"FACIAL LIKENESS LOCK: never alter, beautify, stylize, or regenerate any subject's face. The face in the output must be the exact face from the photo.",
		"You may remove the photo background, crop, scale, re-light, and composite the subject into the new scene.",
		"Expressions stay as photographed; convey emotion through composition and effects, not facial changes.",
	})
	b.WriteString("\n")

	b.WriteString("LAYOUT (" + layout.Name + "):\n")
	writeLines(&b, layout.Rules)
	b.WriteString("\n")

	if len(opts.Backgrounds) > 0 {
		b.WriteString("BACKGROUND IMAGES:\n")
		b.WriteString(fmt.Sprintf("- The %d image(s) following the subject photo(s) are background/context material.\n", len(opts.Backgrounds)))
		writeLines(&b, []string{
			"Blend them into the composition as texture, backdrop, or context; crop and recolor freely.",
			"They support the scene; they must never compete with the subject or the title text.",
		})
		b.WriteString("\n")
	}

	if desc := strings.TrimSpace(opts.StyleDescription); desc != "" {
		b.WriteString("STYLE DIRECTION:\n")
		b.WriteString(fmt.Sprintf("- Apply the following analyzed style at roughly %d%% influence (0%% = ignore, 100%% = match it closely):\n", clampStrength(opts.StyleStrength)))
		for _, line := range strings.Split(desc, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				b.WriteString("  " + line + "\n")
			}
		}
		b.WriteString("- Style applies to palette, typography treatment, and effects only; never to facial likeness.\n\n")
	}

	b.WriteString("AVOID:\n")
	writeLines(&b, []string{
		"altered or regenerated faces", "extra people", "watermarks", "channel logos",
		"misspelled title text", "unreadable typography", "borders or letterboxing",
		"cluttered composition", "low contrast",
	})
	b.WriteString("\n")

	b.WriteString("OUTPUT RULES:\n")
	b.WriteString("- Return exactly one image. No text, no JSON.\n")

	images := make([]gemini.ImageInput, 0, len(opts.Subjects)+len(opts.Backgrounds))
	images = append(images, opts.Subjects...)
	images = append(images, opts.Backgrounds...)

	return gemini.Request{
		Instruction: strings.TrimSpace(b.String()),
		Images:      images,
		AspectRatio: aspectRatio,
	}
}

// BuildStyleAnalysisRequest assembles the prompt for summarizing reference
// thumbnails into a reusable style description.
func BuildStyleAnalysisRequest(refs []gemini.ImageInput) gemini.Request {
	var b strings.Builder
	b.Grow(512)

	b.WriteString("TASK: Analyze the visual style of the attached YouTube thumbnail(s).\n\n")
	b.WriteString("Describe, as a compact breakdown an art director could hand to a designer:\n")
	writeLines(&b, []string{
		"Palette: dominant colors and how they are used.",
		"Typography: weight, case, placement, outline/shadow treatment.",
		"Composition: subject placement, scale, negative space.",
		"Effects & mood: lighting, glows, outlines, saturation, overall energy.",
	})
	b.WriteString("\nKeep it under 120 words. Plain text only; no headings beyond the four labels above.\n")

	return gemini.Request{Instruction: strings.TrimSpace(b.String()), Images: refs}
}

// BuildEditRequest assembles the prompt for applying a free-text change to
// the active thumbnail.
func BuildEditRequest(active gemini.ImageInput, instruction string, lang Language) gemini.Request {
	spec := specForLanguage(lang)

	var b strings.Builder
	b.Grow(1024)

	b.WriteString("TASK: Edit the attached YouTube thumbnail.\n\n")
	b.WriteString("CHANGE REQUESTED:\n")
	b.WriteString("- " + strings.TrimSpace(instruction) + "\n\n")

	b.WriteString("RULES:\n")
	writeLines(&b, []string{
		"Apply only the requested change; keep everything else as-is.",
		"FACIAL LIKENESS LOCK: faces must remain pixel-faithful to the original. If the change asks for a different emotion, convey it with added effects (lighting, color, graphic elements), never by altering facial features.",
		fmt.Sprintf("Keep the canvas exactly %dx%d pixels.", canvasWidth, canvasHeight),
		fmt.Sprintf("Any text stays in %s (%s script, %s).", spec.Name, spec.Script, spec.Direction),
	})
	b.WriteString("\n")

	b.WriteString("OUTPUT RULES:\n")
	b.WriteString("- Return exactly one image. No text, no JSON.\n")

	return gemini.Request{
		Instruction: strings.TrimSpace(b.String()),
		Images:      []gemini.ImageInput{active},
		AspectRatio: aspectRatio,
	}
}

// BuildSuggestionRequest assembles the prompt for improvement suggestions on
// the current thumbnail's direction.
func BuildSuggestionRequest(title string, lang Language) gemini.Request {
	spec := specForLanguage(lang)

	var b strings.Builder
	b.Grow(512)

	b.WriteString("TASK: Suggest thumbnail edits.\n\n")
	b.WriteString(fmt.Sprintf("The thumbnail is for a video titled %q.\n\n", strings.TrimSpace(title)))

	b.WriteString("REQUIREMENTS:\n")
	writeLines(&b, []string{
		fmt.Sprintf("Produce exactly %d suggestions.", suggestionWant),
		"Each is a short, unique, actionable editing instruction in the imperative mood (e.g. \"Make the title text yellow\").",
		"Each must be usable verbatim as an image-edit instruction.",
		fmt.Sprintf("Write them in %s.", spec.Name),
	})
	b.WriteString("\n")

	b.WriteString("OUTPUT RULES:\n")
	b.WriteString(fmt.Sprintf("- Return a JSON array of exactly %d strings. No other text.\n", suggestionWant))

	return gemini.Request{Instruction: strings.TrimSpace(b.String())}
}

func specForLanguage(lang Language) languageSpec {
	if spec, ok := languageSpecs[lang]; ok {
		return spec
	}
	return languageSpecs[LanguageEnglish]
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString("- " + line + "\n")
	}
}
