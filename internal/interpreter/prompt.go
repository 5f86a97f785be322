package interpreter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nadzzz/saathi/internal/intent"
)

// SystemPrompt builds the instruction given to LLM classifiers. The model is
// asked for a JSON object naming one intent from the catalog.
func SystemPrompt(extra string) string {
	var sb strings.Builder
	sb.WriteString("You classify short voice commands spoken to an assistive phone assistant.\n")
	sb.WriteString("Pick exactly one intent from this list:\n")
	for _, i := range intent.All() {
		sb.WriteString("- " + i.String() + "\n")
	}
	if extra != "" {
		sb.WriteString("\nAdditional context: " + extra + "\n")
	}
	sb.WriteString("\nReturn a JSON object with:\n")
	sb.WriteString("- \"intent\": one name from the list, UNKNOWN if nothing fits\n")
	sb.WriteString("- \"confidence\": a number between 0 and 1\n")
	sb.WriteString("\nExample: {\"intent\": \"SET_ALARM\", \"confidence\": 0.92}\n")
	return sb.String()
}

// ParseClassification decodes an LLM reply produced for SystemPrompt.
// Unknown intent names are reported as UNKNOWN with zero confidence.
func ParseClassification(content string) (intent.Classification, error) {
	var reply struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return intent.Classification{}, fmt.Errorf("could not parse LLM response: %.200s", content)
	}
	in, ok := intent.Parse(reply.Intent)
	if !ok {
		return intent.Classification{Intent: intent.Unknown}, nil
	}
	conf := min(max(reply.Confidence, 0), 1)
	return intent.Classification{Intent: in, Confidence: conf}, nil
}

// ExtFromContentType returns the file extension upload APIs expect for an
// audio MIME type.
func ExtFromContentType(ct string) string {
	switch {
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "ogg"):
		return ".ogg"
	case strings.Contains(ct, "mp3"), strings.Contains(ct, "mpeg"):
		return ".mp3"
	case strings.Contains(ct, "flac"):
		return ".flac"
	case strings.Contains(ct, "webm"):
		return ".webm"
	case strings.Contains(ct, "m4a"), strings.Contains(ct, "mp4"):
		return ".m4a"
	default:
		return ".wav"
	}
}

// NormalizeLanguage converts full language names (as returned by Whisper)
// to ISO-639-1 codes.
func NormalizeLanguage(lang string) string {
	if len(lang) == 2 {
		return strings.ToLower(lang)
	}
	if code, ok := languageNames[strings.ToLower(lang)]; ok {
		return code
	}
	return strings.ToLower(lang)
}

var languageNames = map[string]string{
	"english":    "en",
	"hindi":      "hi",
	"bengali":    "bn",
	"tamil":      "ta",
	"telugu":     "te",
	"marathi":    "mr",
	"gujarati":   "gu",
	"kannada":    "kn",
	"malayalam":  "ml",
	"punjabi":    "pa",
	"urdu":       "ur",
	"french":     "fr",
	"spanish":    "es",
	"german":     "de",
	"portuguese": "pt",
	"arabic":     "ar",
	"chinese":    "zh",
}
