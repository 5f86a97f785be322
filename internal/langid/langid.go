// Package langid identifies the language of a transcript.
package langid

import (
	"context"
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// Undetermined is returned when no supported language could be picked.
const Undetermined = "und"

// Identifier guesses the ISO-639-1 code of text.
type Identifier interface {
	Identify(ctx context.Context, text string) (string, error)
}

// Lingua identifies languages with an n-gram model restricted to a fixed
// set of candidates.
type Lingua struct {
	detector lingua.LanguageDetector
	only     string
}

// NewLingua builds a detector for the given ISO-639-1 codes. A single code
// needs no model: every text is attributed to it.
func NewLingua(codes []string, minRelativeDistance float64) (*Lingua, error) {
	var langs []lingua.Language
	seen := make(map[lingua.Language]bool)
	for _, code := range codes {
		l, ok := languageFor(code)
		if !ok {
			return nil, fmt.Errorf("language %q is not supported by the identifier", code)
		}
		if !seen[l] {
			seen[l] = true
			langs = append(langs, l)
		}
	}

	switch len(langs) {
	case 0:
		return nil, fmt.Errorf("no languages configured")
	case 1:
		return &Lingua{only: isoCode(langs[0])}, nil
	}

	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(langs...).
		WithMinimumRelativeDistance(minRelativeDistance).
		Build()
	return &Lingua{detector: detector}, nil
}

// Identify returns the detected code, or Undetermined when the model cannot
// separate the candidates.
func (l *Lingua) Identify(_ context.Context, text string) (string, error) {
	if l.only != "" {
		return l.only, nil
	}
	if strings.TrimSpace(text) == "" {
		return Undetermined, nil
	}
	lang, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		return Undetermined, nil
	}
	return isoCode(lang), nil
}

func languageFor(code string) (lingua.Language, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range lingua.AllLanguages() {
		if isoCode(l) == code {
			return l, true
		}
	}
	return lingua.Unknown, false
}

func isoCode(l lingua.Language) string {
	return strings.ToLower(l.IsoCode639_1().String())
}
