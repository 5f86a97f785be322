// Package language turns a capture session into a Transcript in the
// baseline language: it identifies what the user spoke, translates it when
// needed, and degrades to the original text when translation fails.
package language

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nadzzz/saathi/internal/config"
)

// Profile describes one supported language.
type Profile struct {
	Code            string // ISO-639-1
	Name            string
	Locale          string // BCP-47, used for speech output
	TranslationCode string // code understood by the translation service
}

var defaultProfiles = []Profile{
	{Code: "en", Name: "English", Locale: "en-IN", TranslationCode: "en"},
	{Code: "hi", Name: "Hindi", Locale: "hi-IN", TranslationCode: "hi"},
	{Code: "bn", Name: "Bengali", Locale: "bn-IN", TranslationCode: "bn"},
	{Code: "ta", Name: "Tamil", Locale: "ta-IN", TranslationCode: "ta"},
	{Code: "te", Name: "Telugu", Locale: "te-IN", TranslationCode: "te"},
	{Code: "mr", Name: "Marathi", Locale: "mr-IN", TranslationCode: "mr"},
	{Code: "gu", Name: "Gujarati", Locale: "gu-IN", TranslationCode: "gu"},
	{Code: "pa", Name: "Punjabi", Locale: "pa-IN", TranslationCode: "pa"},
	{Code: "ur", Name: "Urdu", Locale: "ur-IN", TranslationCode: "ur"},
}

// DefaultProfiles returns the built-in language table.
func DefaultProfiles() []Profile {
	out := make([]Profile, len(defaultProfiles))
	copy(out, defaultProfiles)
	return out
}

// Profiles is an immutable set of supported languages with one of them
// designated as the baseline the classifier understands.
type Profiles struct {
	baseline string
	byCode   map[string]Profile
}

// NewProfiles validates list and returns the set. The baseline must be
// one of the listed codes.
func NewProfiles(baseline string, list []Profile) (Profiles, error) {
	baseline = strings.ToLower(strings.TrimSpace(baseline))
	byCode := make(map[string]Profile, len(list))
	for _, p := range list {
		p.Code = strings.ToLower(strings.TrimSpace(p.Code))
		if p.Code == "" {
			return Profiles{}, fmt.Errorf("language profile %q has no code", p.Name)
		}
		if _, dup := byCode[p.Code]; dup {
			return Profiles{}, fmt.Errorf("duplicate language profile %q", p.Code)
		}
		if p.Name == "" {
			p.Name = p.Code
		}
		if p.Locale == "" {
			p.Locale = p.Code
		}
		if p.TranslationCode == "" {
			p.TranslationCode = p.Code
		}
		byCode[p.Code] = p
	}
	if _, ok := byCode[baseline]; !ok {
		return Profiles{}, fmt.Errorf("baseline language %q is not among the profiles", baseline)
	}
	return Profiles{baseline: baseline, byCode: byCode}, nil
}

// FromConfig builds profiles from configuration, falling back to the
// built-in table when none are configured.
func FromConfig(cfg config.LanguagesConfig) (Profiles, error) {
	if len(cfg.Profiles) == 0 {
		return NewProfiles(cfg.Baseline, DefaultProfiles())
	}
	list := make([]Profile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		list = append(list, Profile{
			Code:            p.Code,
			Name:            p.Name,
			Locale:          p.Locale,
			TranslationCode: p.TranslationCode,
		})
	}
	return NewProfiles(cfg.Baseline, list)
}

// Baseline returns the pivot language profile.
func (p Profiles) Baseline() Profile { return p.byCode[p.baseline] }

// Lookup returns the profile for code.
func (p Profiles) Lookup(code string) (Profile, bool) {
	prof, ok := p.byCode[strings.ToLower(code)]
	return prof, ok
}

// Supported reports whether code has a profile.
func (p Profiles) Supported(code string) bool {
	_, ok := p.Lookup(code)
	return ok
}

// Codes returns the supported codes, sorted.
func (p Profiles) Codes() []string {
	codes := make([]string, 0, len(p.byCode))
	for c := range p.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
