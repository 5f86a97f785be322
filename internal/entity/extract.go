package entity

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nadzzz/saathi/internal/intent"
)

// Extractor runs the slot rules. Times are anchored on the date returned
// by its clock.
type Extractor struct {
	now func() time.Time
}

// NewExtractor returns an extractor using now as its clock. A nil clock
// means time.Now.
func NewExtractor(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{now: now}
}

var defaultExtractor = NewExtractor(nil)

// Extract runs the default extractor.
func Extract(text string, in intent.Intent) Entities {
	return defaultExtractor.Extract(text, in)
}

// Extract fills the slots declared for in. Slots whose rules do not match
// are left absent.
func (x *Extractor) Extract(text string, in intent.Intent) Entities {
	slots := in.Slots()
	e := Entities{raw: text}
	if slots == 0 {
		return e
	}
	lower := strings.ToLower(text)

	if slots.Has(intent.SlotContact) {
		if v, ok := contactName(lower); ok {
			WithContact(v)(&e)
		}
	}
	if slots.Has(intent.SlotPhone) {
		if v, ok := phoneNumber(text); ok {
			WithPhone(v)(&e)
		}
	}
	if slots.Has(intent.SlotTime) {
		if v, ok := timeOfDay(lower, x.now(), bareHourIntents[in]); ok {
			WithTime(v)(&e)
		}
	}
	if slots.Has(intent.SlotDuration) {
		if v, ok := durationMinutes(lower); ok {
			WithDuration(v)(&e)
		}
	}
	if slots.Has(intent.SlotApp) {
		if v, ok := appName(lower); ok {
			WithApp(v)(&e)
		}
	}
	if slots.Has(intent.SlotMedication) {
		if v, ok := medicationName(lower); ok {
			WithMedication(v)(&e)
		}
	}
	if slots.Has(intent.SlotNumber) {
		if v, ok := firstNumber(text); ok {
			WithNumber(v)(&e)
		}
	}
	if slots.Has(intent.SlotLocation) {
		if v, ok := location(lower); ok {
			WithLocation(v)(&e)
		}
	}
	return e
}

var (
	contactTriggers = regexp.MustCompile(`\b(?:call|phone|dial|ring|message|text|whatsapp|sms|contact)\s+`)
	politeWords     = regexp.MustCompile(`\b(?:please|now)\b`)
	contactFillers  = regexp.MustCompile(`\b(?:send|a|an|to)\b`)
	myRelation      = regexp.MustCompile(`\bmy\s+(\w+)`)
)

func contactName(lower string) (string, bool) {
	s := contactTriggers.ReplaceAllString(lower, "")
	s = politeWords.ReplaceAllString(s, "")
	s = contactFillers.ReplaceAllString(s, "")
	if m := myRelation.FindStringSubmatch(s); m != nil {
		return capitalize(m[1]), true
	}
	return firstToken(s)
}

var phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{5,}\d`)

func phoneNumber(text string) (string, bool) {
	m := phonePattern.FindString(text)
	if m == "" {
		return "", false
	}
	var b strings.Builder
	digits := 0
	for _, r := range m {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+':
			b.WriteRune(r)
		}
	}
	if digits < 7 {
		return "", false
	}
	return b.String(), true
}

var (
	twelveHour = regexp.MustCompile(`\b(\d{1,2})(?:[:\s](\d{2}))?\s*(am|pm)\b`)
	clockTime  = regexp.MustCompile(`\b(\d{1,2})[:\s](\d{2})\b`)
	bareHour   = regexp.MustCompile(`\b(\d{1,2})(?:\s*o'?clock)?\b`)
	// A lone number only reads as an hour after "at" or before "o'clock".
	markedHour = regexp.MustCompile(`\bat\s+(\d{1,2})\b|\b(\d{1,2})\s*o'?clock\b`)
)

// bareHourIntents take any lone number as an hour. Other time slots would
// misread counts such as "take 2 tablets".
var bareHourIntents = map[intent.Intent]bool{
	intent.SetAlarm:          true,
	intent.CancelAlarm:       true,
	intent.BookAppointment:   true,
	intent.CancelAppointment: true,
}

// timeOfDay applies the first matching rule; a match with an out of range
// hour or minute leaves the slot absent.
func timeOfDay(lower string, now time.Time, bare bool) (time.Time, bool) {
	var hour, minute int
	if m := twelveHour.FindStringSubmatch(lower); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 {
			return time.Time{}, false
		}
		switch {
		case m[3] == "pm" && hour != 12:
			hour += 12
		case m[3] == "am" && hour == 12:
			hour = 0
		}
	} else if m := clockTime.FindStringSubmatch(lower); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
	} else if m := bareHour.FindStringSubmatch(lower); bare && m != nil {
		hour, _ = strconv.Atoi(m[1])
	} else if m := markedHour.FindStringSubmatch(lower); m != nil {
		hour, _ = strconv.Atoi(m[1] + m[2])
	} else {
		return time.Time{}, false
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), true
}

var (
	minutesPattern = regexp.MustCompile(`(\d+)\s*(?:minute|min)`)
	secondsPattern = regexp.MustCompile(`(\d+)\s*(?:second|sec)`)
	hoursPattern   = regexp.MustCompile(`(\d+)\s*(?:hour|hr)`)
	digitsPattern  = regexp.MustCompile(`\d+`)
)

func durationMinutes(lower string) (int, bool) {
	if m := minutesPattern.FindStringSubmatch(lower); m != nil {
		return atoi(m[1])
	}
	if m := secondsPattern.FindStringSubmatch(lower); m != nil {
		secs, ok := atoi(m[1])
		if !ok {
			return 0, false
		}
		return max(secs/60, 1), true
	}
	if m := hoursPattern.FindStringSubmatch(lower); m != nil {
		hours, ok := atoi(m[1])
		if !ok {
			return 0, false
		}
		return hours * 60, true
	}
	if m := digitsPattern.FindString(lower); m != "" {
		return atoi(m)
	}
	return 0, false
}

var appVerbs = regexp.MustCompile(`^\s*(?:open|launch|start|run)\s+`)

// appSynonyms is checked in order, so longer phrases come before the
// shorter ones they contain.
var appSynonyms = []struct {
	keys []string
	name string
}{
	{[]string{"google maps", "maps"}, "Google Maps"},
	{[]string{"whatsapp", "whats app"}, "WhatsApp"},
	{[]string{"youtube"}, "YouTube"},
	{[]string{"play store"}, "Play Store"},
	{[]string{"camera"}, "Camera"},
	{[]string{"gallery", "photos"}, "Gallery"},
	{[]string{"settings"}, "Settings"},
	{[]string{"calculator"}, "Calculator"},
	{[]string{"calendar"}, "Calendar"},
	{[]string{"clock"}, "Clock"},
	{[]string{"chrome", "browser"}, "Chrome"},
	{[]string{"gmail", "email", "mail"}, "Gmail"},
	{[]string{"spotify"}, "Spotify"},
	{[]string{"facebook"}, "Facebook"},
	{[]string{"instagram"}, "Instagram"},
	{[]string{"contacts"}, "Contacts"},
	{[]string{"messages", "sms"}, "Messages"},
	{[]string{"phone", "dialer"}, "Phone"},
}

func appName(lower string) (string, bool) {
	s := appVerbs.ReplaceAllString(lower, "")
	for _, entry := range appSynonyms {
		for _, k := range entry.keys {
			if strings.Contains(s, k) {
				return entry.name, true
			}
		}
	}
	return firstToken(s)
}

var medicationFillers = regexp.MustCompile(`\b(?:i took|i have taken|taken|took|take|medicines?|medications?|pills?|tablets?|my|skip|skipped|dose|add|remove|delete|refill|remind me to|the|a|to|for|of|at)\b`)

// medicationName returns the first remaining word that contains a letter,
// so dosage counts are not mistaken for names.
func medicationName(lower string) (string, bool) {
	s := medicationFillers.ReplaceAllString(lower, " ")
	for _, tok := range strings.Fields(s) {
		if strings.IndexFunc(tok, unicode.IsLetter) >= 0 {
			return capitalize(tok), true
		}
	}
	return "", false
}

var (
	locationTriggers = regexp.MustCompile(`\b(?:nearest|nearby|find|search|locate|near me|navigate to|directions to|take me to|weather in|weather for|weather)\b`)
	spaces           = regexp.MustCompile(`\s+`)
)

var locationCategories = []struct {
	keys []string
	name string
}{
	{[]string{"hospital"}, "hospital"},
	{[]string{"pharmacy", "medical store", "chemist"}, "pharmacy"},
	{[]string{"clinic"}, "clinic"},
	{[]string{"doctor"}, "doctor"},
	{[]string{"emergency"}, "emergency room"},
}

func location(lower string) (string, bool) {
	s := locationTriggers.ReplaceAllString(lower, "")
	s = strings.TrimSpace(spaces.ReplaceAllString(s, " "))
	for _, c := range locationCategories {
		for _, k := range c.keys {
			if strings.Contains(s, k) {
				return c.name, true
			}
		}
	}
	if s == "" {
		return "", false
	}
	return s, true
}

func firstNumber(text string) (int, bool) {
	m := digitsPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	return atoi(m)
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstToken(s string) (string, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", false
	}
	return capitalize(fields[0]), true
}

// capitalize upper-cases the first rune when it is lower case and leaves
// the rest untouched.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
