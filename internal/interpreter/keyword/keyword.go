// Package keyword implements an offline Classifier that matches phrases
// against an ordered rule table. It needs no network and is the default
// backend for development and tests.
package keyword

import (
	"context"
	"regexp"
	"strings"

	"github.com/nadzzz/saathi/internal/intent"
	"github.com/nadzzz/saathi/internal/interpreter"
)

// Confidence levels reported by the rule table.
const (
	// StrongMatch is reported when a rule phrase matches as whole words.
	StrongMatch = 0.9
	// NoMatch is reported for UNKNOWN.
	NoMatch = 0.0
)

type rule struct {
	in      intent.Intent
	phrases []string
}

// rules are tried in order, so specific phrasings come before the general
// ones they overlap with ("whatsapp" before "message", "timer" before
// "alarm").
var rules = []rule{
	{intent.CallEmergency, []string{"call ambulance", "call emergency", "call 112", "call 911", "call 108"}},
	{intent.EmergencyAlert, []string{"help me", "i fell", "i have fallen", "emergency alert", "sos"}},
	{intent.SendWhatsApp, []string{"whatsapp"}},
	{intent.ReadMessages, []string{"read my messages", "read messages", "any new messages"}},
	{intent.SendMessage, []string{"send a message", "send message", "message", "text", "sms"}},
	{intent.ShareLocation, []string{"share my location", "share location", "send my location"}},
	{intent.CallContact, []string{"call", "phone", "dial", "ring"}},

	{intent.SkipDose, []string{"skip", "skipped"}},
	{intent.LogMedicationTaken, []string{"i took", "i have taken", "took my", "taken my"}},
	{intent.DeleteMedication, []string{"delete medication", "remove medication", "stop taking", "delete medicine", "remove medicine"}},
	{intent.RefillReminder, []string{"refill"}},
	{intent.NextDose, []string{"next dose", "when is my next", "when should i take"}},
	{intent.ListMedications, []string{"list my medications", "my medicines", "my medications", "what medicines", "which medicines"}},
	{intent.MedicationReminder, []string{"remind me to take", "medicine reminder", "medication reminder", "pill reminder"}},
	{intent.AddMedication, []string{"add medication", "add medicine", "add a medicine", "new medicine", "add pill"}},

	{intent.CancelAppointment, []string{"cancel appointment", "cancel my appointment", "cancel the appointment"}},
	{intent.ListAppointments, []string{"my appointments", "list appointments", "upcoming appointments"}},
	{intent.BookAppointment, []string{"book appointment", "book an appointment", "schedule appointment", "appointment with"}},
	{intent.LogBloodPressure, []string{"blood pressure", "bp"}},
	{intent.LogBloodSugar, []string{"blood sugar", "sugar level", "glucose"}},
	{intent.LogHeartRate, []string{"heart rate", "pulse"}},
	{intent.LogWeight, []string{"my weight", "weigh", "weight"}},
	{intent.FindNearby, []string{"nearest", "nearby", "near me", "find a", "find the"}},

	{intent.SetTimer, []string{"timer", "countdown"}},
	{intent.CancelAlarm, []string{"cancel alarm", "cancel my alarm", "delete alarm", "turn off alarm"}},
	{intent.SetAlarm, []string{"alarm", "wake me"}},
	{intent.SetReminder, []string{"remind me", "reminder"}},
	{intent.FlashlightOn, []string{"flashlight on", "torch on", "turn on flashlight", "turn on the flashlight", "turn on torch"}},
	{intent.FlashlightOff, []string{"flashlight off", "torch off", "turn off flashlight", "turn off the flashlight", "turn off torch"}},
	{intent.SetVolume, []string{"set volume", "volume to"}},
	{intent.VolumeUp, []string{"volume up", "louder", "increase volume", "increase the volume"}},
	{intent.VolumeDown, []string{"volume down", "quieter", "decrease volume", "lower the volume", "reduce volume"}},
	{intent.SetBrightness, []string{"set brightness", "brightness to"}},
	{intent.BrightnessUp, []string{"brightness up", "brighter", "increase brightness"}},
	{intent.BrightnessDown, []string{"brightness down", "dimmer", "decrease brightness", "reduce brightness"}},
	{intent.WifiOn, []string{"wifi on", "turn on wifi", "enable wifi"}},
	{intent.WifiOff, []string{"wifi off", "turn off wifi", "disable wifi"}},
	{intent.BluetoothOn, []string{"bluetooth on", "turn on bluetooth", "enable bluetooth"}},
	{intent.BluetoothOff, []string{"bluetooth off", "turn off bluetooth", "disable bluetooth"}},
	{intent.BatteryStatus, []string{"battery"}},
	{intent.TakePhoto, []string{"take a photo", "take a picture", "take photo", "selfie"}},
	{intent.SilentMode, []string{"silent", "do not disturb", "mute"}},
	{intent.CloseApp, []string{"close"}},
	{intent.PlayMusic, []string{"play music", "play a song", "play some", "play"}},
	{intent.StopMusic, []string{"stop music", "stop the music", "pause music"}},
	{intent.OpenApp, []string{"open", "launch", "start"}},

	{intent.Weather, []string{"weather", "temperature outside", "going to rain"}},
	{intent.CurrentTime, []string{"what time", "the time", "current time"}},
	{intent.CurrentDate, []string{"what date", "what day", "today's date", "the date"}},
	{intent.ReadNotes, []string{"read my notes", "read notes", "my notes"}},
	{intent.TakeNote, []string{"take a note", "note down", "write down", "make a note"}},
	{intent.Navigate, []string{"navigate", "directions to", "take me to", "how do i get to"}},
	{intent.Calculate, []string{"calculate", "plus", "minus", "times", "divided by"}},

	{intent.Wikipedia, []string{"wikipedia", "who is", "who was"}},
	{intent.News, []string{"news", "headlines"}},
	{intent.Define, []string{"define", "meaning of", "what does"}},
	{intent.WebSearch, []string{"search for", "google", "look up", "search"}},

	{intent.Thanks, []string{"thank you", "thanks"}},
	{intent.Goodbye, []string{"goodbye", "bye", "good night", "see you"}},
	{intent.Joke, []string{"joke", "make me laugh"}},
	{intent.Help, []string{"what can you do", "help"}},
	{intent.Greeting, []string{"hello", "hi", "hey", "good morning", "good evening", "namaste"}},
	{intent.Affirm, []string{"yes", "yeah", "yep", "sure", "okay", "ok", "confirm", "do it", "go ahead"}},
	{intent.Deny, []string{"no", "nope", "cancel", "don't", "stop"}},
}

type compiledRule struct {
	in intent.Intent
	re *regexp.Regexp
}

var compiled = func() []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		quoted := make([]string, len(r.phrases))
		for i, p := range r.phrases {
			quoted[i] = regexp.QuoteMeta(p)
		}
		out = append(out, compiledRule{
			in: r.in,
			re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
	return out
}()

// Interpreter classifies with the rule table. It cannot transcribe.
type Interpreter struct{}

// New creates a keyword interpreter.
func New() *Interpreter { return &Interpreter{} }

// Name returns the backend identifier.
func (i *Interpreter) Name() string { return "keyword" }

// Transcribe is not supported by the keyword backend.
func (i *Interpreter) Transcribe(context.Context, []byte, string, interpreter.TranscribeOpts) (*interpreter.TranscribeResult, error) {
	return nil, interpreter.ErrUnsupported
}

// Classify returns the first rule whose phrase appears in text.
func (i *Interpreter) Classify(_ context.Context, text string) (intent.Classification, error) {
	return Match(text), nil
}

// Close is a no-op for the keyword interpreter.
func (i *Interpreter) Close() error { return nil }

// Match runs the rule table against text.
func Match(text string) intent.Classification {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, r := range compiled {
		if r.re.MatchString(lower) {
			return intent.Classification{Intent: r.in, Confidence: StrongMatch}
		}
	}
	return intent.Classification{Intent: intent.Unknown, Confidence: NoMatch}
}
