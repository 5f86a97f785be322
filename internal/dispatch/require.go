package dispatch

import (
	"context"

	"github.com/nadzzz/saathi/internal/intent"
)

// requirement lists slots of which at least one must be present.
type requirement struct {
	anyOf  intent.Slot
	prompt string
}

var requirements = map[intent.Intent]requirement{
	intent.CallContact:        {intent.SlotContact | intent.SlotPhone, "Who would you like to call?"},
	intent.SendMessage:        {intent.SlotContact | intent.SlotPhone, "Who should I send the message to?"},
	intent.SendWhatsApp:       {intent.SlotContact | intent.SlotPhone, "Who should I send the WhatsApp message to?"},
	intent.ShareLocation:      {intent.SlotContact, "Who should I share your location with?"},
	intent.OpenApp:            {intent.SlotApp, "Which app should I open?"},
	intent.CloseApp:           {intent.SlotApp, "Which app should I close?"},
	intent.SetAlarm:           {intent.SlotTime, "What time should I set the alarm for?"},
	intent.SetTimer:           {intent.SlotDuration, "How long should the timer be?"},
	intent.SetReminder:        {intent.SlotTime, "When should I remind you?"},
	intent.BookAppointment:    {intent.SlotTime, "What time is the appointment?"},
	intent.AddMedication:      {intent.SlotMedication, "Which medicine should I add?"},
	intent.LogMedicationTaken: {intent.SlotMedication, "Which medicine did you take?"},
	intent.SkipDose:           {intent.SlotMedication, "Which medicine are you skipping?"},
	intent.MedicationReminder: {intent.SlotMedication, "Which medicine should I remind you about?"},
	intent.DeleteMedication:   {intent.SlotMedication, "Which medicine should I remove?"},
	intent.SetVolume:          {intent.SlotNumber, "What volume level would you like?"},
	intent.SetBrightness:      {intent.SlotNumber, "What brightness level would you like?"},
	intent.LogBloodPressure:   {intent.SlotNumber, "What was your blood pressure reading?"},
	intent.LogBloodSugar:      {intent.SlotNumber, "What was your blood sugar reading?"},
	intent.LogHeartRate:       {intent.SlotNumber, "What was your heart rate?"},
	intent.LogWeight:          {intent.SlotNumber, "What was your weight?"},
	intent.FindNearby:         {intent.SlotLocation, "What would you like me to find nearby?"},
	intent.Navigate:           {intent.SlotLocation, "Where would you like to go?"},
}

// MissingSlotPrompt returns the question to ask when req lacks an entity
// its intent cannot run without.
func MissingSlotPrompt(req Request) (string, bool) {
	r, ok := requirements[req.Intent]
	if !ok || req.Entities.Present()&r.anyOf != 0 {
		return "", false
	}
	return r.prompt, true
}

// RequireSlots answers requests that lack a mandatory entity with a failed
// Result asking for it, and passes everything else to next.
func RequireSlots(next Dispatcher) Dispatcher {
	return Func(func(ctx context.Context, req Request) (Result, error) {
		if prompt, missing := MissingSlotPrompt(req); missing {
			return Result{Success: false, Message: prompt}, nil
		}
		return next.Dispatch(ctx, req)
	})
}
