// Package intent defines the closed set of user intents the assistant
// understands, the category each belongs to, and which entity slots the
// extractor fills for it.
package intent

import (
	"fmt"
	"strings"
)

// Intent identifies the action category a user asked for.
type Intent int

// Phone control.
const (
	Unknown Intent = iota
	CallContact
	CallEmergency
	SendMessage
	SendWhatsApp
	ReadMessages
	OpenApp
	CloseApp
	SetAlarm
	CancelAlarm
	SetTimer
	FlashlightOn
	FlashlightOff
	VolumeUp
	VolumeDown
	SetVolume
	BrightnessUp
	BrightnessDown
	SetBrightness
	WifiOn
	WifiOff
	BluetoothOn
	BluetoothOff
	BatteryStatus
	TakePhoto
	SilentMode

	// Medication.
	AddMedication
	LogMedicationTaken
	SkipDose
	MedicationReminder
	ListMedications
	NextDose
	DeleteMedication
	RefillReminder

	// Health and appointments.
	BookAppointment
	CancelAppointment
	ListAppointments
	LogBloodPressure
	LogBloodSugar
	LogHeartRate
	LogWeight
	FindNearby
	ShareLocation
	EmergencyAlert

	// Convenience.
	Weather
	CurrentTime
	CurrentDate
	SetReminder
	TakeNote
	ReadNotes
	PlayMusic
	StopMusic
	Navigate
	Calculate

	// Web knowledge.
	WebSearch
	Wikipedia
	News
	Define

	// Small talk.
	Greeting
	Thanks
	Goodbye
	Joke
	Help
	Affirm
	Deny

	numIntents
)

// Category groups intents for routing and display.
type Category int

const (
	CategoryNone Category = iota
	CategoryPhoneControl
	CategoryMedication
	CategoryHealth
	CategoryConvenience
	CategoryWebKnowledge
	CategorySmallTalk
)

var categoryNames = [...]string{
	CategoryNone:         "none",
	CategoryPhoneControl: "phone_control",
	CategoryMedication:   "medication",
	CategoryHealth:       "health",
	CategoryConvenience:  "convenience",
	CategoryWebKnowledge: "web_knowledge",
	CategorySmallTalk:    "small_talk",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Slot is a bit set of entity slots.
type Slot uint16

const (
	SlotContact Slot = 1 << iota
	SlotPhone
	SlotTime
	SlotDuration
	SlotApp
	SlotMedication
	SlotNumber
	SlotLocation
)

// Has reports whether every slot in o is also in s.
func (s Slot) Has(o Slot) bool { return s&o == o }

type descriptor struct {
	name     string
	category Category
	slots    Slot
}

// catalog is indexed by Intent. A missing entry leaves a zero descriptor,
// which TestCatalogComplete rejects.
var catalog = [numIntents]descriptor{
	Unknown: {"UNKNOWN", CategoryNone, 0},

	CallContact:    {"CALL_CONTACT", CategoryPhoneControl, SlotContact | SlotPhone},
	CallEmergency:  {"CALL_EMERGENCY", CategoryPhoneControl, 0},
	SendMessage:    {"SEND_MESSAGE", CategoryPhoneControl, SlotContact | SlotPhone},
	SendWhatsApp:   {"SEND_WHATSAPP", CategoryPhoneControl, SlotContact | SlotPhone},
	ReadMessages:   {"READ_MESSAGES", CategoryPhoneControl, SlotContact},
	OpenApp:        {"OPEN_APP", CategoryPhoneControl, SlotApp},
	CloseApp:       {"CLOSE_APP", CategoryPhoneControl, SlotApp},
	SetAlarm:       {"SET_ALARM", CategoryPhoneControl, SlotTime},
	CancelAlarm:    {"CANCEL_ALARM", CategoryPhoneControl, SlotTime},
	SetTimer:       {"SET_TIMER", CategoryPhoneControl, SlotDuration},
	FlashlightOn:   {"FLASHLIGHT_ON", CategoryPhoneControl, 0},
	FlashlightOff:  {"FLASHLIGHT_OFF", CategoryPhoneControl, 0},
	VolumeUp:       {"VOLUME_UP", CategoryPhoneControl, 0},
	VolumeDown:     {"VOLUME_DOWN", CategoryPhoneControl, 0},
	SetVolume:      {"SET_VOLUME", CategoryPhoneControl, SlotNumber},
	BrightnessUp:   {"BRIGHTNESS_UP", CategoryPhoneControl, 0},
	BrightnessDown: {"BRIGHTNESS_DOWN", CategoryPhoneControl, 0},
	SetBrightness:  {"SET_BRIGHTNESS", CategoryPhoneControl, SlotNumber},
	WifiOn:         {"WIFI_ON", CategoryPhoneControl, 0},
	WifiOff:        {"WIFI_OFF", CategoryPhoneControl, 0},
	BluetoothOn:    {"BLUETOOTH_ON", CategoryPhoneControl, 0},
	BluetoothOff:   {"BLUETOOTH_OFF", CategoryPhoneControl, 0},
	BatteryStatus:  {"BATTERY_STATUS", CategoryPhoneControl, 0},
	TakePhoto:      {"TAKE_PHOTO", CategoryPhoneControl, 0},
	SilentMode:     {"SILENT_MODE", CategoryPhoneControl, 0},

	AddMedication:      {"ADD_MEDICATION", CategoryMedication, SlotMedication | SlotTime},
	LogMedicationTaken: {"LOG_MEDICATION_TAKEN", CategoryMedication, SlotMedication},
	SkipDose:           {"SKIP_DOSE", CategoryMedication, SlotMedication},
	MedicationReminder: {"MEDICATION_REMINDER", CategoryMedication, SlotMedication | SlotTime},
	ListMedications:    {"LIST_MEDICATIONS", CategoryMedication, 0},
	NextDose:           {"NEXT_DOSE", CategoryMedication, SlotMedication},
	DeleteMedication:   {"DELETE_MEDICATION", CategoryMedication, SlotMedication},
	RefillReminder:     {"REFILL_REMINDER", CategoryMedication, SlotMedication | SlotNumber},

	BookAppointment:   {"BOOK_APPOINTMENT", CategoryHealth, SlotContact | SlotTime},
	CancelAppointment: {"CANCEL_APPOINTMENT", CategoryHealth, SlotTime},
	ListAppointments:  {"LIST_APPOINTMENTS", CategoryHealth, 0},
	LogBloodPressure:  {"LOG_BLOOD_PRESSURE", CategoryHealth, SlotNumber},
	LogBloodSugar:     {"LOG_BLOOD_SUGAR", CategoryHealth, SlotNumber},
	LogHeartRate:      {"LOG_HEART_RATE", CategoryHealth, SlotNumber},
	LogWeight:         {"LOG_WEIGHT", CategoryHealth, SlotNumber},
	FindNearby:        {"FIND_NEARBY", CategoryHealth, SlotLocation},
	ShareLocation:     {"SHARE_LOCATION", CategoryHealth, SlotContact},
	EmergencyAlert:    {"EMERGENCY_ALERT", CategoryHealth, 0},

	Weather:     {"WEATHER", CategoryConvenience, SlotLocation},
	CurrentTime: {"CURRENT_TIME", CategoryConvenience, 0},
	CurrentDate: {"CURRENT_DATE", CategoryConvenience, 0},
	SetReminder: {"SET_REMINDER", CategoryConvenience, SlotTime},
	TakeNote:    {"TAKE_NOTE", CategoryConvenience, 0},
	ReadNotes:   {"READ_NOTES", CategoryConvenience, 0},
	PlayMusic:   {"PLAY_MUSIC", CategoryConvenience, SlotApp},
	StopMusic:   {"STOP_MUSIC", CategoryConvenience, 0},
	Navigate:    {"NAVIGATE", CategoryConvenience, SlotLocation},
	Calculate:   {"CALCULATE", CategoryConvenience, SlotNumber},

	WebSearch: {"WEB_SEARCH", CategoryWebKnowledge, 0},
	Wikipedia: {"WIKIPEDIA", CategoryWebKnowledge, 0},
	News:      {"NEWS", CategoryWebKnowledge, 0},
	Define:    {"DEFINE", CategoryWebKnowledge, 0},

	Greeting: {"GREETING", CategorySmallTalk, 0},
	Thanks:   {"THANKS", CategorySmallTalk, 0},
	Goodbye:  {"GOODBYE", CategorySmallTalk, 0},
	Joke:     {"JOKE", CategorySmallTalk, 0},
	Help:     {"HELP", CategorySmallTalk, 0},
	Affirm:   {"AFFIRM", CategorySmallTalk, 0},
	Deny:     {"DENY", CategorySmallTalk, 0},
}

var byName = func() map[string]Intent {
	m := make(map[string]Intent, numIntents)
	for i := range numIntents {
		m[catalog[i].name] = i
	}
	return m
}()

// Valid reports whether i is a declared intent.
func (i Intent) Valid() bool { return i >= 0 && i < numIntents }

func (i Intent) String() string {
	if !i.Valid() {
		return fmt.Sprintf("intent(%d)", int(i))
	}
	return catalog[i].name
}

// Category returns the group the intent belongs to.
func (i Intent) Category() Category {
	if !i.Valid() {
		return CategoryNone
	}
	return catalog[i].category
}

// Slots returns the entity slots the extractor fills for the intent.
// Unknown and undeclared intents have none.
func (i Intent) Slots() Slot {
	if !i.Valid() {
		return 0
	}
	return catalog[i].slots
}

// MarshalText encodes the intent by name.
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText decodes an intent name. Unrecognized names are an error.
func (i *Intent) UnmarshalText(b []byte) error {
	v, ok := Parse(string(b))
	if !ok {
		return fmt.Errorf("unknown intent %q", b)
	}
	*i = v
	return nil
}

// Parse looks up an intent by name. Matching ignores case and accepts
// either underscores or dashes as separators.
func Parse(name string) (Intent, bool) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	i, ok := byName[key]
	return i, ok
}

// All returns every declared intent in declaration order.
func All() []Intent {
	out := make([]Intent, 0, numIntents)
	for i := range numIntents {
		out = append(out, i)
	}
	return out
}
