// Package entity extracts typed slots (contact, time, duration, app,
// medication, number, location, phone number) from an utterance once its
// intent is known.
//
// Extraction is rule based and total: it never fails, it only leaves slots
// absent. Which slots are attempted is decided by the intent catalog.
package entity

import (
	"encoding/json"
	"time"

	"github.com/nadzzz/saathi/internal/intent"
)

// Entities holds the slots extracted from one utterance. The zero value is
// not useful; values are produced by Extract or New and never change.
type Entities struct {
	raw     string
	present intent.Slot

	contact    string
	phone      string
	at         time.Time
	minutes    int
	app        string
	medication string
	number     int
	location   string
}

// Option sets a slot on a value built with New.
type Option func(*Entities)

// New builds entities for raw text with the given slots set.
func New(raw string, opts ...Option) Entities {
	e := Entities{raw: raw}
	for _, o := range opts {
		o(&e)
	}
	return e
}

func WithContact(name string) Option {
	return func(e *Entities) { e.contact = name; e.present |= intent.SlotContact }
}

func WithPhone(number string) Option {
	return func(e *Entities) { e.phone = number; e.present |= intent.SlotPhone }
}

func WithTime(t time.Time) Option {
	return func(e *Entities) { e.at = t; e.present |= intent.SlotTime }
}

func WithDuration(minutes int) Option {
	return func(e *Entities) { e.minutes = minutes; e.present |= intent.SlotDuration }
}

func WithApp(name string) Option {
	return func(e *Entities) { e.app = name; e.present |= intent.SlotApp }
}

func WithMedication(name string) Option {
	return func(e *Entities) { e.medication = name; e.present |= intent.SlotMedication }
}

func WithNumber(n int) Option {
	return func(e *Entities) { e.number = n; e.present |= intent.SlotNumber }
}

func WithLocation(place string) Option {
	return func(e *Entities) { e.location = place; e.present |= intent.SlotLocation }
}

// RawText returns the utterance the entities were extracted from.
func (e Entities) RawText() string { return e.raw }

// Present returns the set of slots that hold a value.
func (e Entities) Present() intent.Slot { return e.present }

// Has reports whether all slots in s hold a value.
func (e Entities) Has(s intent.Slot) bool { return e.present.Has(s) }

func (e Entities) Contact() (string, bool)    { return e.contact, e.Has(intent.SlotContact) }
func (e Entities) Phone() (string, bool)      { return e.phone, e.Has(intent.SlotPhone) }
func (e Entities) Time() (time.Time, bool)    { return e.at, e.Has(intent.SlotTime) }
func (e Entities) Duration() (int, bool)      { return e.minutes, e.Has(intent.SlotDuration) }
func (e Entities) App() (string, bool)        { return e.app, e.Has(intent.SlotApp) }
func (e Entities) Medication() (string, bool) { return e.medication, e.Has(intent.SlotMedication) }
func (e Entities) Number() (int, bool)        { return e.number, e.Has(intent.SlotNumber) }
func (e Entities) Location() (string, bool)   { return e.location, e.Has(intent.SlotLocation) }

type wire struct {
	RawText         string     `json:"raw_text"`
	ContactName     *string    `json:"contact_name,omitempty"`
	PhoneNumber     *string    `json:"phone_number,omitempty"`
	Time            *time.Time `json:"time,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	AppName         *string    `json:"app_name,omitempty"`
	MedicationName  *string    `json:"medication_name,omitempty"`
	Number          *int       `json:"number,omitempty"`
	Location        *string    `json:"location,omitempty"`
}

// MarshalJSON encodes present slots only.
func (e Entities) MarshalJSON() ([]byte, error) {
	w := wire{RawText: e.raw}
	if v, ok := e.Contact(); ok {
		w.ContactName = &v
	}
	if v, ok := e.Phone(); ok {
		w.PhoneNumber = &v
	}
	if v, ok := e.Time(); ok {
		w.Time = &v
	}
	if v, ok := e.Duration(); ok {
		w.DurationMinutes = &v
	}
	if v, ok := e.App(); ok {
		w.AppName = &v
	}
	if v, ok := e.Medication(); ok {
		w.MedicationName = &v
	}
	if v, ok := e.Number(); ok {
		w.Number = &v
	}
	if v, ok := e.Location(); ok {
		w.Location = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (e *Entities) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var opts []Option
	if w.ContactName != nil {
		opts = append(opts, WithContact(*w.ContactName))
	}
	if w.PhoneNumber != nil {
		opts = append(opts, WithPhone(*w.PhoneNumber))
	}
	if w.Time != nil {
		opts = append(opts, WithTime(*w.Time))
	}
	if w.DurationMinutes != nil {
		opts = append(opts, WithDuration(*w.DurationMinutes))
	}
	if w.AppName != nil {
		opts = append(opts, WithApp(*w.AppName))
	}
	if w.MedicationName != nil {
		opts = append(opts, WithMedication(*w.MedicationName))
	}
	if w.Number != nil {
		opts = append(opts, WithNumber(*w.Number))
	}
	if w.Location != nil {
		opts = append(opts, WithLocation(*w.Location))
	}
	*e = New(w.RawText, opts...)
	return nil
}
