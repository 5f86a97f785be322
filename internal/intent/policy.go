package intent

import (
	"fmt"
	"sort"
)

// DefaultThreshold is the minimum classifier confidence needed to act on an
// intent instead of asking the user to repeat.
const DefaultThreshold = 0.6

// Classification is a classifier verdict for one utterance.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// AboveThreshold reports whether the verdict is confident enough to act on.
func (c Classification) AboveThreshold(cutoff float64) bool {
	return c.Confidence >= cutoff
}

// Set is an immutable set of intents.
type Set struct {
	members map[Intent]struct{}
}

// NewSet builds a set from the given intents.
func NewSet(intents ...Intent) Set {
	m := make(map[Intent]struct{}, len(intents))
	for _, i := range intents {
		m[i] = struct{}{}
	}
	return Set{members: m}
}

// ParseSet builds a set from intent names.
func ParseSet(names []string) (Set, error) {
	intents := make([]Intent, 0, len(names))
	for _, n := range names {
		i, ok := Parse(n)
		if !ok {
			return Set{}, fmt.Errorf("unknown intent %q", n)
		}
		intents = append(intents, i)
	}
	return NewSet(intents...), nil
}

// Has reports whether i is in the set.
func (s Set) Has(i Intent) bool {
	_, ok := s.members[i]
	return ok
}

// Len returns the number of intents in the set.
func (s Set) Len() int { return len(s.members) }

// Names returns the sorted intent names in the set.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.members))
	for i := range s.members {
		out = append(out, i.String())
	}
	sort.Strings(out)
	return out
}

// DefaultCritical is the policy list of intents that always require an
// explicit confirmation before they reach the dispatcher.
func DefaultCritical() Set {
	return NewSet(
		CallContact,
		CallEmergency,
		SendMessage,
		SendWhatsApp,
		DeleteMedication,
		CancelAppointment,
		ShareLocation,
		EmergencyAlert,
	)
}
