package langid

import (
	"context"
	"testing"
)

func TestLingua(t *testing.T) {
	id, err := NewLingua([]string{"en", "hi", "EN"}, 0)
	if err != nil {
		t.Fatalf("NewLingua: %v", err)
	}
	ctx := context.Background()

	tests := map[string]string{
		"please call my daughter, I need to talk to her": "en",
		"मेरी बेटी को फोन करो":                           "hi",
		"   ": Undetermined,
	}
	for text, want := range tests {
		got, err := id.Identify(ctx, text)
		if err != nil {
			t.Fatalf("Identify(%q): %v", text, err)
		}
		if got != want {
			t.Errorf("Identify(%q) = %q, want %q", text, got, want)
		}
	}
}

func TestLinguaSingleLanguage(t *testing.T) {
	id, err := NewLingua([]string{"en"}, 0)
	if err != nil {
		t.Fatalf("NewLingua: %v", err)
	}
	if got, _ := id.Identify(context.Background(), "bonjour"); got != "en" {
		t.Fatalf("single language identifier returned %q", got)
	}
}

func TestLinguaRejectsUnknownCodes(t *testing.T) {
	if _, err := NewLingua([]string{"en", "xx"}, 0); err == nil {
		t.Fatal("expected error for unknown code")
	}
	if _, err := NewLingua(nil, 0); err == nil {
		t.Fatal("expected error for empty list")
	}
}
