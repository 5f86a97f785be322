package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type mockBackend struct {
	EnsureModelFunc func(ctx context.Context, source string) error
	TranslateFunc   func(ctx context.Context, text, source, target string) (string, error)
}

func (m *mockBackend) EnsureModel(ctx context.Context, source string) error {
	if m.EnsureModelFunc != nil {
		return m.EnsureModelFunc(ctx, source)
	}
	return nil
}

func (m *mockBackend) Translate(ctx context.Context, text, source, target string) (string, error) {
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text, source, target)
	}
	return "[" + source + "->" + target + "] " + text, nil
}

func TestTranslatorEnsuresModelOnce(t *testing.T) {
	var ensures atomic.Int32
	b := &mockBackend{
		EnsureModelFunc: func(_ context.Context, source string) error {
			ensures.Add(1)
			if source != "hi" {
				t.Errorf("source = %q", source)
			}
			return nil
		},
	}
	tr := NewTranslator(b, "hi", "en", nil)

	for i := 0; i < 3; i++ {
		out, err := tr.Translate(context.Background(), "namaste")
		if err != nil {
			t.Fatalf("Translate: %v", err)
		}
		if out != "[hi->en] namaste" {
			t.Errorf("out = %q", out)
		}
	}
	if n := ensures.Load(); n != 1 {
		t.Errorf("EnsureModel called %d times, want 1", n)
	}
}

func TestTranslatorRetriesFailedModelDownload(t *testing.T) {
	var attempts atomic.Int32
	b := &mockBackend{
		EnsureModelFunc: func(context.Context, string) error {
			if attempts.Add(1) == 1 {
				return errors.New("offline")
			}
			return nil
		},
	}
	tr := NewTranslator(b, "ta", "en", nil)

	if _, err := tr.Translate(context.Background(), "vanakkam"); err == nil {
		t.Fatal("expected error on first attempt")
	}
	if _, err := tr.Translate(context.Background(), "vanakkam"); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestLibre(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/languages":
			_, _ = w.Write([]byte(`[{"code":"hi","name":"Hindi","targets":["en"]},{"code":"en","name":"English","targets":["hi"]}]`))
		case "/translate":
			if r.Method != http.MethodPost {
				t.Errorf("method = %s", r.Method)
			}
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"translatedText":"call my daughter"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewLibre(srv.URL+"/", "secret", srv.Client(), nil)
	ctx := context.Background()

	if err := l.EnsureModel(ctx, "hi"); err != nil {
		t.Fatalf("EnsureModel(hi): %v", err)
	}
	if err := l.EnsureModel(ctx, "xx"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("EnsureModel(xx) = %v, want ErrUnsupportedLanguage", err)
	}

	out, err := l.Translate(ctx, "meri beti ko call karo", "hi", "en")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "call my daughter" {
		t.Errorf("out = %q", out)
	}
	if gotBody["source"] != "hi" || gotBody["target"] != "en" || gotBody["api_key"] != "secret" || gotBody["format"] != "text" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestLibreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad source"}`))
	}))
	defer srv.Close()

	l := NewLibre(srv.URL, "", srv.Client(), nil)
	if _, err := l.Translate(context.Background(), "x", "zz", "en"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCachedTranslate(t *testing.T) {
	var calls atomic.Int32
	b := &mockBackend{
		TranslateFunc: func(_ context.Context, text, _, _ string) (string, error) {
			calls.Add(1)
			return "out:" + text, nil
		},
	}
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	c := NewCached(b, store, time.Hour, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		out, err := c.Translate(ctx, "hello", "en", "hi")
		if err != nil || out != "out:hello" {
			t.Fatalf("Translate = %q, %v", out, err)
		}
	}
	if _, err := c.Translate(ctx, "hello", "en", "ta"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("backend calls = %d, want 2", n)
	}
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	fail := true
	b := &mockBackend{
		TranslateFunc: func(context.Context, string, string, string) (string, error) {
			if fail {
				return "", errors.New("down")
			}
			return "ok", nil
		},
	}
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	c := NewCached(b, store, time.Hour, nil)

	if _, err := c.Translate(context.Background(), "x", "hi", "en"); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	out, err := c.Translate(context.Background(), "x", "hi", "en")
	if err != nil || out != "ok" {
		t.Fatalf("Translate = %q, %v", out, err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	defer s.Close()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Set(ctx, "a", "1", time.Minute)
	_ = s.Set(ctx, "b", "2", 0)

	if v, ok, _ := s.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Error("a should have expired")
	}
	if _, ok, _ := s.Get(ctx, "b"); !ok {
		t.Error("b has no ttl and should not expire")
	}

	s.cleanup()
	s.mu.RLock()
	_, present := s.data["a"]
	s.mu.RUnlock()
	if present {
		t.Error("cleanup did not remove expired entry")
	}
}
