package language

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/langid"
	"github.com/nadzzz/saathi/internal/speech"
)

// scriptRecognizer replays a fixed list of events per session.
type scriptRecognizer struct {
	mu     sync.Mutex
	script []speech.Event
	starts int
	stops  atomic.Int32
	hold   bool // keep the channel open after the script
	cancel context.CancelFunc
}

func (r *scriptRecognizer) Start(ctx context.Context) (<-chan speech.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	ch := make(chan speech.Event, len(r.script))
	for _, e := range r.script {
		ch <- e
	}
	if !r.hold {
		close(ch)
	} else {
		go func() {
			<-ctx.Done()
			close(ch)
		}()
	}
	return ch, nil
}

func (r *scriptRecognizer) Stop() error {
	r.stops.Add(1)
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	return nil
}

type fixedIdentifier struct {
	code string
	err  error
}

func (f fixedIdentifier) Identify(context.Context, string) (string, error) { return f.code, f.err }

type fakeBackend struct {
	ensureCalls    atomic.Int32
	translateCalls atomic.Int32
	fail           bool
	block          chan struct{} // EnsureModel waits on it when set
}

func (b *fakeBackend) EnsureModel(ctx context.Context, _ string) error {
	b.ensureCalls.Add(1)
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *fakeBackend) Translate(_ context.Context, text, src, dst string) (string, error) {
	b.translateCalls.Add(1)
	if b.fail {
		return "", errors.New("translation service down")
	}
	if src == "hi" && dst == "en" && text == "meri beti ko call karo" {
		return "call my daughter", nil
	}
	return src + ">" + dst + ":" + text, nil
}

func testProfiles(t *testing.T) Profiles {
	t.Helper()
	p, err := NewProfiles("en", DefaultProfiles())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func finalOf(t *testing.T, events []Event) Transcript {
	t.Helper()
	for _, e := range events {
		if e.Kind == speech.EventFinal {
			return e.Transcript
		}
	}
	t.Fatalf("no final event in %v", events)
	return Transcript{}
}

// resolved runs one session and resolves its final transcript.
func resolved(t *testing.T, c *Coordinator) Transcript {
	t.Helper()
	ch, err := c.Listen(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return c.Resolve(context.Background(), finalOf(t, drain(t, ch)))
}

func TestListenTranslatesToBaseline(t *testing.T) {
	rec := &scriptRecognizer{script: []speech.Event{
		{Kind: speech.EventReady},
		{Kind: speech.EventStart},
		{Kind: speech.EventPartial, Text: "meri beti"},
		{Kind: speech.EventFinal, Text: "meri beti ko call karo", Confidence: 0.9},
	}}
	backend := &fakeBackend{}
	c := NewCoordinator(rec, fixedIdentifier{code: "hi"}, backend, testProfiles(t))

	ch, err := c.Listen(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, ch)
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	if events[2].Kind != speech.EventPartial || events[2].Partial != "meri beti" {
		t.Errorf("partial event = %+v", events[2])
	}

	raw := finalOf(t, events)
	if raw.Original != "meri beti ko call karo" || raw.Language != "" || raw.Translated {
		t.Errorf("raw transcript = %+v", raw)
	}
	if backend.translateCalls.Load() != 0 {
		t.Error("final event must not wait for translation")
	}

	tr := c.Resolve(context.Background(), raw)
	if tr.ID != raw.ID || tr.Original != "meri beti ko call karo" || tr.Baseline != "call my daughter" || tr.Language != "hi" || !tr.Translated {
		t.Errorf("transcript = %+v", tr)
	}
	if tr.Confidence != 0.9 {
		t.Errorf("confidence = %v", tr.Confidence)
	}
}

func TestBaselineLanguageSkipsTranslation(t *testing.T) {
	rec := &scriptRecognizer{script: []speech.Event{{Kind: speech.EventFinal, Text: "call mom", Confidence: 1}}}
	backend := &fakeBackend{}
	c := NewCoordinator(rec, fixedIdentifier{code: "en"}, backend, testProfiles(t))

	tr := resolved(t, c)
	if tr.Baseline != "call mom" || tr.Translated || tr.Language != "en" {
		t.Errorf("transcript = %+v", tr)
	}
	if backend.translateCalls.Load() != 0 {
		t.Error("baseline text should not be translated")
	}
}

func TestIdentificationFallsBackToBaseline(t *testing.T) {
	cases := []struct {
		name string
		id   langid.Identifier
	}{
		{"error", fixedIdentifier{err: errors.New("boom")}},
		{"undetermined", fixedIdentifier{code: langid.Undetermined}},
		{"unsupported", fixedIdentifier{code: "fr"}},
		{"none", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &scriptRecognizer{script: []speech.Event{{Kind: speech.EventFinal, Text: "bonjour"}}}
			backend := &fakeBackend{}
			c := NewCoordinator(rec, tc.id, backend, testProfiles(t))
			tr := resolved(t, c)
			if tr.Language != "en" || tr.Baseline != "bonjour" {
				t.Errorf("transcript = %+v", tr)
			}
		})
	}
}

func TestTranslationFailureDegrades(t *testing.T) {
	rec := &scriptRecognizer{script: []speech.Event{{Kind: speech.EventFinal, Text: "vanakkam"}}}
	c := NewCoordinator(rec, fixedIdentifier{code: "ta"}, &fakeBackend{fail: true}, testProfiles(t))

	tr := resolved(t, c)
	if tr.Baseline != "vanakkam" || tr.Translated || tr.Language != "ta" {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestTranslatorCachedUntilRelease(t *testing.T) {
	rec := &scriptRecognizer{script: []speech.Event{{Kind: speech.EventFinal, Text: "namaste"}}}
	backend := &fakeBackend{}
	c := NewCoordinator(rec, fixedIdentifier{code: "hi"}, backend, testProfiles(t))

	for i := 0; i < 2; i++ {
		resolved(t, c)
	}
	if n := backend.ensureCalls.Load(); n != 1 {
		t.Errorf("EnsureModel calls = %d, want 1", n)
	}

	if err := c.Release(); err != nil {
		t.Fatal(err)
	}
	resolved(t, c)
	if n := backend.ensureCalls.Load(); n != 2 {
		t.Errorf("EnsureModel calls after release = %d, want 2", n)
	}
}

func TestFinalNotHeldByModelDownload(t *testing.T) {
	rec := &scriptRecognizer{script: []speech.Event{{Kind: speech.EventFinal, Text: "namaste", Confidence: 0.8}}}
	backend := &fakeBackend{block: make(chan struct{})}
	c := NewCoordinator(rec, fixedIdentifier{code: "hi"}, backend, testProfiles(t))

	ch, _ := c.Listen(context.Background())
	raw := finalOf(t, drain(t, ch))
	if raw.Original != "namaste" || raw.Confidence != 0.8 {
		t.Fatalf("raw transcript = %+v", raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	tr := c.Resolve(ctx, raw)
	if tr.Translated || tr.Baseline != "namaste" || tr.Language != "hi" {
		t.Errorf("resolve past its deadline = %+v", tr)
	}
	close(backend.block)
}

func TestErrorEventForwarded(t *testing.T) {
	rec := &scriptRecognizer{script: []speech.Event{
		{Kind: speech.EventReady},
		{Kind: speech.EventError, Err: speech.ErrNoMatch},
	}}
	c := NewCoordinator(rec, nil, nil, testProfiles(t))
	ch, _ := c.Listen(context.Background())
	events := drain(t, ch)
	last := events[len(events)-1]
	if last.Kind != speech.EventError || last.Err != speech.ErrNoMatch {
		t.Errorf("last event = %+v", last)
	}
}

func TestListenStopsPreviousSession(t *testing.T) {
	rec := &scriptRecognizer{script: []speech.Event{{Kind: speech.EventReady}}, hold: true}
	c := NewCoordinator(rec, nil, nil, testProfiles(t))

	first, err := c.Listen(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Listen(context.Background()); err != nil {
		t.Fatal(err)
	}
	// The first session's channel must be closed once the second starts.
	drain(t, first)

	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(); err != nil {
		t.Fatal(err)
	}
	if rec.stops.Load() < 3 {
		t.Errorf("recognizer Stop calls = %d, want at least 3", rec.stops.Load())
	}
}

func TestLocalize(t *testing.T) {
	backend := &fakeBackend{}
	c := NewCoordinator(&scriptRecognizer{}, nil, backend, testProfiles(t))
	ctx := context.Background()

	if got := c.Localize(ctx, "Calling Daughter", "en"); got != "Calling Daughter" {
		t.Errorf("baseline localize = %q", got)
	}
	if got := c.Localize(ctx, "Calling Daughter", "hi"); got != "en>hi:Calling Daughter" {
		t.Errorf("hi localize = %q", got)
	}
	if got := c.Localize(ctx, "Hello", "xx"); got != "Hello" {
		t.Errorf("unsupported localize = %q", got)
	}

	backend.fail = true
	if got := c.Localize(ctx, "Hello", "ta"); got != "Hello" {
		t.Errorf("failed localize = %q", got)
	}
}

func TestProfiles(t *testing.T) {
	p, err := FromConfig(config.LanguagesConfig{Baseline: "EN"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Baseline().Code != "en" || !p.Supported("hi") || p.Supported("fr") {
		t.Errorf("unexpected profiles %v", p.Codes())
	}

	p, err = FromConfig(config.LanguagesConfig{
		Baseline: "en",
		Profiles: []config.LanguageProfile{{Code: "en"}, {Code: "kn", Name: "Kannada", TranslationCode: "kn"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	kn, ok := p.Lookup("kn")
	if !ok || kn.Locale != "kn" || kn.Name != "Kannada" {
		t.Errorf("kn = %+v, %v", kn, ok)
	}

	if _, err := NewProfiles("en", []Profile{{Code: "hi"}}); err == nil {
		t.Error("missing baseline should fail")
	}
	if _, err := NewProfiles("en", []Profile{{Code: "en"}, {Code: "en"}}); err == nil {
		t.Error("duplicate code should fail")
	}
}
