package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nadzzz/saathi/internal/entity"
	"github.com/nadzzz/saathi/internal/intent"
)

func TestRemoteDispatch(t *testing.T) {
	var got struct {
		Intent    string          `json:"intent"`
		Entities  json.RawMessage `json:"entities"`
		Confirmed bool            `json:"confirmed"`
	}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true,"message":"Calling Daughter"}`))
	}))
	defer srv.Close()

	d := NewRemote(srv.URL, "tok", srv.Client(), nil, nil)
	req := Request{
		Intent:    intent.CallContact,
		Entities:  entity.New("call my daughter", entity.WithContact("Daughter")),
		Confirmed: true,
	}
	res, err := d.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.Success || res.Message != "Calling Daughter" {
		t.Errorf("result = %+v", res)
	}
	if got.Intent != "CALL_CONTACT" || !got.Confirmed {
		t.Errorf("request = %+v", got)
	}
	if !strings.Contains(string(got.Entities), `"contact_name":"Daughter"`) {
		t.Errorf("entities = %s", got.Entities)
	}
	if auth != "Bearer tok" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestRemoteRejectedIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown intent", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	d := NewRemote(srv.URL, "", srv.Client(), nil, nil)
	res, err := d.Dispatch(context.Background(), Request{Intent: intent.Joke, Entities: entity.New("tell me a joke")})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Success {
		t.Error("expected failure result")
	}
}

func TestRemoteBreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dispatch-test",
		Timeout:     time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	})
	d := NewRemote(srv.URL, "", srv.Client(), cb, nil)
	req := Request{Intent: intent.VolumeUp, Entities: entity.New("volume up")}

	for i := 0; i < 2; i++ {
		if _, err := d.Dispatch(context.Background(), req); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	_, err := d.Dispatch(context.Background(), req)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want open state", err)
	}
	if calls != 2 {
		t.Errorf("server calls = %d, want 2", calls)
	}
}

func TestRequireSlots(t *testing.T) {
	reached := false
	next := Func(func(context.Context, Request) (Result, error) {
		reached = true
		return Result{Success: true, Message: "done"}, nil
	})
	d := RequireSlots(next)

	res, err := d.Dispatch(context.Background(), Request{Intent: intent.CallContact, Entities: entity.New("call")})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Message != "Who would you like to call?" || reached {
		t.Errorf("missing contact: result = %+v, reached = %v", res, reached)
	}

	res, _ = d.Dispatch(context.Background(), Request{
		Intent:   intent.CallContact,
		Entities: entity.New("call 9876543210", entity.WithPhone("9876543210")),
	})
	if !res.Success || !reached {
		t.Errorf("phone only: result = %+v, reached = %v", res, reached)
	}

	reached = false
	res, _ = d.Dispatch(context.Background(), Request{Intent: intent.FlashlightOn, Entities: entity.New("torch on")})
	if !res.Success || !reached {
		t.Errorf("no requirements: result = %+v", res)
	}
}

func TestLoopback(t *testing.T) {
	d := NewLoopback(intent.DefaultCritical(), nil)
	req := Request{Intent: intent.CallContact, Entities: entity.New("call my daughter", entity.WithContact("Daughter"))}

	res, _ := d.Dispatch(context.Background(), req)
	if !res.RequiresConfirmation || res.Message != "Should I call Daughter?" {
		t.Errorf("unconfirmed = %+v", res)
	}

	req.Confirmed = true
	res, _ = d.Dispatch(context.Background(), req)
	if !res.Success || res.Message != "Okay, call Daughter." {
		t.Errorf("confirmed = %+v", res)
	}

	res, _ = d.Dispatch(context.Background(), Request{Intent: intent.BatteryStatus, Entities: entity.New("battery")})
	if !res.Success || res.Message != "Okay, battery status." {
		t.Errorf("battery = %+v", res)
	}
}
