package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/message"
)

type recordingController struct {
	commands   []message.Command
	utterances []message.Utterance
}

func (r *recordingController) Command(_ context.Context, cmd message.Command) error {
	r.commands = append(r.commands, cmd)
	return nil
}

func (r *recordingController) Submit(_ context.Context, u message.Utterance) error {
	r.utterances = append(r.utterances, u)
	return nil
}

func (r *recordingController) State() message.StateEvent { return message.StateEvent{State: "idle"} }

func TestHandleControl(t *testing.T) {
	tr := New(config.MQTTConfig{}, nil)
	ctrl := &recordingController{}

	tr.handleControl(ctrl, []byte("confirm\n"))
	tr.handleControl(ctrl, []byte(`{"command":"cancel"}`))
	tr.handleControl(ctrl, []byte(`{"command":`))

	if len(ctrl.commands) != 2 || ctrl.commands[0] != message.CommandConfirm || ctrl.commands[1] != message.CommandCancel {
		t.Errorf("commands = %v", ctrl.commands)
	}
}

func TestHandleUtterance(t *testing.T) {
	tr := New(config.MQTTConfig{}, nil)
	ctrl := &recordingController{}

	tr.handleUtterance(ctrl, []byte(`{"text":"remind me to take aspirin at 9 pm","language":"en"}`))
	tr.handleUtterance(ctrl, []byte(`not json`))

	if len(ctrl.utterances) != 1 || ctrl.utterances[0].Text != "remind me to take aspirin at 9 pm" {
		t.Errorf("utterances = %+v", ctrl.utterances)
	}
}

type published struct {
	topic    string
	retained bool
	payload  []byte
}

func TestPublishTopics(t *testing.T) {
	tr := New(config.MQTTConfig{TopicPrefix: "home/saathi", QoS: 1}, nil)

	if err := tr.Publish(context.Background(), message.NewStateEvent(message.StateEvent{State: "idle"})); !errors.Is(err, errNotConnected) {
		t.Fatalf("err before connect = %v", err)
	}

	var got []published
	tr.publish = func(topic string, qos byte, retained bool, payload []byte) error {
		if qos != 1 {
			t.Errorf("qos = %d", qos)
		}
		got = append(got, published{topic, retained, payload})
		return nil
	}

	_ = tr.Publish(context.Background(), message.NewStateEvent(message.StateEvent{State: "speaking", Message: "Done."}))
	_ = tr.Publish(context.Background(), message.NewSpeechEvent(message.SpeechEvent{Text: "Done."}))

	if len(got) != 2 {
		t.Fatalf("published %d messages", len(got))
	}
	if got[0].topic != "home/saathi/state" || !got[0].retained {
		t.Errorf("state publish = %+v", got[0])
	}
	if got[1].topic != "home/saathi/speech" || got[1].retained {
		t.Errorf("speech publish = %+v", got[1])
	}

	var evt message.Event
	if err := json.Unmarshal(got[0].payload, &evt); err != nil {
		t.Fatal(err)
	}
	if evt.State == nil || evt.State.Message != "Done." {
		t.Errorf("state payload = %s", got[0].payload)
	}
}

func TestDefaultPrefix(t *testing.T) {
	tr := New(config.MQTTConfig{}, nil)
	if got := tr.topic("state"); got != "saathi/state" {
		t.Errorf("topic = %q", got)
	}
}
