package piper

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wyoming framing, per event:
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func writeEvent(w io.Writer, evt event, payload []byte) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d\n", len(body), len(payload))
	buf.Write(body)
	buf.WriteByte('\n')
	buf.Write(payload)

	_, err = w.Write(buf.Bytes())
	return err
}

func readEvent(r *bufio.Reader) (*event, []byte, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return nil, nil, fmt.Errorf("invalid wyoming header: %q", strings.TrimSpace(line))
	}
	jsonLen, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing json_length: %w", err)
	}
	payloadLen, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing payload_length: %w", err)
	}

	body := make([]byte, jsonLen+1) // trailing newline
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, fmt.Errorf("reading json: %w", err)
	}
	var evt event
	if err := json.Unmarshal(body[:jsonLen], &evt); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling event: %w", err)
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}
	return &evt, payload, nil
}

type audioFormat struct {
	rate     int
	channels int
	width    int // bytes per sample
}

// update applies the fields of an audio-start event.
func (f audioFormat) update(data map[string]any) audioFormat {
	if v, ok := data["rate"].(float64); ok {
		f.rate = int(v)
	}
	if v, ok := data["channels"].(float64); ok {
		f.channels = int(v)
	}
	if v, ok := data["width"].(float64); ok {
		f.width = int(v)
	}
	return f
}

// pcmToWAV wraps raw PCM data in a 44-byte WAV header.
func pcmToWAV(pcm []byte, f audioFormat) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(buf, le, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, le, uint32(16))
	_ = binary.Write(buf, le, uint16(1)) // PCM
	_ = binary.Write(buf, le, uint16(f.channels))
	_ = binary.Write(buf, le, uint32(f.rate))
	_ = binary.Write(buf, le, uint32(f.rate*f.channels*f.width))
	_ = binary.Write(buf, le, uint16(f.channels*f.width))
	_ = binary.Write(buf, le, uint16(f.width*8))

	buf.WriteString("data")
	_ = binary.Write(buf, le, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
