package runtime

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FrameKind tags the variants of data delivered on the stream channel.
type FrameKind int

// Frame kinds. Message-identifier frames are informational and carry no run
// state; unknown frames are skipped.
const (
	FrameUnknown FrameKind = iota
	FrameMessageID
	FrameStep
	FrameStatus
)

// Frame is one decoded unit from the stream channel.
type Frame struct {
	Kind       FrameKind
	MessageID  string
	StepID     string
	StepStatus StepStatus
	Status     RunStatus
}

// framePayload is the wire shape of a stream data frame.
type framePayload struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	StepID string `json:"stepId,omitempty"`
	Status string `json:"status,omitempty"`
}

// FrameDecoder incrementally decodes server-sent events from a growing byte
// buffer. Frames may arrive split across reads at arbitrary byte boundaries;
// the decoder buffers until it sees a complete event (blank-line delimited)
// and never assumes one read equals one frame. A malformed event is dropped
// and decoding continues; a single bad frame must not kill the channel.
type FrameDecoder struct {
	buf     []byte
	dropped int
}

// Feed appends p to the internal buffer and returns all complete frames now
// decodable.
func (d *FrameDecoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)
	var frames []Frame
	for {
		raw, rest, ok := splitEvent(d.buf)
		if !ok {
			break
		}
		d.buf = rest
		if len(bytes.TrimSpace(raw)) == 0 || isCommentOnly(raw) {
			continue
		}
		if f, ok := decodeEvent(raw); ok {
			frames = append(frames, f)
		} else {
			d.dropped++
		}
	}
	return frames
}

// Flush decodes whatever is left in the buffer. Called once after the stream
// ends, so a final event without a trailing blank line is not lost.
func (d *FrameDecoder) Flush() []Frame {
	raw := bytes.TrimSpace(d.buf)
	d.buf = nil
	if len(raw) == 0 || isCommentOnly(raw) {
		return nil
	}
	if f, ok := decodeEvent(raw); ok {
		return []Frame{f}
	}
	d.dropped++
	return nil
}

// Dropped returns the number of malformed events skipped so far.
func (d *FrameDecoder) Dropped() int {
	return d.dropped
}

// isCommentOnly reports whether every line of the event is an SSE comment
// (keep-alives are sent as ": ..." lines and carry nothing).
func isCommentOnly(raw []byte) bool {
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 && line[0] != ':' {
			return false
		}
	}
	return true
}

// splitEvent finds the first complete event in buf, delimited by a blank
// line ("\n\n" or "\r\n\r\n").
func splitEvent(buf []byte) (event, rest []byte, ok bool) {
	lf := bytes.Index(buf, []byte("\n\n"))
	crlf := bytes.Index(buf, []byte("\r\n\r\n"))
	switch {
	case lf < 0 && crlf < 0:
		return nil, buf, false
	case lf < 0 || (crlf >= 0 && crlf < lf):
		return buf[:crlf], buf[crlf+4:], true
	default:
		return buf[:lf], buf[lf+2:], true
	}
}

// decodeEvent parses one SSE event block into a Frame.
func decodeEvent(raw []byte) (Frame, bool) {
	var dataLines []string
	var eventID string

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "id:"):
			eventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// event:, retry:, and anything else carry no state for us
		}
	}

	if len(dataLines) == 0 {
		if eventID != "" {
			return Frame{Kind: FrameMessageID, MessageID: eventID}, true
		}
		return Frame{}, false
	}

	var payload framePayload
	if err := json.Unmarshal([]byte(strings.Join(dataLines, "\n")), &payload); err != nil {
		return Frame{}, false
	}

	switch payload.Type {
	case "step":
		if payload.StepID == "" {
			return Frame{}, false
		}
		return Frame{
			Kind:       FrameStep,
			StepID:     payload.StepID,
			StepStatus: StepStatus(payload.Status),
		}, true
	case "status":
		if payload.Status == "" {
			return Frame{}, false
		}
		return Frame{Kind: FrameStatus, Status: RunStatus(payload.Status)}, true
	case "message":
		return Frame{Kind: FrameMessageID, MessageID: payload.ID}, true
	default:
		return Frame{}, false
	}
}
