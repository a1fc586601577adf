package runtime

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// InitiationError represents a failure to create a run on the remote runtime.
// It is fatal to the whole operation; there is no retry at this layer.
type InitiationError struct {
	Message string
	Cause   error
}

func (e *InitiationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("run initiation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("run initiation failed: %s", e.Message)
}

func (e *InitiationError) Unwrap() error {
	return e.Cause
}

// ChannelError represents a transient, channel-local failure on one of the
// monitor's two update sources. It is logged; the channel retries or degrades.
type ChannelError struct {
	Channel string // "stream" or "poll"
	Message string
	Cause   error
}

func (e *ChannelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s channel: %s: %v", e.Channel, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s channel: %s", e.Channel, e.Message)
}

func (e *ChannelError) Unwrap() error {
	return e.Cause
}

// IsConnectionGone reports whether err indicates the remote side has gone
// away (refused, reset, aborted, or closed) rather than a transient failure.
// After a run has started, such errors are read as "the run finished and the
// runtime hung up" rather than as hard failures.
func IsConnectionGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// url.Error and friends do not always preserve the syscall error across
	// platforms; fall back to message matching.
	msg := err.Error()
	for _, hint := range []string{
		"connection refused",
		"connection reset",
		"connection aborted",
		"broken pipe",
		"server closed",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
