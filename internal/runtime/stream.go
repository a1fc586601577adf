package runtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// cancelReadCloser ties a stream body to the context cancel that created it,
// so closing the stream also releases the request.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// openStream establishes the long-lived watch connection for runID. Only the
// connection attempt is bounded by connectTimeout; once headers have arrived
// the body lives until the run ends, the context is cancelled, or the remote
// side hangs up. A connect timeout is not fatal to monitoring; the caller
// degrades to poll-only.
func (c *Client) openStream(ctx context.Context, runID string, connectTimeout time.Duration) (io.ReadCloser, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	// The timer and the connect attempt race; state is shared under a lock so
	// a timer that fires after Do returns cannot cancel an established stream.
	var (
		mu        sync.Mutex
		connected bool
		timedOut  bool
	)
	timer := time.AfterFunc(connectTimeout, func() {
		mu.Lock()
		defer mu.Unlock()
		if connected {
			return
		}
		timedOut = true
		cancel()
	})

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/watch?runId="+url.QueryEscape(runID), nil)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, &ChannelError{Channel: "stream", Message: "building watch request", Cause: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.stream.Do(req)
	mu.Lock()
	connected = true
	expired := timedOut
	mu.Unlock()
	timer.Stop()
	if expired {
		// The timeout won the race; even a response that made it through is
		// torn down so the caller sees a connect timeout, not a live stream.
		if err == nil {
			_ = resp.Body.Close()
		}
		cancel()
		return nil, &ChannelError{Channel: "stream", Message: "connect timed out"}
	}
	if err != nil {
		cancel()
		return nil, &ChannelError{Channel: "stream", Message: "connect failed", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, &ChannelError{Channel: "stream", Message: fmt.Sprintf("watch returned HTTP %d", resp.StatusCode)}
	}

	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}
