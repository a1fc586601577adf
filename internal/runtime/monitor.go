package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Monitoring defaults.
const (
	DefaultPollInterval         = 1500 * time.Millisecond
	DefaultMaxPollRetries       = 3
	DefaultStreamConnectTimeout = 5 * time.Second
)

// ProgressFunc receives the accumulated progress text and the files known so
// far, on every textual update. Updates are best-effort and not ordered
// across channels; callers must treat them as idempotent, not as a log.
type ProgressFunc func(text string, files []FileRef)

// StatusFunc receives every successful poll snapshot.
type StatusFunc func(snapshot WatchSnapshot)

// Extractor materializes a run's produced files into a destination directory.
// It must be safe to invoke multiple times for the same run.
type Extractor interface {
	Extract(ctx context.Context, runID string) (written int, err error)
}

// RenderOutputFunc turns a step's structured output into a human-readable
// progress fragment. Empty return means nothing to fold in.
type RenderOutputFunc func(stepID string, output json.RawMessage) string

// MonitorOptions configures one monitoring session.
type MonitorOptions struct {
	PollInterval         time.Duration
	MaxPollRetries       int
	StreamConnectTimeout time.Duration
	// StopOnCompletion ends the session when a terminal run status is
	// observed on either channel.
	StopOnCompletion bool

	OnProgress   ProgressFunc
	OnStatus     StatusFunc
	Extractor    Extractor
	RenderOutput RenderOutputFunc

	// Logf receives channel-level diagnostics (skipped frames, poll
	// failures, degradations). Nil discards them.
	Logf func(format string, args ...any)
}

// DefaultMonitorOptions returns the standard monitoring configuration.
func DefaultMonitorOptions() MonitorOptions {
	return MonitorOptions{
		PollInterval:         DefaultPollInterval,
		MaxPollRetries:       DefaultMaxPollRetries,
		StreamConnectTimeout: DefaultStreamConnectTimeout,
		StopOnCompletion:     true,
	}
}

func (o *MonitorOptions) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxPollRetries <= 0 {
		o.MaxPollRetries = DefaultMaxPollRetries
	}
	if o.StreamConnectTimeout <= 0 {
		o.StreamConnectTimeout = DefaultStreamConnectTimeout
	}
}

// MonitorSession is one dual-channel observation of a run: a long-lived event
// stream (primary) and a polling loop (backup) folding into one PipelineRun.
// Either channel can complete the job if the other fails or never starts.
type MonitorSession struct {
	client *Client
	runID  string
	opts   MonitorOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	run            PipelineRun
	progress       strings.Builder
	files          []FileRef
	seenFiles      map[string]bool
	active         bool
	pollActive     bool
	pollFailures   int
	filesExtracted bool
	enriched       map[string]bool

	// extractMu serializes reconciliation attempts so concurrent duplicate
	// triggers (one per channel) cannot race past the filesExtracted guard.
	extractMu sync.Mutex

	done     chan struct{}
	shutdown sync.Once
}

// Monitor starts observing runID. The session runs until a termination
// condition fires or Stop is called; Wait blocks until then. Monitoring
// errors are absorbed per channel and never surface as a session failure.
func (c *Client) Monitor(ctx context.Context, runID string, opts MonitorOptions) *MonitorSession {
	opts.normalize()

	s := &MonitorSession{
		client:     c,
		runID:      runID,
		opts:       opts,
		run:        PipelineRun{RunID: runID},
		seenFiles:  make(map[string]bool),
		enriched:   make(map[string]bool),
		active:     true,
		pollActive: true,
		done:       make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	g := new(errgroup.Group)
	g.Go(s.streamLoop)
	g.Go(s.pollLoop)
	go func() {
		_ = g.Wait()
		s.finish()
	}()
	return s
}

// Stop ends the session. In-flight requests are allowed to complete; their
// results are discarded. A final extraction attempt runs before Wait returns.
func (s *MonitorSession) Stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.cancel()
}

// Done is closed once the session has fully terminated.
func (s *MonitorSession) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session terminates and returns the final
// reconstructed run state.
func (s *MonitorSession) Wait() *PipelineRun {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.Clone()
}

// ProgressText returns the accumulated progress text so far.
func (s *MonitorSession) ProgressText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.String()
}

func (s *MonitorSession) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// streamLoop consumes the event stream. A failed or timed-out connect is a
// degradation, not an error: polling carries on alone.
func (s *MonitorSession) streamLoop() error {
	body, err := s.client.openStream(s.ctx, s.runID, s.opts.StreamConnectTimeout)
	if err != nil {
		s.logf("stream unavailable, continuing with polling: %v", err)
		return nil
	}
	defer func() { _ = body.Close() }()

	dec := &FrameDecoder{}
	buf := make([]byte, 4096)
	dropped := 0
	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				s.handleFrame(f)
			}
			if d := dec.Dropped(); d > dropped {
				s.logf("stream: skipped %d malformed frame(s)", d-dropped)
				dropped = d
			}
		}
		if err != nil {
			// Clean EOF and connection resets are both read as the runtime
			// hanging up after the run ended; the policy on an ambiguous
			// disconnect is to assume completion, not failure.
			break
		}
		if !s.isActive() {
			return nil
		}
	}
	for _, f := range dec.Flush() {
		s.handleFrame(f)
	}
	return nil
}

// pollLoop is a self-rescheduling loop: each tick waits the full interval
// after the previous request finished, so a slow request delays the next
// tick and polls never overlap.
func (s *MonitorSession) pollLoop() error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(s.opts.PollInterval):
		}
		if !s.isActive() {
			return nil
		}

		snap, err := s.client.FetchSnapshot(s.ctx, s.runID)
		if !s.isActive() {
			// Stopped while the request was in flight; discard the result.
			return nil
		}
		if err != nil {
			stop := s.recordPollFailure(err)
			if stop {
				return nil
			}
			continue
		}

		s.mu.Lock()
		s.pollFailures = 0
		s.mu.Unlock()
		s.handleSnapshot(snap)
	}
}

// recordPollFailure counts a consecutive poll failure and decides whether the
// poll channel (or the whole session) is over. Reaching the retry ceiling
// stops only future polls, unless the failures say the remote side is gone,
// which is treated as an expected end-of-run signal.
func (s *MonitorSession) recordPollFailure(err error) (stop bool) {
	s.mu.Lock()
	s.pollFailures++
	failures := s.pollFailures
	s.mu.Unlock()

	s.logf("poll failed (%d/%d): %v", failures, s.opts.MaxPollRetries, err)
	if failures < s.opts.MaxPollRetries {
		return false
	}

	s.mu.Lock()
	s.pollActive = false
	s.mu.Unlock()

	if IsConnectionGone(err) {
		s.logf("runtime went away; assuming the run finished")
		s.Stop()
	}
	return true
}

func (s *MonitorSession) handleFrame(f Frame) {
	switch f.Kind {
	case FrameStep:
		s.applyStep(f.StepID, f.StepStatus)
	case FrameStatus:
		s.applyStatus(f.Status)
	default:
		// message identifiers and unknown frames carry no run state
	}
}

func (s *MonitorSession) handleSnapshot(snap *WatchSnapshot) {
	if s.opts.OnStatus != nil {
		s.opts.OnStatus(*snap)
	}
	for stepID, status := range snap.ActivePaths {
		s.applyStep(stepID, status)
	}
	s.applyStatus(snap.Status)
}

// applyStep folds in one step transition from either channel. The same
// transition may arrive twice; the consequent actions are idempotent rather
// than the notifications being suppressed.
func (s *MonitorSession) applyStep(stepID string, status StepStatus) {
	s.mu.Lock()
	applied := s.run.ApplyStep(stepID, status)
	s.mu.Unlock()
	if !applied {
		return
	}

	s.appendProgress(fmt.Sprintf("step %s: %s", stepID, status))
	if status == StepSuccess {
		s.enrichStep(stepID)
		if IsScaffoldStep(stepID) {
			s.extractFiles("scaffold step succeeded")
		}
	}
}

func (s *MonitorSession) applyStatus(status RunStatus) {
	s.mu.Lock()
	changed := s.run.ApplyStatus(status)
	s.mu.Unlock()

	if changed {
		s.appendProgress(fmt.Sprintf("run status: %s", status))
	}
	if status.IsTerminal() && s.opts.StopOnCompletion {
		s.Stop()
	}
}

// enrichStep fetches a successful step's structured output and folds a
// rendering of it into the progress text. Fetch failures are non-fatal;
// progress continues without the rendering.
func (s *MonitorSession) enrichStep(stepID string) {
	s.mu.Lock()
	if s.enriched[stepID] {
		s.mu.Unlock()
		return
	}
	s.enriched[stepID] = true
	s.mu.Unlock()

	output, err := s.client.FetchStepOutput(s.ctx, s.runID, stepID)
	if err != nil {
		s.logf("could not fetch output for step %s: %v", stepID, err)
		return
	}
	if len(output) == 0 {
		return
	}

	s.mu.Lock()
	if st, ok := s.run.Steps[stepID]; ok {
		st.Output = output
		s.run.Steps[stepID] = st
	}
	s.mu.Unlock()

	s.collectFiles(output)

	if s.opts.RenderOutput != nil {
		if rendered := s.opts.RenderOutput(stepID, output); rendered != "" {
			s.appendProgress(rendered)
			return
		}
	}
	s.emitProgress()
}

// collectFiles records files named in a step output so progress callbacks
// can report the artifact list as it becomes known.
func (s *MonitorSession) collectFiles(output json.RawMessage) {
	var sf StepFiles
	if err := json.Unmarshal(output, &sf); err != nil || len(sf.Files) == 0 {
		return
	}
	s.mu.Lock()
	for _, f := range sf.Files {
		if f.Path == "" || s.seenFiles[f.Path] {
			continue
		}
		s.seenFiles[f.Path] = true
		s.files = append(s.files, f)
	}
	s.mu.Unlock()
}

func (s *MonitorSession) appendProgress(line string) {
	s.mu.Lock()
	s.progress.WriteString(line)
	s.progress.WriteString("\n")
	s.mu.Unlock()
	s.emitProgress()
}

func (s *MonitorSession) emitProgress() {
	if s.opts.OnProgress == nil {
		return
	}
	s.mu.Lock()
	text := s.progress.String()
	files := make([]FileRef, len(s.files))
	copy(files, s.files)
	s.mu.Unlock()
	s.opts.OnProgress(text, files)
}

// extractFiles triggers one reconciliation pass unless a previous pass has
// already materialized files. The extractor itself is a pure overwrite, so a
// redundant invocation is harmless; this guard only avoids pointless passes.
func (s *MonitorSession) extractFiles(reason string) {
	if s.opts.Extractor == nil {
		return
	}
	s.extractMu.Lock()
	defer s.extractMu.Unlock()

	s.mu.Lock()
	if s.filesExtracted {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// The final attempt can run after the session context is cancelled.
	n, err := s.opts.Extractor.Extract(context.WithoutCancel(s.ctx), s.runID)
	if err != nil {
		s.logf("extraction (%s) failed: %v", reason, err)
		return
	}
	if n > 0 {
		s.mu.Lock()
		s.filesExtracted = true
		s.mu.Unlock()
		s.logf("materialized %d file(s) (%s)", n, reason)
	}
}

// finish runs once both channels have ended: one last extraction attempt,
// then the session is marked dead.
func (s *MonitorSession) finish() {
	s.shutdown.Do(func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		s.cancel()
		s.extractFiles("session ended")
		close(s.done)
	})
}

func (s *MonitorSession) logf(format string, args ...any) {
	if s.opts.Logf != nil {
		s.opts.Logf(format, args...)
	}
}
