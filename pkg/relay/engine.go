package relay

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gridiron-hq/oracle/pkg/prompt"
	"gridiron-hq/oracle/pkg/telemetry/metrics"
	"gridiron-hq/oracle/pkg/transcript"
	"gridiron-hq/oracle/pkg/upstream"
)

// Options contains the engine's tunables. They are constructed once and
// passed in; the engine reads no configuration from the environment.
type Options struct {
	// ConnectTimeout is the connect watchdog window.
	// Default: 15s
	ConnectTimeout time.Duration

	// OverallTimeout caps the overall session deadline. Known actions
	// declare their own budget; the lower of the two governs.
	// Default: 120s
	OverallTimeout time.Duration

	// KeepAliveInterval is the wait before emitting synthetic
	// keep-alive records in pass-through mode.
	// Default: 10s
	KeepAliveInterval time.Duration

	// MaxFrameBuffer bounds the frame parser's accumulation buffer.
	MaxFrameBuffer int

	// MaxAnswerBytes bounds the buffering aggregator's accumulator.
	MaxAnswerBytes int

	// Limits are the request-builder size limits.
	Limits prompt.Limits
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 15 * time.Second
	}
	if o.OverallTimeout <= 0 {
		o.OverallTimeout = 120 * time.Second
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = DefaultKeepAliveInterval
	}
	return o
}

// Call describes one draft-assistant exchange handed to the engine by the
// route layer.
type Call struct {
	// Action is the draft-assistant action identifier.
	Action string

	// Payload is the structured payload to be slimmed and submitted.
	Payload map[string]any

	// ConversationID continues an existing conversation when set.
	ConversationID string

	// User identifies the end user.
	User string
}

// Engine is the consolidated streaming-proxy and buffering engine. One
// Engine serves all calls; each call runs as an independent session.
type Engine struct {
	client  *upstream.Client
	opts    Options
	metrics *metrics.SessionMetrics
	ring    *transcript.Ring
	archive *transcript.Archive
	logger  *slog.Logger
}

// NewEngine creates an engine. metrics, ring, and archive are optional;
// nil disables the corresponding breadcrumb surface.
func NewEngine(client *upstream.Client, opts Options, m *metrics.SessionMetrics, ring *transcript.Ring, archive *transcript.Archive) *Engine {
	return &Engine{
		client:  client,
		opts:    opts.withDefaults(),
		metrics: m,
		ring:    ring,
		archive: archive,
		logger:  slog.Default().With("component", "relay.engine"),
	}
}

// Buffered runs one call in buffered mode: all frames are accumulated and
// a single terminal result is returned. The returned error is an
// *Envelope for classified session failures, or an
// *prompt.UnknownActionError when the action is not recognized.
func (e *Engine) Buffered(ctx context.Context, call Call) (*BufferedResult, error) {
	sess := NewSession(call.Action, ModeBuffered)
	logger := e.logger.With("session_id", sess.ID, "action", call.Action)

	chatReq, ctrl, err := e.open(ctx, sess, call, logger)
	if err != nil {
		return nil, err
	}
	defer ctrl.Finish()

	stream, err := e.client.OpenStream(ctrl.Context(), chatReq)
	if err != nil {
		return nil, e.fail(sess, ctrl, err, logger)
	}
	defer stream.Close()
	ctrl.ConnectEstablished()

	e.mark(sess, PhaseStreaming)
	parser := upstream.NewParser(e.opts.MaxFrameBuffer)
	agg := newAggregator(e.opts.MaxAnswerBytes)

	err = e.readFrames(stream, parser, sess, func(frame upstream.Frame) (bool, error) {
		e.crumb(sess.ID, "frame:"+frame.Event, "")
		return agg.consume(frame)
	})
	if err != nil {
		return nil, e.fail(sess, ctrl, err, logger)
	}

	e.mark(sess, PhaseFinalizing)
	result := agg.finalize(sess.Elapsed())
	e.mark(sess, PhaseDone)
	e.finish(sess, "ok")

	logger.Info("buffered session completed",
		"conversation_id", result.ConversationID,
		"frames", sess.Frames.Load(),
		"bytes", sess.Bytes.Load(),
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// PassThrough runs one call in pass-through mode, re-encoding each frame
// as a line-delimited record on w. It writes exactly one terminal record
// ("complete" on success, "error" on timeout or upstream failure) and
// nothing at all when the caller disconnects.
func (e *Engine) PassThrough(ctx context.Context, call Call, w io.Writer) error {
	sess := NewSession(call.Action, ModePassThrough)
	logger := e.logger.With("session_id", sess.ID, "action", call.Action)

	chatReq, ctrl, err := e.open(ctx, sess, call, logger)
	if err != nil {
		return err
	}
	defer ctrl.Finish()

	pt := newPassthrough(w)

	stream, err := e.client.OpenStream(ctrl.Context(), chatReq)
	if err != nil {
		envelope := e.fail(sess, ctrl, err, logger)
		if envelope.Kind != KindCallerCancelled {
			_ = pt.writeError(envelope)
		}
		return envelope
	}
	defer stream.Close()
	ctrl.ConnectEstablished()

	e.mark(sess, PhaseStreaming)
	parser := upstream.NewParser(e.opts.MaxFrameBuffer)

	// One reader goroutine drives the upstream body; the writer loop
	// below owns the caller's sink so keep-alives can fire while the
	// read blocks.
	frames := make(chan upstream.Frame)
	errc := make(chan error, 1)
	go func() {
		errc <- e.readFrames(stream, parser, sess, func(frame upstream.Frame) (bool, error) {
			select {
			case frames <- frame:
				return false, nil
			case <-ctrl.Context().Done():
				return false, ctrl.Context().Err()
			}
		})
		close(frames)
	}()

	ticker := time.NewTicker(e.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				rerr := <-errc
				if rerr != nil {
					envelope := e.fail(sess, ctrl, rerr, logger)
					if envelope.Kind != KindCallerCancelled {
						_ = pt.writeError(envelope)
					}
					return envelope
				}
				e.mark(sess, PhaseFinalizing)
				if werr := pt.writeComplete(sess.Elapsed(), sess.Frames.Load()); werr != nil {
					ctrl.CallerGone()
					return e.fail(sess, ctrl, werr, logger)
				}
				e.mark(sess, PhaseDone)
				e.finish(sess, "ok")
				logger.Info("pass-through session completed",
					"frames", sess.Frames.Load(),
					"bytes", sess.Bytes.Load(),
					"duration_ms", sess.Elapsed().Milliseconds(),
				)
				return nil
			}
			e.crumb(sess.ID, "frame:"+frame.Event, "")
			if werr := pt.writeFrame(frame); werr != nil {
				// The sink is gone; cancel the upstream read and
				// surface nothing further.
				ctrl.CallerGone()
				return e.fail(sess, ctrl, werr, logger)
			}

		case <-ticker.C:
			if werr := pt.writeKeepAlive(sess.Elapsed()); werr != nil {
				ctrl.CallerGone()
				return e.fail(sess, ctrl, werr, logger)
			}
		}
	}
}

// open builds the request body and starts the cancellation controller.
func (e *Engine) open(ctx context.Context, sess *Session, call Call, logger *slog.Logger) (*upstream.ChatRequest, *Controller, error) {
	chatReq, obs, err := prompt.Build(call.Action, call.Payload, call.ConversationID, call.User, true, e.opts.Limits)
	if err != nil {
		e.mark(sess, PhaseFailed)
		logger.Error("failed to build request", "error", err)
		return nil, nil, err
	}

	e.metrics.ObserveRequestSize(call.Action, obs.BodyBytes)
	logger.Debug("request built",
		"body_bytes", obs.BodyBytes,
		"truncated_arrays", obs.TruncatedArrays,
		"truncated_strings", obs.TruncatedStrings,
	)

	overall := prompt.Timeout(call.Action, e.opts.OverallTimeout)
	if e.opts.OverallTimeout < overall {
		overall = e.opts.OverallTimeout
	}
	ctrl := NewController(ctx, e.opts.ConnectTimeout, overall)
	e.mark(sess, PhaseConnecting)
	return chatReq, ctrl, nil
}

// readFrames is the single read loop of a session: it pulls byte chunks
// from the stream, feeds the parser, and hands each complete frame to the
// active consumption strategy. It returns nil on normal end of stream.
func (e *Engine) readFrames(stream *upstream.Stream, parser *upstream.Parser, sess *Session, handle func(upstream.Frame) (bool, error)) error {
	buf := make([]byte, 32*1024)
	for {
		n, rerr := stream.Read(buf)
		if n > 0 {
			sess.Bytes.Add(int64(n))
			parsed, perr := parser.Feed(buf[:n])
			if perr != nil {
				return perr
			}
			for _, frame := range parsed {
				sess.Frames.Add(1)
				terminal, herr := handle(frame)
				if herr != nil {
					return herr
				}
				if terminal {
					return nil
				}
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// fail classifies a session failure exactly once. Caller disconnects are
// expected teardown and logged at debug, never as errors.
func (e *Engine) fail(sess *Session, ctrl *Controller, err error, logger *slog.Logger) *Envelope {
	envelope := Classify(err, ctrl.Reason())
	e.mark(sess, PhaseFailed)
	e.crumb(sess.ID, "error:"+string(envelope.Kind), envelope.Message)

	if envelope.Kind == KindCallerCancelled {
		logger.Debug("session ended by caller disconnect",
			"frames", sess.Frames.Load(),
			"bytes", sess.Bytes.Load(),
		)
	} else {
		logger.Error("session failed",
			"kind", envelope.Kind,
			"error", envelope.Message,
			"frames", sess.Frames.Load(),
			"bytes", sess.Bytes.Load(),
		)
	}

	e.finish(sess, string(envelope.Kind))
	return envelope
}

// mark transitions the session phase and mirrors it into the transcript.
func (e *Engine) mark(sess *Session, phase Phase) {
	sess.Mark(phase)
	e.crumb(sess.ID, "phase:"+string(phase), "")
}

// crumb appends one transcript entry, if the ring is enabled.
func (e *Engine) crumb(correlationID, event, detail string) {
	e.ring.Append(correlationID, transcript.Entry{
		At:     time.Now(),
		Event:  event,
		Detail: detail,
	})
}

// finish records metrics and archives the transcript for a finished
// session.
func (e *Engine) finish(sess *Session, status string) {
	e.metrics.ObserveSession(sess.Action, string(sess.Mode), status, sess.Elapsed(), sess.Frames.Load(), sess.Bytes.Load())

	if e.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := &transcript.Record{
		CorrelationID: sess.ID,
		Action:        sess.Action,
		Mode:          string(sess.Mode),
		Status:        status,
		StartedAt:     sess.StartedAt,
		Duration:      sess.Elapsed(),
		Frames:        sess.Frames.Load(),
		Bytes:         sess.Bytes.Load(),
		Entries:       e.ring.Snapshot(sess.ID),
	}
	if err := e.archive.Save(ctx, record); err != nil {
		e.logger.Warn("failed to archive session transcript",
			"session_id", sess.ID,
			"error", err,
		)
	}
}
