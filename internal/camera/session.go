package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultHost           = "localhost"
	DefaultPort           = 8888
	DefaultConnectTimeout = 3000 * time.Millisecond
)

var ErrNoCamera = errors.New("no camera connected")

// Shape distinguishes the two kinds of session.
type Shape string

const (
	ShapeStatus   Shape = "status"
	ShapeCommands Shape = "commands"
)

// State is a step of the session state machine.
type State string

const (
	StateConnecting         State = "connecting"
	StateConnected          State = "connected"
	StateStatusUpdated      State = "status_updated"
	StateBufferFound        State = "buffer_found"
	StateNoBuffer           State = "no_buffer"
	StatePreviewDownloaded  State = "preview_downloaded"
	StateFullDownloaded     State = "full_downloaded"
	StateBufferDeleted      State = "buffer_deleted"
	StateDone               State = "done"
	StateConnectFailed      State = "connect_failed"
	StateNoCameraConnected  State = "no_camera_connected"
	StateStatusUpdateFailed State = "status_update_failed"
	StateIOError            State = "io_error"
)

// Options configure a Runner. The zero value of a field selects its default.
type Options struct {
	Address        string
	ConnectTimeout time.Duration
	SaveDir        string
	ShowPreview    bool
	// StrictLength fails a session whose capture payload ends before its
	// declared length. The truncated file is kept and the buffer is not
	// deleted on the camera.
	StrictLength bool
}

func DefaultOptions() Options {
	return Options{
		Address:        net.JoinHostPort(DefaultHost, strconv.Itoa(DefaultPort)),
		ConnectTimeout: DefaultConnectTimeout,
		SaveDir:        ".",
	}
}

// Hooks deliver intermediate session output. Every field is optional.
type Hooks struct {
	OnStatus   func(*StatusRecord)
	OnPreview  func(*Preview)
	OnProgress ProgressFunc
}

// Result is the outcome of one session. Err is nil on success.
type Result struct {
	SessionID   string
	Shape       Shape
	State       State
	Elapsed     time.Duration
	Status      *StatusRecord
	BufferIndex int
	HasBuffer   bool
	Preview     *Preview
	Capture     *Transfer
	Err         error
}

func (r *Result) OK() bool {
	return r.Err == nil
}

// Message renders the terminal result: elapsed time for a successful status
// session, nothing for a successful command session, or a failure message.
func (r *Result) Message() string {
	switch {
	case r.Err == nil && r.Shape == ShapeStatus:
		return fmt.Sprintf("time %d ms", r.Elapsed.Milliseconds())
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ErrNoCamera):
		return "No camera connected"
	case errors.Is(r.Err, ErrStatusUpdate):
		return "Cannot update status"
	default:
		return "Error: " + r.Err.Error()
	}
}

// Runner executes sessions against the daemon. It is not safe to run two
// sessions at once; callers serialize them.
type Runner struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	// shutterCount is derived from the last status session and used by
	// command sessions.
	shutterCount atomic.Int64
}

func NewRunner(opts Options, logger *slog.Logger) *Runner {
	defaults := DefaultOptions()
	if opts.Address == "" {
		opts.Address = defaults.Address
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.SaveDir == "" {
		opts.SaveDir = defaults.SaveDir
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{opts: opts, logger: logger, now: time.Now}
	r.shutterCount.Store(1)
	return r
}

func (r *Runner) Options() Options {
	return r.opts
}

// ShutterCount is the cached repeat count for the shutter command.
func (r *Runner) ShutterCount() int {
	return int(r.shutterCount.Load())
}

// SetShutterCount overrides the cached repeat count. Values below 1 reset it
// to 1.
func (r *Runner) SetShutterCount(n int) {
	if n < 1 {
		n = 1
	}
	r.shutterCount.Store(int64(n))
}

type session struct {
	result *Result
	logger *slog.Logger
	start  time.Time
}

func (r *Runner) begin(shape Shape) *session {
	id := uuid.NewString()
	s := &session{
		result: &Result{SessionID: id, Shape: shape, State: StateConnecting},
		logger: r.logger.With("session", id, "shape", string(shape)),
		start:  r.now(),
	}
	s.logger.Debug("Session started", "address", r.opts.Address)
	return s
}

func (s *session) advance(state State) {
	s.result.State = state
	s.logger.Debug("Session state", "state", string(state))
}

func (s *session) fail(state State, err error) *Result {
	s.result.State = state
	s.result.Err = err
	return s.result
}

func (r *Runner) finish(s *session) {
	s.result.Elapsed = r.now().Sub(s.start)
	if s.result.Err != nil {
		s.logger.Warn("Session failed", "state", string(s.result.State), "error", s.result.Err)
		return
	}
	level := slog.LevelInfo
	if s.result.State == StateDone && s.result.Shape == ShapeStatus && !s.result.HasBuffer {
		// Idle polls.
		level = slog.LevelDebug
	}
	s.logger.Log(context.Background(), level, "Session finished", "state", string(s.result.State), "elapsed_ms", s.result.Elapsed.Milliseconds())
}

// RunStatus runs a status and download session: connect, refresh and read the
// status, then fetch and delete the lowest pending buffer, if any.
func (r *Runner) RunStatus(ctx context.Context, hooks Hooks) *Result {
	s := r.begin(ShapeStatus)
	defer r.finish(s)

	conn, err := dial(ctx, r.opts.Address, r.opts.ConnectTimeout)
	if err != nil {
		return s.fail(StateConnectFailed, err)
	}
	defer closeConn(conn, s.logger)
	s.advance(StateConnected)

	ch := NewLineChannel(conn, conn)
	reply, err := ch.Roundtrip(CmdConnect)
	if err != nil {
		return s.fail(StateIOError, err)
	}
	if !replyOK(reply) {
		return s.fail(StateNoCameraConnected, ErrNoCamera)
	}

	status, err := ReadStatus(ch)
	if errors.Is(err, ErrStatusUpdate) {
		return s.fail(StateStatusUpdateFailed, err)
	}
	if err != nil {
		return s.fail(StateIOError, err)
	}
	s.result.Status = status
	r.SetShutterCount(status.ShutterCount())
	s.advance(StateStatusUpdated)
	if hooks.OnStatus != nil {
		hooks.OnStatus(status)
	}

	index, ok := LocateBuffer(status.BufMask)
	if !ok {
		s.advance(StateNoBuffer)
		s.advance(StateDone)
		return s.result
	}
	s.result.BufferIndex = index
	s.result.HasBuffer = true
	s.advance(StateBufferFound)

	if r.opts.ShowPreview {
		var buf bytes.Buffer
		transfer, err := Download(ch, bufferCommand(CmdGetPreviewBuffer, index), &buf, nil)
		if err != nil {
			return s.fail(StateIOError, err)
		}
		transfer.Destination = "memory"
		s.result.Preview = newPreview(buf.Bytes(), transfer)
		s.advance(StatePreviewDownloaded)
		if hooks.OnPreview != nil {
			hooks.OnPreview(s.result.Preview)
		}
	}

	capture, err := r.downloadCapture(ch, index, hooks.OnProgress)
	s.result.Capture = capture
	if err != nil {
		return s.fail(StateIOError, err)
	}
	s.advance(StateFullDownloaded)
	s.logger.Info("Capture saved",
		"path", capture.Destination,
		"bytes", capture.Length,
		"declared", capture.Declared,
		"buffer", index)

	if capture.Truncated() {
		s.logger.Warn("Capture payload truncated", "path", capture.Destination, "bytes", capture.Length, "declared", capture.Declared)
		if r.opts.StrictLength {
			return s.fail(StateIOError, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, capture.Length, capture.Declared))
		}
	}

	if _, err := ch.Roundtrip(bufferCommand(CmdDeleteBuffer, index)); err != nil {
		return s.fail(StateIOError, err)
	}
	s.advance(StateBufferDeleted)
	s.advance(StateDone)
	return s.result
}

func (r *Runner) downloadCapture(ch *LineChannel, index int, progress ProgressFunc) (*Transfer, error) {
	f, err := createCaptureFile(r.opts.SaveDir, r.now())
	if err != nil {
		return nil, err
	}
	transfer, err := Download(ch, bufferCommand(CmdGetBuffer, index), f, progress)
	closeErr := f.Close()
	if transfer == nil {
		// No payload was announced; do not leave an empty file behind.
		os.Remove(f.Name())
		return nil, err
	}
	transfer.Destination = f.Name()
	if err != nil {
		return transfer, err
	}
	if closeErr != nil {
		return transfer, fmt.Errorf("failed to close capture file: %w", closeErr)
	}
	return transfer, nil
}

// RunCommands runs a command session. The shutter command is repeated the
// cached shutter count times; every other command is sent once.
func (r *Runner) RunCommands(ctx context.Context, commands []string) *Result {
	s := r.begin(ShapeCommands)
	defer r.finish(s)

	conn, err := dial(ctx, r.opts.Address, r.opts.ConnectTimeout)
	if err != nil {
		return s.fail(StateConnectFailed, err)
	}
	defer closeConn(conn, s.logger)
	s.advance(StateConnected)

	ch := NewLineChannel(conn, conn)
	for _, command := range commands {
		count := 1
		if command == CmdShutter {
			count = r.ShutterCount()
		}
		s.logger.Debug("Send command", "command", command, "count", count)
		if err := Fire(ch, command, count); err != nil {
			return s.fail(StateIOError, err)
		}
		s.logger.Debug("Read answer", "command", command)
	}
	s.advance(StateDone)
	return s.result
}
