package scheduler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"pktremote/internal/camera"
)

type fakeClock struct {
	now        time.Time
	mu         sync.Mutex
	tickers    map[time.Duration]chan time.Time
	registered chan time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		tickers:    make(map[time.Duration]chan time.Time),
		registered: make(chan time.Duration, 4),
	}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	ch := make(chan time.Time)
	c.mu.Lock()
	c.tickers[d] = ch
	c.mu.Unlock()
	c.registered <- d
	return ch, func() {}
}

// waitTicker blocks until a ticker with interval d exists.
func (c *fakeClock) waitTicker(t *testing.T, d time.Duration) {
	t.Helper()
	for {
		c.mu.Lock()
		_, ok := c.tickers[d]
		c.mu.Unlock()
		if ok {
			return
		}
		select {
		case <-c.registered:
		case <-time.After(5 * time.Second):
			t.Fatalf("no ticker registered for %s", d)
		}
	}
}

// tick delivers one tick and returns once the task has received it.
func (c *fakeClock) tick(t *testing.T, d time.Duration) {
	t.Helper()
	c.waitTicker(t, d)
	c.mu.Lock()
	ch := c.tickers[d]
	c.mu.Unlock()
	select {
	case ch <- c.now:
	case <-time.After(5 * time.Second):
		t.Fatalf("tick for %s was not received", d)
	}
}

type fakeSessions struct {
	mu       sync.Mutex
	statuses int
	commands [][]string
	entered  chan struct{}
	gate     chan struct{}
}

func (f *fakeSessions) RunStatus(ctx context.Context, hooks camera.Hooks) *camera.Result {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.statuses++
	f.mu.Unlock()
	return &camera.Result{Shape: camera.ShapeStatus, State: camera.StateDone}
}

func (f *fakeSessions) RunCommands(ctx context.Context, commands []string) *camera.Result {
	f.mu.Lock()
	f.commands = append(f.commands, commands)
	f.mu.Unlock()
	return &camera.Result{Shape: camera.ShapeCommands, State: camera.StateDone}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// skipSignal is a log sink that reports every skipped poll.
type skipSignal chan struct{}

func (s skipSignal) Write(p []byte) (int, error) {
	if strings.Contains(string(p), "skipped") {
		s <- struct{}{}
	}
	return len(p), nil
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		snap    Snapshot
		wantErr string
	}{
		{"Poll only", Snapshot{PollInterval: DefaultPollInterval}, ""},
		{"Single frame", Snapshot{Frames: 1, Commands: []string{"shutter"}}, ""},
		{"Burst", Snapshot{Frames: 5, FrameDelay: 10 * time.Second, Commands: []string{"shutter"}}, ""},
		{"Too many frames", Snapshot{Frames: 100, FrameDelay: 3 * time.Second, Commands: []string{"shutter"}}, "frames"},
		{"Delay too short", Snapshot{Frames: 2, FrameDelay: time.Second, Commands: []string{"shutter"}}, "frame delay"},
		{"Delay too long", Snapshot{Frames: 2, FrameDelay: 121 * time.Second, Commands: []string{"shutter"}}, "frame delay"},
		{"No commands", Snapshot{Frames: 2, FrameDelay: 3 * time.Second}, "command"},
		{"Negative poll", Snapshot{PollInterval: -time.Second}, "poll"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestBurstRunsEveryFrame(t *testing.T) {
	clock := newFakeClock()
	sessions := &fakeSessions{}
	var events []BurstEvent
	var mu sync.Mutex

	snap := Snapshot{Frames: 3, FrameDelay: 5 * time.Second, Commands: []string{"shutter"}}
	s, err := New(snap, sessions,
		WithClock(clock),
		WithLogger(quietLogger()),
		WithBurstEvents(func(e BurstEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	clock.tick(t, 5*time.Second)
	clock.tick(t, 5*time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after the last frame")
	}

	if len(sessions.commands) != 3 {
		t.Fatalf("RunCommands called %d times, want 3", len(sessions.commands))
	}
	if sessions.statuses != 0 {
		t.Errorf("RunStatus called %d times with polling disabled", sessions.statuses)
	}
	for i, e := range events {
		if e.Run != i+1 || e.Of != 3 {
			t.Errorf("event %d = %d/%d, want %d/3", i, e.Run, e.Of, i+1)
		}
		last := i == len(events)-1
		if last && !e.Next.IsZero() {
			t.Errorf("last event Next = %v, want zero", e.Next)
		}
		if !last && !e.Next.Equal(clock.now.Add(5*time.Second)) {
			t.Errorf("event %d Next = %v, want now+5s", i, e.Next)
		}
	}
}

func TestSingleFrameNeedsNoTicker(t *testing.T) {
	clock := newFakeClock()
	sessions := &fakeSessions{}
	s, err := New(Snapshot{Frames: 1, Commands: []string{"focus"}}, sessions, WithClock(clock), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Run(context.Background())

	if len(sessions.commands) != 1 || sessions.commands[0][0] != "focus" {
		t.Errorf("commands = %v, want one focus session", sessions.commands)
	}
}

func TestPollRunsStatusSessions(t *testing.T) {
	clock := newFakeClock()
	sessions := &fakeSessions{}
	results := make(chan *camera.Result, 8)

	s, err := New(Snapshot{PollInterval: DefaultPollInterval}, sessions,
		WithClock(clock),
		WithLogger(quietLogger()),
		WithStatusResults(func(r *camera.Result) { results <- r }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		clock.tick(t, DefaultPollInterval)
		select {
		case <-results:
		case <-time.After(5 * time.Second):
			t.Fatalf("status session %d did not run", i+1)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if sessions.statuses != 3 {
		t.Errorf("RunStatus called %d times, want 3", sessions.statuses)
	}
}

func TestPollSkipsWhileSessionQueued(t *testing.T) {
	clock := newFakeClock()
	sessions := &fakeSessions{entered: make(chan struct{}, 4), gate: make(chan struct{}, 4)}
	results := make(chan *camera.Result, 8)
	skipped := make(skipSignal, 4)
	logger := slog.New(slog.NewTextHandler(skipped, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, err := New(Snapshot{PollInterval: DefaultPollInterval}, sessions,
		WithClock(clock),
		WithLogger(logger),
		WithStatusResults(func(r *camera.Result) { results <- r }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	clock.tick(t, DefaultPollInterval)
	<-sessions.entered
	// The first session is blocked: one more tick queues, the next is dropped.
	clock.tick(t, DefaultPollInterval)
	clock.tick(t, DefaultPollInterval)
	select {
	case <-skipped:
	case <-time.After(5 * time.Second):
		t.Fatal("third tick was not skipped")
	}

	sessions.gate <- struct{}{}
	sessions.gate <- struct{}{}
	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(5 * time.Second):
			t.Fatalf("status session %d did not finish", i+1)
		}
	}

	cancel()
	<-done
	if sessions.statuses != 2 {
		t.Errorf("RunStatus called %d times, want 2", sessions.statuses)
	}
}

// serialSessions records the order of sessions and how many ran at once.
type serialSessions struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	late        int
	ran         chan string
	entered     chan string
	statusGate  chan struct{}
	commandGate chan struct{}
}

func newSerialSessions() *serialSessions {
	return &serialSessions{ran: make(chan string, 16), entered: make(chan string, 16)}
}

func (f *serialSessions) run(ctx context.Context, shape string, gate chan struct{}) {
	f.mu.Lock()
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	if ctx.Err() != nil {
		f.late++
	}
	f.mu.Unlock()

	f.entered <- shape
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	f.ran <- shape
}

func (f *serialSessions) RunStatus(ctx context.Context, hooks camera.Hooks) *camera.Result {
	f.run(ctx, "status", f.statusGate)
	return &camera.Result{Shape: camera.ShapeStatus, State: camera.StateDone}
}

func (f *serialSessions) RunCommands(ctx context.Context, commands []string) *camera.Result {
	f.run(ctx, "commands", f.commandGate)
	return &camera.Result{Shape: camera.ShapeCommands, State: camera.StateDone}
}

// logLines is a log sink that forwards every record.
type logLines chan string

func (l logLines) Write(p []byte) (int, error) {
	l <- string(p)
	return len(p), nil
}

// waitLog consumes records until one contains every part.
func waitLog(t *testing.T, lines logLines, parts ...string) {
	t.Helper()
	for {
		select {
		case line := <-lines:
			matched := true
			for _, part := range parts {
				if !strings.Contains(line, part) {
					matched = false
					break
				}
			}
			if matched {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no log record with %q", parts)
		}
	}
}

func waitShape(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("session = %s, want %s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("%s session did not run", want)
	}
}

func TestBurstAndPollShareOneWorker(t *testing.T) {
	clock := newFakeClock()
	sessions := newSerialSessions()
	sessions.statusGate = make(chan struct{}, 4)
	lines := make(logLines, 64)
	logger := slog.New(slog.NewTextHandler(lines, &slog.HandlerOptions{Level: slog.LevelDebug}))

	snap := Snapshot{
		PollInterval: DefaultPollInterval,
		Frames:       2,
		FrameDelay:   3 * time.Second,
		Commands:     []string{"shutter"},
	}
	s, err := New(snap, sessions, WithClock(clock), WithLogger(logger))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Frame 1 is queued at start.
	waitShape(t, sessions.ran, "commands")

	clock.tick(t, DefaultPollInterval)
	waitLog(t, lines, "Status poll queued")
	waitShape(t, sessions.entered, "commands")
	waitShape(t, sessions.entered, "status")

	// With the status session blocked, queue one poll and then frame 2.
	clock.tick(t, DefaultPollInterval)
	waitLog(t, lines, "Status poll queued")
	clock.tick(t, 3*time.Second)
	waitLog(t, lines, "Burst frame queued", "run=2")

	sessions.statusGate <- struct{}{}
	sessions.statusGate <- struct{}{}
	for _, want := range []string{"status", "commands", "status"} {
		waitShape(t, sessions.ran, want)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.maxInFlight != 1 {
		t.Errorf("max concurrent sessions = %d, want 1", sessions.maxInFlight)
	}
}

func TestCancelDropsQueuedSessions(t *testing.T) {
	tests := []struct {
		name string
		poll time.Duration
	}{
		{"Burst only", 0},
		{"Burst and poll", DefaultPollInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			sessions := newSerialSessions()
			sessions.commandGate = make(chan struct{}, 1)
			lines := make(logLines, 64)
			logger := slog.New(slog.NewTextHandler(lines, &slog.HandlerOptions{Level: slog.LevelDebug}))

			snap := Snapshot{PollInterval: tt.poll, Frames: 3, FrameDelay: 3 * time.Second, Commands: []string{"shutter"}}
			s, err := New(snap, sessions, WithClock(clock), WithLogger(logger))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				s.Run(ctx)
				close(done)
			}()

			waitShape(t, sessions.entered, "commands")
			clock.tick(t, 3*time.Second)
			waitLog(t, lines, "Burst frame queued", "run=2")
			if tt.poll > 0 {
				clock.tick(t, tt.poll)
				waitLog(t, lines, "Status poll queued")
			}

			cancel()
			sessions.commandGate <- struct{}{}
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("Run() did not return after cancel")
			}

			close(sessions.ran)
			var ran []string
			for shape := range sessions.ran {
				ran = append(ran, shape)
			}
			if len(ran) != 1 {
				t.Errorf("sessions run = %v, want only the first frame", ran)
			}
			sessions.mu.Lock()
			defer sessions.mu.Unlock()
			if sessions.late != 0 {
				t.Errorf("%d sessions started after cancel", sessions.late)
			}
		})
	}
}
