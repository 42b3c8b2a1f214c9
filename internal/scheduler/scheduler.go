// Package scheduler drives repeated camera sessions: a status poll that runs
// a status and download session on every tick, and a burst that triggers the
// shutter a fixed number of times at a fixed delay. Both tasks hand their
// sessions to one worker, so at most one session talks to the daemon at a
// time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pktremote/internal/camera"
)

const (
	DefaultPollInterval = 200 * time.Millisecond

	MinFrames     = 1
	MaxFrames     = 99
	MinFrameDelay = 3 * time.Second
	MaxFrameDelay = 120 * time.Second
)

// Sessions runs camera sessions. *camera.Runner implements it.
type Sessions interface {
	RunStatus(ctx context.Context, hooks camera.Hooks) *camera.Result
	RunCommands(ctx context.Context, commands []string) *camera.Result
}

// Snapshot is the configuration shared by both tasks. It is copied into the
// Scheduler and never changes while the scheduler runs.
type Snapshot struct {
	// PollInterval between status sessions. Zero disables polling.
	PollInterval time.Duration
	// Frames is the number of burst triggers. Zero disables the burst.
	Frames     int
	FrameDelay time.Duration
	Commands   []string
}

func (s Snapshot) Validate() error {
	if s.PollInterval < 0 {
		return fmt.Errorf("poll interval must not be negative")
	}
	if s.Frames == 0 {
		return nil
	}
	if s.Frames < MinFrames || s.Frames > MaxFrames {
		return fmt.Errorf("frames must be between %d and %d", MinFrames, MaxFrames)
	}
	if s.Frames > 1 && (s.FrameDelay < MinFrameDelay || s.FrameDelay > MaxFrameDelay) {
		return fmt.Errorf("frame delay must be between %s and %s", MinFrameDelay, MaxFrameDelay)
	}
	if len(s.Commands) == 0 {
		return fmt.Errorf("burst needs at least one command")
	}
	return nil
}

// BurstEvent reports one burst trigger. Next is zero after the last frame.
type BurstEvent struct {
	Run    int
	Of     int
	Next   time.Time
	Result *camera.Result
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithHooks sets the hooks passed to every status session.
func WithHooks(h camera.Hooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// WithStatusResults receives the result of every status session.
func WithStatusResults(f func(*camera.Result)) Option {
	return func(s *Scheduler) { s.onStatus = f }
}

// WithBurstEvents receives an event after every burst trigger.
func WithBurstEvents(f func(BurstEvent)) Option {
	return func(s *Scheduler) { s.onBurst = f }
}

type Scheduler struct {
	snap     Snapshot
	sessions Sessions
	clock    Clock
	logger   *slog.Logger
	hooks    camera.Hooks
	onStatus func(*camera.Result)
	onBurst  func(BurstEvent)
}

func New(snap Snapshot, sessions Sessions, options ...Option) (*Scheduler, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	snap.Commands = append([]string(nil), snap.Commands...)
	s := &Scheduler{
		snap:     snap,
		sessions: sessions,
		clock:    RealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Scheduler) Snapshot() Snapshot {
	return s.snap
}

type burstJob struct {
	run  int
	next time.Time
}

// Run starts the enabled tasks and the session worker. It returns when ctx is
// done, or once the burst has finished if polling is disabled. A session that
// has already started always runs to completion; queued work is dropped when
// ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	polls := make(chan struct{}, 1)
	bursts := make(chan burstJob, max(s.snap.Frames, 1))

	var tasks sync.WaitGroup
	if s.snap.PollInterval > 0 {
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			s.pollTask(ctx, polls)
		}()
	}
	if s.snap.Frames > 0 {
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			s.burstTask(ctx, bursts)
		}()
	}

	worker := make(chan struct{})
	go func() {
		defer close(worker)
		s.work(ctx, polls, bursts)
	}()

	tasks.Wait()
	if s.snap.PollInterval <= 0 {
		// Only the burst was running: let the worker drain it.
		close(bursts)
		<-worker
		return
	}
	<-worker
}

func (s *Scheduler) pollTask(ctx context.Context, polls chan<- struct{}) {
	ticks, stop := s.clock.NewTicker(s.snap.PollInterval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			select {
			case polls <- struct{}{}:
				s.logger.Debug("Status poll queued")
			default:
				s.logger.Debug("Status poll skipped, previous session still queued")
			}
		}
	}
}

func (s *Scheduler) burstTask(ctx context.Context, bursts chan<- burstJob) {
	frames := s.snap.Frames
	delay := s.snap.FrameDelay

	emit := func(run int) {
		job := burstJob{run: run}
		if run < frames {
			job.next = s.clock.Now().Add(delay)
		}
		bursts <- job
		s.logger.Debug("Burst frame queued", "run", run)
	}

	emit(1)
	if frames == 1 {
		return
	}
	ticks, stop := s.clock.NewTicker(delay)
	defer stop()
	for run := 2; run <= frames; run++ {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			emit(run)
		}
	}
}

// work runs queued sessions one at a time. Burst triggers take priority over
// status polls. Nothing queued is started once ctx is done.
func (s *Scheduler) work(ctx context.Context, polls <-chan struct{}, bursts <-chan burstJob) {
	for ctx.Err() == nil {
		select {
		case job, ok := <-bursts:
			if !ok {
				return
			}
			s.runBurst(ctx, job)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case job, ok := <-bursts:
			if !ok {
				return
			}
			s.runBurst(ctx, job)
		case <-polls:
			s.runStatus(ctx)
		}
	}
}

func (s *Scheduler) runBurst(ctx context.Context, job burstJob) {
	if ctx.Err() != nil {
		s.logger.Debug("Burst trigger dropped", "run", job.run, "of", s.snap.Frames)
		return
	}
	s.logger.Info("Burst trigger", "run", job.run, "of", s.snap.Frames)
	result := s.sessions.RunCommands(ctx, s.snap.Commands)
	if s.onBurst != nil {
		s.onBurst(BurstEvent{Run: job.run, Of: s.snap.Frames, Next: job.next, Result: result})
	}
}

func (s *Scheduler) runStatus(ctx context.Context) {
	if ctx.Err() != nil {
		s.logger.Debug("Status poll dropped")
		return
	}
	result := s.sessions.RunStatus(ctx, s.hooks)
	if s.onStatus != nil {
		s.onStatus(result)
	}
}
