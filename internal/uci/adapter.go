package uci

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/on62/cairo-board/internal/obslog"
)

var (
	// ErrReadyTimeout means the engine did not answer isready within the
	// readiness budget. The command batch that hit it has still been sent;
	// callers decide whether to treat the session as degraded.
	ErrReadyTimeout = errors.New("engine ready wait timed out")
	// ErrEngineLost means the output stream failed past the retry budget
	// and the session is terminally dead.
	ErrEngineLost = errors.New("engine lost")
	// ErrBadMove means the submitted move is not coordinate notation.
	ErrBadMove = errors.New("malformed move token")
	// ErrNoGame means no game has been started on this session.
	ErrNoGame = errors.New("no game in progress")
)

const (
	defaultReadyTimeout = 3 * time.Second
	defaultReadRetryMax = 5
	defaultTimeBudget   = 5 * time.Minute
	readChunkSize       = 4096
)

// GameClock is the clock collaborator. The adapter only starts, switches
// and reads it; presentation and flag-fall handling live elsewhere.
type GameClock interface {
	Reset(budget time.Duration)
	Remaining(side int) time.Duration
	StartOne(side int)
	StartOneStopOther(side int)
}

type engineTransport interface {
	Send(text string) error
	ReadChunk(p []byte) (int, error)
	Close() error
}

// Config carries everything needed to spawn and drive one engine session.
type Config struct {
	EnginePath   string
	ReadyTimeout time.Duration
	ReadRetryMax int
	Options      EngineOptions
	ExtraOptions []OptionValue
	Clock        GameClock
	EventBuffer  int
}

// Adapter drives a single UCI engine subprocess: one background goroutine
// reads, tokenizes and dispatches engine output; foreground callers issue
// command batches serialized by cmdMu and fenced by the readiness
// handshake.
type Adapter struct {
	cfg   Config
	tr    engineTransport
	st    *session
	disp  *dispatcher
	ntf   *notifier
	opts  *optionRegistry
	clock GameClock
	id    string

	cmdMu      sync.Mutex
	lastBudget time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Spawn starts the engine process and completes the uci handshake,
// programming the configured options before returning. A spawn or
// handshake failure means the session cannot exist.
func Spawn(ctx context.Context, cfg Config) (*Adapter, error) {
	tr, err := SpawnTransport(ctx, cfg.EnginePath)
	if err != nil {
		return nil, err
	}
	a := newAdapter(tr, cfg)
	a.start()
	if err := a.handshake(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func newAdapter(tr engineTransport, cfg Config) *Adapter {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.ReadRetryMax <= 0 {
		cfg.ReadRetryMax = defaultReadRetryMax
	}
	if (cfg.Options == EngineOptions{}) {
		cfg.Options = DefaultEngineOptions()
	}
	a := &Adapter{
		cfg:        cfg,
		tr:         tr,
		st:         newSession(),
		ntf:        newNotifier(cfg.EventBuffer),
		opts:       newOptionRegistry(),
		clock:      cfg.Clock,
		id:         uuid.NewString(),
		lastBudget: defaultTimeBudget,
		stopCh:     make(chan struct{}),
	}
	a.disp = &dispatcher{st: a.st, send: tr, events: a.ntf, clock: a.clock, opts: a.opts}
	return a
}

func (a *Adapter) start() {
	a.running.Store(true)
	a.ntf.start()
	a.wg.Add(1)
	go a.readLoop()
}

func (a *Adapter) handshake(ctx context.Context) error {
	okCh := a.st.armOKWait()
	if err := a.tr.Send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	t := time.NewTimer(a.cfg.ReadyTimeout)
	defer t.Stop()
	select {
	case <-okCh:
	case <-t.C:
		return fmt.Errorf("wait uciok: %w", ErrReadyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stopCh:
		return ErrEngineLost
	}
	if a.st.isLost() {
		return ErrEngineLost
	}

	if err := validateEngineOptions(a.cfg.Options); err != nil {
		return err
	}
	for _, cmd := range a.cfg.Options.commands() {
		if err := a.tr.Send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	for _, ov := range a.cfg.ExtraOptions {
		if err := a.tr.Send(ov.command()); err != nil {
			return fmt.Errorf("apply extra option %s: %w", ov.Name, err)
		}
		obslog.L().Info("engine_extra_option",
			zap.String("name", ov.Name),
			zap.String("value", ov.Value),
		)
	}

	if err := a.AwaitReady(ctx); err != nil {
		return fmt.Errorf("post-option readiness: %w", err)
	}
	return nil
}

// AwaitReady runs the isready/readyok handshake. It returns within the
// configured budget either way; ErrReadyTimeout means the engine never
// answered.
func (a *Adapter) AwaitReady(ctx context.Context) error {
	if a.st.isLost() {
		return ErrEngineLost
	}
	wait := a.st.armReadyWait()
	if err := a.tr.Send("isready\n"); err != nil {
		return err
	}
	t := time.NewTimer(a.cfg.ReadyTimeout)
	defer t.Stop()
	select {
	case <-wait:
		if a.st.isLost() {
			return ErrEngineLost
		}
		return nil
	case <-t.C:
		return ErrReadyTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fence orders a command batch behind whatever the engine is still
// chewing on. A timeout is logged as a suspected crash; the batch
// proceeds regardless and the typed error is reported to the caller.
func (a *Adapter) fence(ctx context.Context) error {
	err := a.AwaitReady(ctx)
	if errors.Is(err, ErrReadyTimeout) {
		obslog.L().Warn("engine_suspected_crash", zap.Duration("timeout", a.cfg.ReadyTimeout))
	}
	return err
}

// StartGame resets the session for a new game in the given mode.
// EngineWhite kicks the engine immediately, EngineBlack waits for the
// user, Analysis starts an unbounded search.
func (a *Adapter) StartGame(ctx context.Context, mode Mode, timeControl time.Duration) error {
	switch mode {
	case ModeEngineWhite, ModeEngineBlack, ModeAnalysis:
	default:
		return fmt.Errorf("invalid game mode %d", mode)
	}
	if timeControl <= 0 {
		timeControl = defaultTimeBudget
	}

	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	if a.st.isLost() {
		return ErrEngineLost
	}

	var fenceErr error
	if a.st.busySearching() {
		_ = a.tr.Send("stop\n")
	}
	fenceErr = a.fence(ctx)

	a.st.reset(mode)
	a.lastBudget = timeControl
	if a.clock != nil {
		a.clock.Reset(timeControl)
	}

	if err := a.tr.Send("ucinewgame\n"); err != nil {
		return err
	}
	fenceErr = errors.Join(fenceErr, a.fence(ctx))

	switch mode {
	case ModeEngineWhite:
		// engine moves first
		if err := a.tr.Send("position startpos\n" + a.goClockCommand()); err != nil {
			return err
		}
	case ModeEngineBlack:
		// engine waits for the user's first move
	case ModeAnalysis:
		if err := a.tr.Send("position startpos\ngo infinite\n"); err != nil {
			return err
		}
		a.st.setAnalysing(true)
	}

	obslog.L().Info("game_started",
		zap.String("session", a.id),
		zap.String("mode", mode.String()),
		zap.Duration("time_control", timeControl),
	)
	return fenceErr
}

// SubmitUserMove accepts a user move in coordinate notation and hands the
// updated position to the engine. Legality is the caller's concern.
func (a *Adapter) SubmitUserMove(ctx context.Context, move string) error {
	move = strings.ToLower(strings.TrimSpace(move))
	if !validMoveToken(move) {
		return fmt.Errorf("%w: %q", ErrBadMove, move)
	}

	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	if a.st.isLost() {
		return ErrEngineLost
	}
	if a.st.currentMode() == ModeIdle {
		return ErrNoGame
	}

	a.disp.acceptMove(move)

	if a.st.busySearching() {
		_ = a.tr.Send("stop\n")
	}
	fenceErr := a.fence(ctx)

	if err := a.tr.Send(a.st.positionCommand() + "\n"); err != nil {
		return err
	}
	if a.st.currentMode() == ModeAnalysis {
		if err := a.tr.Send("go infinite\n"); err != nil {
			return err
		}
		a.st.setAnalysing(true)
	} else {
		if err := a.tr.Send(a.goClockCommand()); err != nil {
			return err
		}
	}

	obslog.L().Debug("user_move_submitted", zap.String("move", move))
	return fenceErr
}

func (a *Adapter) goClockCommand() string {
	w := a.lastBudget.Milliseconds()
	b := w
	if a.clock != nil {
		w = a.clock.Remaining(0).Milliseconds()
		b = a.clock.Remaining(1).Milliseconds()
	}
	return fmt.Sprintf("go wtime %d btime %d\n", w, b)
}

// readLoop is the dedicated background worker: blocking read, tokenize,
// dispatch, for the lifetime of the session. Read failures are retried
// with exponential backoff up to the retry budget, after which the
// session transitions to the terminal engine-lost state.
func (a *Adapter) readLoop() {
	defer a.wg.Done()
	buf := make([]byte, readChunkSize)
	failures := 0
	var scanner Scanner
	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		n, err := a.tr.ReadChunk(buf)
		if n > 0 {
			failures = 0
			for _, tok := range scanner.Scan(buf[:n]) {
				a.disp.handle(tok)
			}
		}
		if err == nil && n > 0 {
			continue
		}

		if a.stopping() {
			return
		}
		failures++
		if failures >= a.cfg.ReadRetryMax {
			obslog.L().Error("engine_lost",
				zap.String("session", a.id),
				zap.Int("failures", failures),
				zap.Error(err),
			)
			a.st.markLost()
			a.ntf.publish(Event{Kind: EventEngineLost})
			return
		}
		obslog.L().Warn("engine_read_failed",
			zap.Int("attempt", failures),
			zap.Error(err),
		)
		select {
		case <-a.stopCh:
			return
		case <-time.After(backoffDuration(failures)):
		}
	}
}

func (a *Adapter) stopping() bool {
	select {
	case <-a.stopCh:
		return true
	default:
		return !a.running.Load()
	}
}

// OnEvent registers a callback for outbound notifications and returns its
// registration id.
func (a *Adapter) OnEvent(cb EventCallback) int {
	return a.ntf.subscribe(cb)
}

// RemoveEventCallback drops a previously registered callback.
func (a *Adapter) RemoveEventCallback(id int) {
	a.ntf.unsubscribe(id)
}

// EngineName returns the display name reported by the engine, if any yet.
func (a *Adapter) EngineName() string { return a.st.engineName() }

// SessionID identifies this adapter session in logs and stored records.
func (a *Adapter) SessionID() string { return a.id }

// State returns a snapshot of the session for foreground readers.
func (a *Adapter) State() State { return a.st.snapshot() }

// Options lists the capabilities the engine announced at handshake time.
func (a *Adapter) Options() []OptionInfo { return a.opts.list() }

// Close shuts the session down: a best-effort quit, then process
// teardown. The pending blocking read drains or errors out before the
// background worker exits.
func (a *Adapter) Close() error {
	if !a.running.CompareAndSwap(true, false) {
		return nil
	}
	close(a.stopCh)
	_ = a.tr.Send("quit\n")
	err := a.tr.Close()
	a.wg.Wait()
	a.ntf.stop()
	obslog.L().Info("engine_session_closed", zap.String("session", a.id))
	return err
}

func validMoveToken(move string) bool {
	if len(move) != 4 && len(move) != 5 {
		return false
	}
	if move[0] < 'a' || move[0] > 'h' || move[2] < 'a' || move[2] > 'h' {
		return false
	}
	if move[1] < '1' || move[1] > '8' || move[3] < '1' || move[3] > '8' {
		return false
	}
	if len(move) == 5 {
		switch move[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return false
		}
	}
	return true
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}
