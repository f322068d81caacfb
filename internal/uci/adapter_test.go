package uci

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeTransport stands in for the engine process: it records every command,
// feeds canned output through ReadChunk and can simulate a dead pipe.
type fakeTransport struct {
	mu   sync.Mutex
	cmds []string

	handshake bool
	autoReady bool
	failReads bool

	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(text string) error {
	f.mu.Lock()
	f.cmds = append(f.cmds, text)
	f.mu.Unlock()
	switch {
	case f.handshake && text == "uci\n":
		f.push("id name Fakefish 1\nuciok\n")
	case f.autoReady && text == "isready\n":
		f.push("readyok\n")
	}
	return nil
}

func (f *fakeTransport) push(s string) {
	select {
	case f.out <- []byte(s):
	case <-f.closed:
	}
}

func (f *fakeTransport) ReadChunk(p []byte) (int, error) {
	if f.failReads {
		return 0, io.ErrUnexpectedEOF
	}
	select {
	case b := <-f.out:
		return copy(p, b), nil
	case <-f.closed:
		return 0, io.EOF
	}
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

func startTestAdapter(t *testing.T, tr *fakeTransport, cfg Config) *Adapter {
	t.Helper()
	a := newAdapter(tr, cfg)
	a.start()
	t.Cleanup(func() { _ = a.Close() })
	if tr.handshake {
		if err := a.handshake(context.Background()); err != nil {
			t.Fatalf("handshake: %v", err)
		}
	}
	return a
}

func TestDefaultReadyBudget(t *testing.T) {
	if defaultReadyTimeout != 3*time.Second {
		t.Fatalf("default ready budget = %v", defaultReadyTimeout)
	}
}

func TestAwaitReadyTimeout(t *testing.T) {
	tr := newFakeTransport()
	a := startTestAdapter(t, tr, Config{ReadyTimeout: 50 * time.Millisecond})

	started := time.Now()
	err := a.AwaitReady(context.Background())
	elapsed := time.Since(started)

	if !errors.Is(err, ErrReadyTimeout) {
		t.Fatalf("err = %v, want ErrReadyTimeout", err)
	}
	if elapsed > time.Second {
		t.Fatalf("readiness wait took %v, budget was 50ms", elapsed)
	}
}

func TestHandshakeProgramsOptions(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	tr.autoReady = true
	a := startTestAdapter(t, tr, Config{
		ExtraOptions: []OptionValue{{Name: "Move Overhead", Value: "30"}},
	})

	if got := a.EngineName(); got != "Fakefish 1" {
		t.Fatalf("engine name = %q", got)
	}

	want := []string{
		"uci\n",
		"setoption name Threads value 1\n",
		"setoption name Hash value 512\n",
		"setoption name Ponder value true\n",
		"setoption name Skill Level value 0\n",
		"setoption name Move Overhead value 30\n",
		"isready\n",
	}
	got := tr.sent()
	if len(got) != len(want) {
		t.Fatalf("commands = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("command[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHandshakeRejectsBadOptions(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	a := newAdapter(tr, Config{Options: EngineOptions{Threads: -1, HashMB: 64}})
	a.start()
	defer a.Close()

	if err := a.handshake(context.Background()); err == nil {
		t.Fatalf("handshake accepted negative thread count")
	}
}

func TestStartGameEngineWhite(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	tr.autoReady = true
	a := startTestAdapter(t, tr, Config{})

	if err := a.StartGame(context.Background(), ModeEngineWhite, 2*time.Minute); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	cmds := tr.sent()
	if !containsCommand(cmds, "ucinewgame\n") {
		t.Fatalf("ucinewgame not sent: %v", cmds)
	}
	var goCmds []string
	for _, c := range cmds {
		if strings.Contains(c, "go wtime") {
			goCmds = append(goCmds, c)
		}
	}
	if len(goCmds) != 1 {
		t.Fatalf("timed go commands = %v, want exactly one", goCmds)
	}
	if goCmds[0] != "position startpos\ngo wtime 120000 btime 120000\n" {
		t.Fatalf("kickoff = %q", goCmds[0])
	}
}

func TestStartGameEngineBlackWaitsForUser(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	tr.autoReady = true
	a := startTestAdapter(t, tr, Config{})

	if err := a.StartGame(context.Background(), ModeEngineBlack, time.Minute); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	for _, c := range tr.sent() {
		if strings.Contains(c, "go ") || strings.HasPrefix(c, "go") {
			t.Fatalf("engine-black start sent a search command: %q", c)
		}
	}
}

func TestStartGameAnalysis(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	tr.autoReady = true
	a := startTestAdapter(t, tr, Config{})

	if err := a.StartGame(context.Background(), ModeAnalysis, time.Minute); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if !containsCommand(tr.sent(), "position startpos\ngo infinite\n") {
		t.Fatalf("analysis kickoff missing: %v", tr.sent())
	}
	if st := a.State(); !st.Analysing {
		t.Fatalf("analysing flag not set")
	}
}

func TestStartGameRejectsIdleMode(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	tr.autoReady = true
	a := startTestAdapter(t, tr, Config{})

	if err := a.StartGame(context.Background(), ModeIdle, time.Minute); err == nil {
		t.Fatalf("StartGame accepted idle mode")
	}
}

func TestSubmitUserMove(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	tr.autoReady = true
	a := startTestAdapter(t, tr, Config{})

	if err := a.StartGame(context.Background(), ModeEngineBlack, time.Minute); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := a.SubmitUserMove(context.Background(), " E2E4 "); err != nil {
		t.Fatalf("SubmitUserMove: %v", err)
	}

	st := a.State()
	if len(st.Moves) != 1 || st.Moves[0] != "e2e4" {
		t.Fatalf("history = %v", st.Moves)
	}
	if st.Ply != 2 || st.ToPlay != 1 {
		t.Fatalf("ply=%d toPlay=%d, want 2/1", st.Ply, st.ToPlay)
	}

	cmds := tr.sent()
	if !containsCommand(cmds, "position startpos moves e2e4\n") {
		t.Fatalf("position not forwarded: %v", cmds)
	}
	if !containsCommand(cmds, "go wtime 60000 btime 60000\n") {
		t.Fatalf("timed search not started: %v", cmds)
	}
}

func TestSubmitUserMoveValidation(t *testing.T) {
	tr := newFakeTransport()
	tr.handshake = true
	tr.autoReady = true
	a := startTestAdapter(t, tr, Config{})

	for _, bad := range []string{"", "e2", "e9e4", "i2i4", "e2e4k", "castle"} {
		if err := a.SubmitUserMove(context.Background(), bad); !errors.Is(err, ErrBadMove) {
			t.Fatalf("move %q: err = %v, want ErrBadMove", bad, err)
		}
	}

	// valid token, but no game started yet
	if err := a.SubmitUserMove(context.Background(), "e2e4"); !errors.Is(err, ErrNoGame) {
		t.Fatalf("err = %v, want ErrNoGame", err)
	}
}

func TestEngineLostAfterRetries(t *testing.T) {
	tr := newFakeTransport()
	tr.failReads = true
	a := newAdapter(tr, Config{ReadRetryMax: 2, ReadyTimeout: 50 * time.Millisecond})

	lost := make(chan struct{}, 1)
	a.OnEvent(func(ev Event) {
		if ev.Kind == EventEngineLost {
			select {
			case lost <- struct{}{}:
			default:
			}
		}
	})
	a.start()
	defer a.Close()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatalf("engine-lost event never arrived")
	}

	if !a.State().Lost {
		t.Fatalf("session not marked lost")
	}
	if err := a.SubmitUserMove(context.Background(), "e2e4"); !errors.Is(err, ErrEngineLost) {
		t.Fatalf("SubmitUserMove err = %v, want ErrEngineLost", err)
	}
	if err := a.AwaitReady(context.Background()); !errors.Is(err, ErrEngineLost) {
		t.Fatalf("AwaitReady err = %v, want ErrEngineLost", err)
	}
	if err := a.StartGame(context.Background(), ModeEngineWhite, time.Minute); !errors.Is(err, ErrEngineLost) {
		t.Fatalf("StartGame err = %v, want ErrEngineLost", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	tr := newFakeTransport()
	a := newAdapter(tr, Config{ReadyTimeout: 50 * time.Millisecond})
	a.start()

	if err := a.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !containsCommand(tr.sent(), "quit\n") {
		t.Fatalf("quit never sent: %v", tr.sent())
	}
}

func TestBackoffDuration(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{6, 3200 * time.Millisecond},
		{10, 3200 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := backoffDuration(tc.attempt); got != tc.want {
			t.Fatalf("backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func containsCommand(cmds []string, want string) bool {
	for _, c := range cmds {
		if c == want {
			return true
		}
	}
	return false
}
