package uci

import (
	"strings"
	"sync"
)

// Mode selects who the engine plays for the duration of one game.
type Mode int

const (
	ModeIdle Mode = iota
	ModeEngineWhite
	ModeEngineBlack
	ModeAnalysis
)

func (m Mode) String() string {
	switch m {
	case ModeEngineWhite:
		return "engine-white"
	case ModeEngineBlack:
		return "engine-black"
	case ModeAnalysis:
		return "analysis"
	default:
		return "idle"
	}
}

// PieceType identifies a promotion target decoded from the fifth character
// of a coordinate move.
type PieceType int

const (
	NoPromotion PieceType = iota
	PromoteQueen
	PromoteRook
	PromoteBishop
	PromoteKnight
)

func (p PieceType) String() string {
	switch p {
	case PromoteQueen:
		return "queen"
	case PromoteRook:
		return "rook"
	case PromoteBishop:
		return "bishop"
	case PromoteKnight:
		return "knight"
	default:
		return "none"
	}
}

// DecodePromotion returns the promotion piece encoded in a 5-character
// coordinate move, case-normalized. Four-character moves carry none.
func DecodePromotion(move string) PieceType {
	if len(move) < 5 {
		return NoPromotion
	}
	switch move[4] | 0x20 {
	case 'q':
		return PromoteQueen
	case 'r':
		return PromoteRook
	case 'b':
		return PromoteBishop
	case 'n':
		return PromoteKnight
	default:
		return NoPromotion
	}
}

// AnalysisInfo holds the latest search telemetry. Overwritten on every
// info line, never accumulated.
type AnalysisInfo struct {
	Score       string
	BestLine    []string
	NodesPerSec string
}

// State is a point-in-time snapshot of the adapter-owned session.
type State struct {
	EngineName string
	Mode       Mode
	Moves      []string
	Ply        uint
	ToPlay     int
	Pondering  bool
	PonderMove string
	Analysing  bool
	Analysis   AnalysisInfo
	Lost       bool
}

// session is the single adapter-owned state object. It is written by the
// background dispatch path and by foreground command batches; every access
// goes through the one mutex.
type session struct {
	mu sync.Mutex

	name        string
	protoReady  bool // uciok seen
	readyForCmd bool // latest readyok seen
	lost        bool

	okWait    chan struct{}
	readyWait chan struct{}

	mode       Mode
	moves      []string
	ply        uint
	toPlay     int // 0 white, 1 black
	pondering  bool
	ponderMove string
	analysing  bool
	analysis   AnalysisInfo
}

func newSession() *session {
	return &session{ply: 1}
}

// reset prepares the session for a new game in the given mode.
func (s *session) reset(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.moves = nil
	s.ply = 1
	s.toPlay = 0
	s.pondering = false
	s.ponderMove = ""
	s.analysing = false
	s.analysis = AnalysisInfo{}
}

// appendMove applies the move-accept rule: record the move, toggle the
// side to move, advance the ply counter. Returns the ply the move was
// played at and the side now to move, for clock bookkeeping.
func (s *session) appendMove(move string) (ply uint, toPlay int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, move)
	s.toPlay ^= 1
	ply = s.ply
	s.ply++
	return ply, s.toPlay
}

// positionCommand renders the current history as a position command,
// without the trailing newline.
func (s *session) positionCommand(extra ...string) string {
	s.mu.Lock()
	moves := append([]string(nil), s.moves...)
	s.mu.Unlock()
	moves = append(moves, extra...)
	if len(moves) == 0 {
		return "position startpos"
	}
	return "position startpos moves " + strings.Join(moves, " ")
}

func (s *session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *session) engineName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// armOKWait clears the protocol-ready flag and returns a channel closed
// when uciok arrives.
func (s *session) armOKWait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.protoReady {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	if s.okWait == nil {
		s.okWait = make(chan struct{})
	}
	return s.okWait
}

func (s *session) markProtoReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protoReady = true
	if s.okWait != nil {
		close(s.okWait)
		s.okWait = nil
	}
}

// armReadyWait invalidates the previous readyok and returns a channel
// closed when the next one arrives.
func (s *session) armReadyWait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lost {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	s.readyForCmd = false
	if s.readyWait == nil {
		s.readyWait = make(chan struct{})
	}
	return s.readyWait
}

func (s *session) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyForCmd = true
	if s.readyWait != nil {
		close(s.readyWait)
		s.readyWait = nil
	}
}

// consumeStaleBestMove reports whether a bestmove should be swallowed
// (ponder miss or analysis result), clearing the ponder sub-state.
func (s *session) consumeStaleBestMove() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pondering || s.mode == ModeAnalysis {
		s.pondering = false
		s.ponderMove = ""
		return true
	}
	return false
}

func (s *session) setPondering(move string) {
	s.mu.Lock()
	s.pondering = true
	s.ponderMove = move
	s.mu.Unlock()
}

func (s *session) setAnalysing(v bool) {
	s.mu.Lock()
	s.analysing = v
	s.mu.Unlock()
}

func (s *session) busySearching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pondering || s.analysing
}

func (s *session) currentMode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// scoreContext returns what the info parser needs to orient a score.
func (s *session) scoreContext() (Mode, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.toPlay
}

func (s *session) setAnalysis(update func(*AnalysisInfo)) {
	s.mu.Lock()
	update(&s.analysis)
	s.mu.Unlock()
}

func (s *session) markLost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = true
	if s.readyWait != nil {
		close(s.readyWait)
		s.readyWait = nil
	}
	if s.okWait != nil {
		close(s.okWait)
		s.okWait = nil
	}
}

func (s *session) isLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// snapshot copies the session for foreground readers.
func (s *session) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		EngineName: s.name,
		Mode:       s.mode,
		Moves:      append([]string(nil), s.moves...),
		Ply:        s.ply,
		ToPlay:     s.toPlay,
		Pondering:  s.pondering,
		PonderMove: s.ponderMove,
		Analysing:  s.analysing,
		Analysis: AnalysisInfo{
			Score:       s.analysis.Score,
			BestLine:    append([]string(nil), s.analysis.BestLine...),
			NodesPerSec: s.analysis.NodesPerSec,
		},
		Lost: s.lost,
	}
}
