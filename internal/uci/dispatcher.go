package uci

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/on62/cairo-board/internal/obslog"
)

type commandSender interface {
	Send(text string) error
}

// dispatcher turns tokens into session-state transitions and outbound
// events. It runs exclusively on the background read loop, so tokens are
// always applied in engine emission order.
type dispatcher struct {
	st     *session
	send   commandSender
	events *notifier
	clock  GameClock
	opts   *optionRegistry
}

func (d *dispatcher) handle(tok Token) {
	switch tok.Kind {
	case TokenOK:
		d.st.markProtoReady()
		obslog.L().Info("uci_handshake_ok")
	case TokenReadyOK:
		d.st.markReady()
	case TokenIDName:
		d.st.setName(tok.Name)
		obslog.L().Info("engine_identified", zap.String("name", tok.Name))
		d.events.publish(Event{Kind: EventEngineName, Name: tok.Name})
	case TokenIDAuthor:
		obslog.L().Info("engine_author", zap.String("author", tok.Name))
	case TokenOption:
		d.opts.put(tok.Name, tok.OptionType)
		obslog.L().Debug("engine_option",
			zap.String("name", tok.Name),
			zap.String("type", tok.OptionType),
		)
	case TokenBestMoveNone:
		// engine has no legal move to offer
		obslog.L().Debug("bestmove_none")
	case TokenBestMove:
		d.handleBestMove(tok.Move, "")
	case TokenBestMovePonder:
		d.handleBestMove(tok.Move, tok.Ponder)
	case TokenInfo:
		d.handleInfo(tok.Line)
	case TokenEmpty:
	default:
		obslog.L().Debug("uci_line_discarded", zap.String("line", tok.Line))
	}
}

// acceptMove applies the shared move-accept rule for engine and user
// moves: record, toggle side to move, drive the clock collaborator.
func (d *dispatcher) acceptMove(move string) {
	ply, toPlay := d.st.appendMove(move)
	if d.clock != nil {
		if ply == 1 {
			d.clock.StartOne(toPlay)
		} else {
			d.clock.StartOneStopOther(toPlay)
		}
	}
}

func (d *dispatcher) handleBestMove(move, ponder string) {
	if d.st.consumeStaleBestMove() {
		// result of an aborted ponder/analysis search; not a game move
		obslog.L().Debug("bestmove_skipped", zap.String("move", move))
		return
	}

	promo := DecodePromotion(move)
	d.acceptMove(move)
	obslog.L().Info("engine_move",
		zap.String("move", move),
		zap.String("promotion", promo.String()),
	)
	d.events.publish(Event{Kind: EventMoveAccepted, Move: move, Promotion: promo})

	if ponder == "" {
		return
	}
	// queue the predicted reply and keep searching on the opponent's time
	if err := d.send.Send(d.st.positionCommand(ponder) + "\n"); err != nil {
		return
	}
	if err := d.send.Send("go ponder\n"); err != nil {
		return
	}
	d.st.setPondering(ponder)
}

type infoFields struct {
	scoreCP   int
	hasCP     bool
	scoreMate int
	hasMate   bool
	nps       int
	hasNPS    bool
	pv        []string
}

// parseInfoFields scans an info line for the three fields the adapter
// forwards. Each is optional and independently present.
func parseInfoFields(line string) infoFields {
	var f infoFields
	parts := strings.Fields(line)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "score":
			if i+2 < len(parts) {
				if v, err := strconv.Atoi(parts[i+2]); err == nil {
					switch parts[i+1] {
					case "cp":
						f.scoreCP = v
						f.hasCP = true
					case "mate":
						f.scoreMate = v
						f.hasMate = true
					}
				}
				i += 2
			}
		case "nps":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					f.nps = v
					f.hasNPS = true
				}
				i++
			}
		case "pv":
			f.pv = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		}
	}
	return f
}

// orientScore flips the engine-perspective score to the human perspective
// depending on the game mode and, in analysis, on the side to move.
func orientScore(v int, mode Mode, toPlay int) int {
	switch mode {
	case ModeEngineBlack:
		return -v
	case ModeAnalysis:
		if toPlay == 1 {
			return -v
		}
	}
	return v
}

func (d *dispatcher) handleInfo(line string) {
	f := parseInfoFields(line)
	mode, toPlay := d.st.scoreContext()

	if f.hasCP {
		v := orientScore(f.scoreCP, mode, toPlay)
		text := fmt.Sprintf("%.2f", float64(v)/100.0)
		d.st.setAnalysis(func(a *AnalysisInfo) { a.Score = text })
		d.events.publish(Event{Kind: EventAnalysisScore, Score: text})
	} else if f.hasMate {
		v := orientScore(f.scoreMate, mode, toPlay)
		text := fmt.Sprintf("#%d", v)
		d.st.setAnalysis(func(a *AnalysisInfo) { a.Score = text })
		d.events.publish(Event{Kind: EventAnalysisScore, Score: text})
	}

	if len(f.pv) > 0 {
		d.st.setAnalysis(func(a *AnalysisInfo) { a.BestLine = append([]string(nil), f.pv...) })
		d.events.publish(Event{Kind: EventAnalysisBestLine, Line: append([]string(nil), f.pv...)})
	}

	if f.hasNPS {
		text := fmt.Sprintf("%d kNps", f.nps/1000)
		d.st.setAnalysis(func(a *AnalysisInfo) { a.NodesPerSec = text })
		d.events.publish(Event{Kind: EventAnalysisNodesPerSecond, NodesPerSec: text})
	}
}
