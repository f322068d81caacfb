// Package notation converts the engine's coordinate moves into standard
// algebraic notation for display and PGN export.
package notation

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// SANLine replays the game history from the start position, then encodes
// the continuation into SAN. The continuation is converted as far as it
// stays resolvable; engines occasionally emit truncated or garbled tails
// mid-search, so a partial result is not an error.
func SANLine(history []string, line []string) ([]string, error) {
	game, err := replay(history)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(line))
	for _, mv := range line {
		mv = strings.ToLower(strings.TrimSpace(mv))
		if mv == "" {
			break
		}
		pos := game.Position()
		decoded, err := (nchess.UCINotation{}).Decode(pos, mv)
		if err != nil {
			break
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, decoded)
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			break
		}
		out = append(out, san)
	}
	return out, nil
}

// SANHistory converts a full game history to SAN. Unlike SANLine it is
// strict: a history the rules reject is an error.
func SANHistory(history []string) ([]string, error) {
	game := nchess.NewGame()
	out := make([]string, 0, len(history))
	for i, mv := range history {
		mv = strings.ToLower(strings.TrimSpace(mv))
		pos := game.Position()
		decoded, err := (nchess.UCINotation{}).Decode(pos, mv)
		if err != nil {
			return nil, fmt.Errorf("move %d (%s): %w", i+1, mv, err)
		}
		san := nchess.AlgebraicNotation{}.Encode(pos, decoded)
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("move %d (%s): %w", i+1, mv, err)
		}
		out = append(out, san)
	}
	return out, nil
}

func replay(history []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, mv := range history {
		mv = strings.ToLower(strings.TrimSpace(mv))
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, mv, err)
		}
	}
	return game, nil
}
