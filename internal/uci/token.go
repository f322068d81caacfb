package uci

import (
	"bytes"
	"strings"
)

// TokenKind classifies one line of engine output.
type TokenKind int

const (
	TokenNoise TokenKind = iota
	TokenEmpty
	TokenOK       // uciok
	TokenReadyOK  // readyok
	TokenIDName   // id name <text>
	TokenIDAuthor // id author <text>
	TokenOption   // option name <N> type <T> ...
	TokenBestMove
	TokenBestMovePonder
	TokenBestMoveNone // bestmove (none)
	TokenInfo
)

func (k TokenKind) String() string {
	switch k {
	case TokenEmpty:
		return "empty"
	case TokenOK:
		return "uciok"
	case TokenReadyOK:
		return "readyok"
	case TokenIDName:
		return "id_name"
	case TokenIDAuthor:
		return "id_author"
	case TokenOption:
		return "option"
	case TokenBestMove:
		return "bestmove"
	case TokenBestMovePonder:
		return "bestmove_ponder"
	case TokenBestMoveNone:
		return "bestmove_none"
	case TokenInfo:
		return "info"
	default:
		return "noise"
	}
}

// Token is one classified engine line. Payload fields are filled per kind:
// Move/Ponder for bestmove lines, Name for id/option lines, OptionType for
// option lines. Line always carries the raw text with the terminator stripped.
type Token struct {
	Kind       TokenKind
	Line       string
	Move       string
	Ponder     string
	Name       string
	OptionType string
}

// Scanner splits a byte stream into protocol lines and classifies them.
// A read may end mid-line; the incomplete tail is buffered until the next
// Scan call, so one logical line split across any number of reads still
// yields exactly one token.
type Scanner struct {
	partial []byte
}

// Scan consumes freshly read bytes and returns a token per completed line.
func (s *Scanner) Scan(p []byte) []Token {
	s.partial = append(s.partial, p...)
	var toks []Token
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(s.partial[:i], "\r"))
		s.partial = s.partial[i+1:]
		toks = append(toks, classify(line))
	}
	if len(s.partial) == 0 {
		s.partial = nil
	}
	return toks
}

func classify(line string) Token {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Token{Kind: TokenEmpty, Line: line}
	case trimmed == "uciok":
		return Token{Kind: TokenOK, Line: line}
	case trimmed == "readyok":
		return Token{Kind: TokenReadyOK, Line: line}
	case strings.HasPrefix(trimmed, "id name "):
		return Token{Kind: TokenIDName, Line: line, Name: strings.TrimSpace(trimmed[len("id name "):])}
	case strings.HasPrefix(trimmed, "id author "):
		return Token{Kind: TokenIDAuthor, Line: line, Name: strings.TrimSpace(trimmed[len("id author "):])}
	case strings.HasPrefix(trimmed, "option name "):
		name, typ, ok := splitOption(trimmed)
		if !ok {
			return Token{Kind: TokenNoise, Line: line}
		}
		return Token{Kind: TokenOption, Line: line, Name: name, OptionType: typ}
	case strings.HasPrefix(trimmed, "bestmove "):
		return classifyBestMove(line, trimmed)
	case strings.HasPrefix(trimmed, "info ") && hasInfoField(trimmed):
		return Token{Kind: TokenInfo, Line: trimmed}
	default:
		return Token{Kind: TokenNoise, Line: line}
	}
}

func classifyBestMove(line, trimmed string) Token {
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return Token{Kind: TokenNoise, Line: line}
	}
	if fields[1] == "(none)" {
		return Token{Kind: TokenBestMoveNone, Line: line}
	}
	if len(fields) >= 4 && fields[2] == "ponder" {
		return Token{Kind: TokenBestMovePonder, Line: line, Move: fields[1], Ponder: fields[3]}
	}
	return Token{Kind: TokenBestMove, Line: line, Move: fields[1]}
}

// splitOption extracts the option name and type from
// "option name <N...> type <T> [default ...]".
func splitOption(line string) (name, typ string, ok bool) {
	rest := strings.TrimPrefix(line, "option name ")
	idx := strings.Index(rest, " type ")
	if idx < 0 {
		return "", "", false
	}
	name = strings.TrimSpace(rest[:idx])
	tail := strings.Fields(rest[idx+len(" type "):])
	if name == "" || len(tail) == 0 {
		return "", "", false
	}
	return name, tail[0], true
}

func hasInfoField(line string) bool {
	fields := strings.Fields(line)
	for i, f := range fields {
		switch f {
		case "depth", "seldepth", "time", "nps", "pv":
			return true
		case "score":
			if i+1 < len(fields) && (fields[i+1] == "cp" || fields[i+1] == "mate") {
				return true
			}
		}
	}
	return false
}
