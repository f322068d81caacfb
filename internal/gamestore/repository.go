package gamestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/on62/cairo-board/pkg/enginedto"
)

// Repository archives finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game. The PGN text is built from the SAN
// list when the record does not carry one already.
func (r *Repository) SaveResult(ctx context.Context, rec *enginedto.GameRecord, method string) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}

	pgnResult := mapResultToPGN(rec.Result)
	pgn := rec.PGN
	if pgn == "" {
		pgn = BuildPGN(rec, pgnResult, method)
	}

	movesUCIRaw, _ := json.Marshal(rec.MovesUCI)
	movesSANRaw, _ := json.Marshal(rec.MovesSAN)
	duration := rec.UpdatedAt.Sub(rec.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO engine_games (
	    session_id, engine_name, mode, time_control,
	    result, result_method, moves_uci, moves_san, pgn,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	  ) ON CONFLICT (session_id) DO UPDATE SET
	    engine_name=EXCLUDED.engine_name,
	    mode=EXCLUDED.mode,
	    time_control=EXCLUDED.time_control,
	    result=EXCLUDED.result,
	    result_method=EXCLUDED.result_method,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		rec.SessionID, rec.EngineName, rec.Mode, rec.TimeControl,
		strings.TrimSpace(rec.Result), strings.TrimSpace(method),
		string(movesUCIRaw), string(movesSANRaw), pgn,
		rec.StartedAt, rec.UpdatedAt, duration,
	)
	return err
}

func mapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders headers plus the numbered SAN move list.
func BuildPGN(rec *enginedto.GameRecord, pgnResult, method string) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	date := rec.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	white, black := "You", sanitizePGN(rec.EngineName)
	if rec.Mode == "engine-white" {
		white, black = black, white
	}
	b.WriteString("[Event \"Engine game\"]\n")
	b.WriteString("[Site \"cairo-board\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", white))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", black))
	if strings.TrimSpace(rec.TimeControl) != "" {
		b.WriteString(fmt.Sprintf("[TimeControl \"%s\"]\n", sanitizePGN(rec.TimeControl)))
	}
	if strings.TrimSpace(method) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(method))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	if pgnResult != "" {
		b.WriteString(pgnResult)
	}
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
