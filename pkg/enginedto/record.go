package enginedto

import "time"

// GameRecord is the persisted view of one engine session's game.
type GameRecord struct {
	SessionID    string    `json:"session_id"`
	EngineName   string    `json:"engine_name"`
	Mode         string    `json:"mode"`
	MovesUCI     []string  `json:"moves_uci"`
	MovesSAN     []string  `json:"moves_san,omitempty"`
	Result       string    `json:"result,omitempty"`
	ResultMethod string    `json:"result_method,omitempty"`
	PGN          string    `json:"pgn,omitempty"`
	TimeControl  string    `json:"time_control,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AnalysisSnapshot is the latest search telemetry in display form.
type AnalysisSnapshot struct {
	Score       string   `json:"score,omitempty"`
	BestLine    []string `json:"best_line,omitempty"`
	NodesPerSec string   `json:"nps,omitempty"`
}
