package events

// StrategyView mirrors the keeper's mixed strategy at event time.
type StrategyView struct {
	PDiveLeft    float64 `json:"p_dive_left"`
	PDiveRight   float64 `json:"p_dive_right"`
	ObservedLeft float64 `json:"observed_left"`
	HistoryLen   int     `json:"history_len"`
}

// SessionEvent is published when a session opens or closes.
// Totals are only set on session_end.
type SessionEvent struct {
	SessionID string       `json:"session_id"`
	Player    string       `json:"player"`
	PlayerKey string       `json:"player_key"`
	Profile   string       `json:"profile"`
	Strategy  StrategyView `json:"strategy"`
	Totals    *Totals      `json:"totals,omitempty"`
}

// Totals is a player's accumulated scoreboard for a session.
type Totals struct {
	Kicks         int `json:"kicks"`
	KickLeft      int `json:"kick_left"`
	KickRight     int `json:"kick_right"`
	KickLeftMade  int `json:"kick_left_made"`
	KickRightMade int `json:"kick_right_made"`
	Goals         int `json:"goals"`
	Score         int `json:"score"`
}

// KickEvent is published after every resolved kick.
type KickEvent struct {
	SessionID  string       `json:"session_id"`
	Player     string       `json:"player"`
	PlayerKey  string       `json:"player_key"`
	KickNumber int          `json:"kick_number"`
	Kick       string       `json:"kick"`   // "left" or "right"
	Keeper     string       `json:"keeper"` // keeper dive
	ScoreProb  float64      `json:"score_prob"`
	Result     string       `json:"result"`  // "Score" or "Saved"
	Outcome    string       `json:"outcome"` // "goal" or "saved"
	Strategy   StrategyView `json:"strategy"`
	Ribbon     string       `json:"ribbon"`

	KickLeft      int `json:"kick_left"`
	KickRight     int `json:"kick_right"`
	KickLeftMade  int `json:"kick_left_made"`
	KickRightMade int `json:"kick_right_made"`
	TotalPoints   int `json:"total_points"`
}
