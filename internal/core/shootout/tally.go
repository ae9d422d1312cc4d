package shootout

// Board points per goal, by side.
const (
	KickLeftPoints  = 2
	KickRightPoints = 3
)

// TallyRow is one player's accumulated kicks.
type TallyRow struct {
	Player        string `json:"player"`
	Kicks         int    `json:"kicks"`
	KickLeft      int    `json:"kick_left"`
	KickRight     int    `json:"kick_right"`
	KickLeftMade  int    `json:"kick_left_made"`
	KickRightMade int    `json:"kick_right_made"`
	Goals         int    `json:"goals"`
}

func (r TallyRow) KickLeftMissed() int  { return r.KickLeft - r.KickLeftMade }
func (r TallyRow) KickRightMissed() int { return r.KickRight - r.KickRightMade }

// LeftScore and RightScore are the board values of each side's goals.
func (r TallyRow) LeftScore() int  { return r.KickLeftMade * KickLeftPoints }
func (r TallyRow) RightScore() int { return r.KickRightMade * KickRightPoints }
func (r TallyRow) Score() int      { return r.LeftScore() + r.RightScore() }

// Tally accumulates per-kick Stats by player, keeping first-seen order.
type Tally struct {
	rows  map[string]*TallyRow
	order []string
}

func NewTally() *Tally {
	return &Tally{rows: make(map[string]*TallyRow)}
}

func (t *Tally) Add(player string, st Stats) {
	row, ok := t.rows[player]
	if !ok {
		row = &TallyRow{Player: player}
		t.rows[player] = row
		t.order = append(t.order, player)
	}
	row.Kicks += st.KickLeft + st.KickRight
	row.KickLeft += st.KickLeft
	row.KickRight += st.KickRight
	row.KickLeftMade += st.KickLeftMade
	row.KickRightMade += st.KickRightMade
	row.Goals += st.TotalPoints
}

// Row returns a copy of the player's row.
func (t *Tally) Row(player string) (TallyRow, bool) {
	row, ok := t.rows[player]
	if !ok {
		return TallyRow{}, false
	}
	return *row, true
}

func (t *Tally) Rows() []TallyRow {
	out := make([]TallyRow, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, *t.rows[p])
	}
	return out
}

func (t *Tally) Len() int { return len(t.order) }
