package engine

// Snapshot is a deep copy of a Room that is safe to hand to other goroutines.
type Snapshot struct {
	Code        string            `json:"roomCode"`
	PresenterID string            `json:"-"`
	Players     []PlayerView      `json:"players"`
	Characters  map[string]string `json:"characters"`
	Countdown   *int              `json:"countdown"`
	TiePolicy   TiePolicy         `json:"tiePolicy"`
}

type PlayerView struct {
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
	Locked    bool   `json:"locked"`
	RollValue *int   `json:"rollValue,omitempty"`
}

func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		Code:        r.Code,
		PresenterID: r.PresenterID,
		Players:     make([]PlayerView, 0, len(r.Players)),
		Characters:  r.CharacterMap(),
		TiePolicy:   r.Rules.TiePolicy,
	}
	if r.Countdown != nil {
		left := *r.Countdown
		s.Countdown = &left
	}
	for _, p := range r.Players {
		v := PlayerView{Name: p.Name, Character: p.Character, Locked: p.Locked}
		if roll, ok := r.Rolls[p.Name]; ok {
			v.RollValue = &roll
		}
		s.Players = append(s.Players, v)
	}
	return s
}

func (r *Room) Leaderboard() []Standing {
	out := make([]Standing, len(r.Standings))
	copy(out, r.Standings)
	return out
}
