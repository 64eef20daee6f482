package engine

import (
	"cmp"
	"slices"
)

func (r *Room) SubmitRoll(playerName string, value int) ([]Event, error) {
	if r.PlayerByName(playerName) == nil {
		return nil, ErrPlayerNotFound
	}
	r.Rolls[playerName] = value

	events := []Event{{Type: EvtDiceRolled, PlayerName: playerName, Value: value}}
	return append(events, r.resolveIfComplete()...), nil
}

func (r *Room) RoundComplete() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if _, ok := r.Rolls[p.Name]; !ok {
			return false
		}
	}
	return true
}

// TurnOrder ranks players by roll, highest first. Equal rolls keep join order.
func (r *Room) TurnOrder() []string {
	ranked := slices.Clone(r.Players)
	slices.SortStableFunc(ranked, func(a, b *Player) int {
		return cmp.Compare(r.Rolls[b.Name], r.Rolls[a.Name])
	})
	order := make([]string, len(ranked))
	for i, p := range ranked {
		order[i] = p.Name
	}
	return order
}

// Ties lists each adjacent pair in order that rolled the same value.
func (r *Room) Ties(order []string) [][]string {
	var ties [][]string
	for i := 0; i+1 < len(order); i++ {
		if r.Rolls[order[i]] == r.Rolls[order[i+1]] {
			ties = append(ties, []string{order[i], order[i+1]})
		}
	}
	return ties
}

func (r *Room) resolveIfComplete() []Event {
	if !r.RoundComplete() {
		return nil
	}
	order := r.TurnOrder()
	ties := r.Ties(order)
	clear(r.Rolls)

	if r.Rules.TiePolicy == TieReroll && len(ties) > 0 {
		return []Event{{Type: EvtTieDetected, Ties: ties}}
	}
	return []Event{{Type: EvtOrderFinalized, Order: order}}
}
