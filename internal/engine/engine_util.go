package engine

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

func NewRoom(code, presenterID string, rules Rules) *Room {
	if !rules.TiePolicy.Valid() {
		rules.TiePolicy = TieStable
	}
	return &Room{
		Code:        code,
		PresenterID: presenterID,
		Players:     []*Player{},
		Characters:  map[string]string{},
		Rolls:       map[string]int{},
		Rules:       rules,
	}
}

func DefaultRules() Rules {
	return Rules{CountdownSec: 60, FastForwardFloor: 10, TiePolicy: TieStable}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func FindEvent(events []Event, eventType EventType) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}

func (r *Room) PlayerByConn(connID string) *Player {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) PlayerByName(name string) *Player {
	for _, p := range r.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Names compare case-insensitively, so "ana" cannot join next to "Ana".
func (r *Room) nameTaken(name string) bool {
	folded := cases.Fold().String(name)
	for _, p := range r.Players {
		if cases.Fold().String(p.Name) == folded {
			return true
		}
	}
	return false
}

// NormalizeCode makes room codes compare case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func cleanName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLen {
		return "", false
	}
	return name, true
}
