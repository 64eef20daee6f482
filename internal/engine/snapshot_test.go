package engine

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSnapshot_CopiesRoomState(t *testing.T) {
	r := newRoomWith(t, "Ana", "Ben")
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "Daria"})
	mustApply(t, r, Command{Type: CmdRollDice, ConnID: "c-Ben", RollValue: 4})

	s := r.Snapshot()
	r.Characters["Daria"] = "Ben"
	r.Rolls["Ben"] = 1

	if got := s.Characters["Daria"]; got != "Ana" {
		t.Fatalf("snapshot shares the ledger: Daria held by %q", got)
	}
	if v := s.Players[1].RollValue; v == nil || *v != 4 {
		t.Fatalf("want Ben roll 4 in snapshot, got %v", v)
	}
	if s.Players[0].RollValue != nil {
		t.Fatalf("Ana has not rolled, got %v", *s.Players[0].RollValue)
	}
}

func TestSnapshot_JSONOmitsPresenterConnection(t *testing.T) {
	r := newRoomWith(t, "Ana")

	raw, err := json.Marshal(r.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	if strings.Contains(body, presenter) || strings.Contains(body, "hostId") {
		t.Fatalf("presenter connection leaked: %s", body)
	}
	if !strings.Contains(body, `"roomCode":"WXYZ"`) {
		t.Fatalf("room code missing: %s", body)
	}
}
