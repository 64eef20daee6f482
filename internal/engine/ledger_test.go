package engine

import (
	"errors"
	"maps"
	"testing"
)

func TestClaim(t *testing.T) {
	cases := []struct {
		name      string
		held      map[string]string
		character string
		player    string
		wantErr   error
		wantMap   map[string]string
	}{
		{
			name:      "free character",
			held:      map[string]string{},
			character: "Daria",
			player:    "Ana",
			wantMap:   map[string]string{"Daria": "Ana"},
		},
		{
			name:      "same holder is idempotent",
			held:      map[string]string{"Daria": "Ana"},
			character: "Daria",
			player:    "Ana",
			wantMap:   map[string]string{"Daria": "Ana"},
		},
		{
			name:      "held by someone else",
			held:      map[string]string{"Daria": "Ben"},
			character: "Daria",
			player:    "Ana",
			wantErr:   ErrCharacterTaken,
			wantMap:   map[string]string{"Daria": "Ben"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRoomWith(t, "Ana", "Ben")
			maps.Copy(r.Characters, tc.held)

			err := r.claim(tc.character, tc.player)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want err %v, got %v", tc.wantErr, err)
			}
			if !maps.Equal(r.Characters, tc.wantMap) {
				t.Fatalf("ledger: want %v, got %v", tc.wantMap, r.Characters)
			}
		})
	}
}

func TestChooseCharacter_SwitchReleasesPrevious(t *testing.T) {
	r := newRoomWith(t, "Ana")
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", PlayerName: "Ana", Character: "Daria"})
	events := mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", PlayerName: "Ana", Character: "Tony", Previous: "Daria"})

	if !ContainsEvent(events, EvtCharactersChanged) {
		t.Fatalf("expected EvtCharactersChanged")
	}
	want := map[string]string{"Tony": "Ana"}
	if !maps.Equal(r.Characters, want) {
		t.Fatalf("want %v, got %v", want, r.Characters)
	}
	if r.Players[0].Character != "Tony" {
		t.Fatalf("player character not updated: %q", r.Players[0].Character)
	}
}

func TestChooseCharacter_TakenLeavesLedgerUntouched(t *testing.T) {
	r := newRoomWith(t, "Ana", "Ben")
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "Daria"})
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ben", Character: "Tony"})

	events, err := Apply(r, Command{Type: CmdChooseCharacter, ConnID: "c-Ben", Character: "Daria", Previous: "Tony"})
	if !errors.Is(err, ErrCharacterTaken) {
		t.Fatalf("want ErrCharacterTaken, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("failed claim must not emit events, got %+v", events)
	}
	want := map[string]string{"Daria": "Ana", "Tony": "Ben"}
	if !maps.Equal(r.Characters, want) {
		t.Fatalf("want %v, got %v", want, r.Characters)
	}
}

func TestChooseCharacter_PreviousHeldByOtherIsKept(t *testing.T) {
	r := newRoomWith(t, "Ana", "Ben")
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "Daria"})
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ben", Character: "Tony", Previous: "Daria"})

	if r.Characters["Daria"] != "Ana" {
		t.Fatalf("Daria should still belong to Ana: %v", r.Characters)
	}
}

func TestChooseCharacter_LockedPlayerCannotSwitch(t *testing.T) {
	r := newRoomWith(t, "Ana")
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "Daria"})
	mustApply(t, r, Command{Type: CmdLockCharacter, ConnID: "c-Ana"})

	if _, err := Apply(r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "Tony"}); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("want ErrAlreadyLocked, got %v", err)
	}
}

func TestReleaseCharacter(t *testing.T) {
	r := newRoomWith(t, "Ana", "Ben")
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "Daria"})
	mustApply(t, r, Command{Type: CmdLockCharacter, ConnID: "c-Ana"})

	events := mustApply(t, r, Command{Type: CmdReleaseCharacter, ConnID: "c-Ben", Character: "Daria"})
	if !ContainsEvent(events, EvtCharactersChanged) {
		t.Fatalf("expected EvtCharactersChanged")
	}
	if len(r.Characters) != 0 {
		t.Fatalf("want empty ledger, got %v", r.Characters)
	}
	if p := r.Players[0]; p.Character != "" || p.Locked {
		t.Fatalf("holder should lose character and lock, got %+v", p)
	}

	if _, err := Apply(r, Command{Type: CmdReleaseCharacter, ConnID: "stranger", Character: "Tony"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for non-member, got %v", err)
	}
}

func TestLockCharacter(t *testing.T) {
	r := newRoomWith(t, "Ana", "Ben")

	if _, err := Apply(r, Command{Type: CmdLockCharacter, ConnID: "c-Ana"}); !errors.Is(err, ErrNoCharacter) {
		t.Fatalf("locking without a character: want ErrNoCharacter, got %v", err)
	}

	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "Daria"})
	mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ben", Character: "Tony"})

	first := mustApply(t, r, Command{Type: CmdLockCharacter, ConnID: "c-Ana"})
	if ContainsEvent(first, EvtAllPlayersReady) {
		t.Fatalf("not everyone is locked yet")
	}
	last := mustApply(t, r, Command{Type: CmdLockCharacter, ConnID: "c-Ben"})
	if !ContainsEvent(last, EvtAllPlayersReady) {
		t.Fatalf("expected EvtAllPlayersReady, got %+v", last)
	}
	again := mustApply(t, r, Command{Type: CmdLockCharacter, ConnID: "c-Ben"})
	if len(again) != 0 {
		t.Fatalf("relocking should be a no-op, got %+v", again)
	}
}
