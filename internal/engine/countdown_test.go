package engine

import (
	"testing"
)

func lockAll(t *testing.T, r *Room) {
	t.Helper()
	for i, p := range r.Players {
		character := string(rune('A' + i))
		mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: p.ConnID, Character: character})
		mustApply(t, r, Command{Type: CmdLockCharacter, ConnID: p.ConnID})
	}
}

func TestStartCountdown_Idempotent(t *testing.T) {
	r := newRoomWith(t, "Ana")

	first := mustApply(t, r, Command{Type: CmdStartCountdown, ConnID: presenter})
	ev, ok := FindEvent(first, EvtCountdownStarted)
	if !ok || ev.Value != 60 {
		t.Fatalf("want EvtCountdownStarted(60), got %+v", first)
	}
	mustApply(t, r, Command{Type: CmdTick})

	second := mustApply(t, r, Command{Type: CmdStartCountdown, ConnID: presenter})
	if len(second) != 0 {
		t.Fatalf("second start must be a no-op, got %+v", second)
	}
	if *r.Countdown != 59 {
		t.Fatalf("second start reset the countdown to %d", *r.Countdown)
	}
}

func TestTick_MonotonicAndFinishesOnce(t *testing.T) {
	r := newRoomWith(t, "Ana", "Ben")
	r.Rules.CountdownSec = 5
	r.Rolls["Ana"] = 3 // leftover from an earlier round
	r.StartCountdown()

	var seen []int
	finished := 0
	for i := 0; i < 10; i++ {
		for _, ev := range r.Tick() {
			switch ev.Type {
			case EvtCountdownTicked:
				seen = append(seen, ev.Value)
			case EvtCountdownFinished:
				finished++
			}
		}
	}

	want := []int{4, 3, 2, 1, 0}
	if len(seen) != len(want) {
		t.Fatalf("want ticks %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("want ticks %v, got %v", want, seen)
		}
	}
	if finished != 1 {
		t.Fatalf("countdown finished %d times", finished)
	}
	if r.CountdownRunning() {
		t.Fatalf("countdown should be idle after reaching zero")
	}
	if len(r.Rolls) != 0 {
		t.Fatalf("rolls should be cleared when the roll round starts, got %v", r.Rolls)
	}
}

func TestTick_FastForwardWhenAllLocked(t *testing.T) {
	cases := []struct {
		name    string
		start   int
		lockAll bool
		want    int
	}{
		{name: "all locked clamps to floor", start: 45, lockAll: true, want: 10},
		{name: "all locked below floor just decrements", start: 8, lockAll: true, want: 7},
		{name: "all locked at floor plus one", start: 11, lockAll: true, want: 10},
		{name: "not all locked", start: 45, lockAll: false, want: 44},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRoomWith(t, "Ana", "Ben")
			r.Rules.CountdownSec = tc.start
			r.StartCountdown()
			if tc.lockAll {
				lockAll(t, r)
			} else {
				mustApply(t, r, Command{Type: CmdChooseCharacter, ConnID: "c-Ana", Character: "X"})
				mustApply(t, r, Command{Type: CmdLockCharacter, ConnID: "c-Ana"})
			}

			ev, ok := FindEvent(r.Tick(), EvtCountdownTicked)
			if !ok || ev.Value != tc.want {
				t.Fatalf("want tick value %d, got %+v", tc.want, ev)
			}
		})
	}
}

func TestTick_EmptyRoomDoesNotFastForward(t *testing.T) {
	r := newRoomWith(t)
	r.StartCountdown()
	ev, _ := FindEvent(r.Tick(), EvtCountdownTicked)
	if ev.Value != 59 {
		t.Fatalf("want 59, got %d", ev.Value)
	}
}

func TestTick_IdleIsNoop(t *testing.T) {
	r := newRoomWith(t, "Ana")
	if events := r.Tick(); len(events) != 0 {
		t.Fatalf("tick on idle room returned %+v", events)
	}

	r.StartCountdown()
	r.CancelCountdown()
	if events := r.Tick(); len(events) != 0 {
		t.Fatalf("tick after cancel returned %+v", events)
	}
	r.CancelCountdown()
}
