package engine

// Countdown state machine: Idle (Countdown == nil) -> Running -> Idle.
// The timer that drives Tick lives with the session; this file only holds
// the state transitions.

func (r *Room) CountdownRunning() bool {
	return r.Countdown != nil
}

// StartCountdown is a no-op while a countdown is already running.
func (r *Room) StartCountdown() []Event {
	if r.CountdownRunning() {
		return nil
	}
	secs := r.Rules.CountdownSec
	if secs < 1 {
		secs = 1
	}
	r.Countdown = &secs
	return []Event{{Type: EvtCountdownStarted, Value: secs}}
}

// Tick advances a running countdown by one second. A tick against an idle
// room returns nothing.
func (r *Room) Tick() []Event {
	if !r.CountdownRunning() {
		return nil
	}
	left := *r.Countdown - 1
	if left < 0 {
		left = 0
	}
	if floor := r.Rules.FastForwardFloor; r.AllLocked() && left > floor {
		left = floor
	}

	events := []Event{{Type: EvtCountdownTicked, Value: left}}
	if left > 0 {
		r.Countdown = &left
		return events
	}

	r.Countdown = nil
	clear(r.Rolls)
	return append(events, Event{Type: EvtCountdownFinished})
}

func (r *Room) CancelCountdown() {
	r.Countdown = nil
}
