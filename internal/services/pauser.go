package services

import "sync/atomic"

// PauseSwitch is the runtime circuit breaker handed to both ledgers as their
// pause collaborator. Settlement of already-booked requests stays available
// while the switch is on.
type PauseSwitch struct {
	paused atomic.Bool
}

func NewPauseSwitch(paused bool) *PauseSwitch {
	s := &PauseSwitch{}
	s.paused.Store(paused)
	return s
}

func (s *PauseSwitch) IsPaused() bool {
	return s.paused.Load()
}

func (s *PauseSwitch) Pause() {
	s.paused.Store(true)
}

func (s *PauseSwitch) Resume() {
	s.paused.Store(false)
}
