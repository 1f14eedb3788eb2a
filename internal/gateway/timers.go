package gateway

import "time"

// timerSet holds at most one turn timer per room. It is owned by the reactor;
// the timer callbacks only report (roomID, token) back through fire.
type timerSet struct {
	next  uint64
	armed map[string]armedTimer
	fire  func(roomID string, token uint64)
}

type armedTimer struct {
	t     *time.Timer
	token uint64
}

func newTimerSet(fire func(roomID string, token uint64)) *timerSet {
	return &timerSet{armed: make(map[string]armedTimer), fire: fire}
}

// Arm cancels any live timer for roomID and starts a new one.
func (s *timerSet) Arm(roomID string, d time.Duration) uint64 {
	s.Cancel(roomID)

	s.next++
	token := s.next
	t := time.AfterFunc(d, func() { s.fire(roomID, token) })
	s.armed[roomID] = armedTimer{t: t, token: token}
	return token
}

func (s *timerSet) Cancel(roomID string) bool {
	at, ok := s.armed[roomID]
	if !ok {
		return false
	}
	at.t.Stop()
	delete(s.armed, roomID)
	return true
}

// Claim accepts a firing only if token is still the armed one for roomID.
// A claimed timer is no longer armed.
func (s *timerSet) Claim(roomID string, token uint64) bool {
	at, ok := s.armed[roomID]
	if !ok || at.token != token {
		return false
	}
	delete(s.armed, roomID)
	return true
}

func (s *timerSet) Armed(roomID string) bool {
	_, ok := s.armed[roomID]
	return ok
}

func (s *timerSet) StopAll() {
	for id := range s.armed {
		s.Cancel(id)
	}
}
