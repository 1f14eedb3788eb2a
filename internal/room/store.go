package room

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kumasanboshi/monster-buttle-sub001/internal/apperr"
)

var (
	ErrRoomNotFound  = apperr.New(apperr.RoomNotFound, "room not found")
	ErrAlreadyInRoom = apperr.New(apperr.AlreadyInRoom, "already in this room")
	ErrRoomFull      = apperr.New(apperr.RoomFull, "room is full")
	ErrWrongPassword = apperr.New(apperr.WrongPassword, "wrong password")
	ErrNotInRoom     = apperr.New(apperr.NotInRoom, "not a participant of this room")
)

// JoinRoom runs on the gateway reactor; keep the hash cheap.
const passwordCost = bcrypt.MinCost

type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	ttl      time.Duration
	now      func() time.Time
	onExpire func(roomID string)
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithExpireHook is called (outside the store lock) for every room removed by
// CleanupExpiredRooms.
func WithExpireHook(fn func(roomID string)) Option {
	return func(s *Store) { s.onExpire = fn }
}

func NewStore(ttl time.Duration, opts ...Option) *Store {
	s := &Store{
		rooms: make(map[string]*Room),
		ttl:   ttl,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetExpireHook installs the hook after construction; the gateway needs the
// store before it exists.
func (s *Store) SetExpireHook(fn func(roomID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

func (s *Store) CreateRoom(hostID, password string) Room {
	now := s.now()
	r := &Room{
		ID:     uuid.NewString(),
		Status: StatusWaiting,
		Host: Participant{
			ConnectionID: hostID,
			Slot:         SlotHost,
			Connected:    true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword(passwordKey(password), passwordCost)
		if err == nil {
			r.passwordHash = hash
		}
	}

	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()

	return r.clone()
}

func (s *Store) JoinRoom(roomID, guestID, password string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if r.Host.ConnectionID == guestID {
		return Room{}, ErrAlreadyInRoom
	}
	if r.Guest != nil || r.Status != StatusWaiting {
		return Room{}, ErrRoomFull
	}
	if r.HasPassword() {
		if password == "" || bcrypt.CompareHashAndPassword(r.passwordHash, passwordKey(password)) != nil {
			return Room{}, ErrWrongPassword
		}
	}

	r.Guest = &Participant{
		ConnectionID: guestID,
		Slot:         SlotGuest,
		Connected:    true,
	}
	r.Status = StatusPlaying
	r.UpdatedAt = s.now()
	return r.clone(), nil
}

// LeaveRoom is a no-op for unknown rooms or connections. The host leaving
// deletes the room; the guest leaving reopens it.
func (s *Store) LeaveRoom(roomID, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	switch {
	case r.Host.ConnectionID == connectionID:
		delete(s.rooms, roomID)
	case r.Guest != nil && r.Guest.ConnectionID == connectionID:
		r.Guest = nil
		r.Status = StatusWaiting
		r.UpdatedAt = s.now()
	}
}

func (s *Store) GetRoom(roomID string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return r.clone(), true
}

func (s *Store) GetRoomInfo(roomID string) (Info, bool) {
	r, ok := s.GetRoom(roomID)
	if !ok {
		return Info{}, false
	}
	return r.Info(), true
}

func (s *Store) FindRoomByConnectionID(connectionID string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rooms {
		if r.Host.ConnectionID == connectionID {
			return r.clone(), true
		}
		if r.Guest != nil && r.Guest.ConnectionID == connectionID {
			return r.clone(), true
		}
	}
	return Room{}, false
}

// SlotOf resolves the fixed slot of a connection inside a room.
func (s *Store) SlotOf(roomID, connectionID string) (Slot, error) {
	r, ok := s.GetRoom(roomID)
	if !ok {
		return 0, ErrRoomNotFound
	}
	p, ok := r.Participant(connectionID)
	if !ok {
		return 0, ErrNotInRoom
	}
	return p.Slot, nil
}

func (s *Store) SelectMonster(roomID, connectionID, monsterID string) error {
	return s.update(roomID, func(r *Room) error {
		switch {
		case r.Host.ConnectionID == connectionID:
			r.Host.SelectedMonsterID = monsterID
		case r.Guest != nil && r.Guest.ConnectionID == connectionID:
			r.Guest.SelectedMonsterID = monsterID
		default:
			return ErrNotInRoom
		}
		return nil
	})
}

// ClearSelection drops slot's monster pick. Unknown rooms are ignored.
func (s *Store) ClearSelection(roomID string, slot Slot) {
	_ = s.update(roomID, func(r *Room) error {
		switch {
		case slot == SlotHost:
			r.Host.SelectedMonsterID = ""
		case r.Guest != nil:
			r.Guest.SelectedMonsterID = ""
		}
		return nil
	})
}

func (s *Store) ClearSelections(roomID string) {
	_ = s.update(roomID, func(r *Room) error {
		r.Host.SelectedMonsterID = ""
		if r.Guest != nil {
			r.Guest.SelectedMonsterID = ""
		}
		return nil
	})
}

// Touch refreshes UpdatedAt so the TTL sweep leaves the room alone.
func (s *Store) Touch(roomID string) {
	_ = s.update(roomID, func(*Room) error { return nil })
}

func (s *Store) MarkPlaying(roomID string) error {
	return s.update(roomID, func(r *Room) error {
		if r.Guest == nil {
			return ErrNotInRoom
		}
		r.Status = StatusPlaying
		return nil
	})
}

func (s *Store) MarkFinished(roomID string) {
	_ = s.update(roomID, func(r *Room) error {
		r.Status = StatusFinished
		return nil
	})
}

// CleanupExpiredRooms deletes every room idle for longer than the TTL and
// returns how many were removed.
func (s *Store) CleanupExpiredRooms() int {
	s.mu.Lock()
	now := s.now()
	var expired []string
	for id, r := range s.rooms {
		if now.Sub(r.UpdatedAt) > s.ttl {
			delete(s.rooms, id)
			expired = append(expired, id)
		}
	}
	hook := s.onExpire
	s.mu.Unlock()

	if hook != nil {
		for _, id := range expired {
			hook(id)
		}
	}
	return len(expired)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *Store) update(roomID string, fn func(r *Room) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if err := fn(r); err != nil {
		return err
	}
	r.UpdatedAt = s.now()
	return nil
}

// passwordKey digests the password so bcrypt's 72-byte input limit never
// truncates it.
func passwordKey(p string) []byte {
	sum := sha256.Sum256([]byte(p))
	return []byte(hex.EncodeToString(sum[:]))
}
