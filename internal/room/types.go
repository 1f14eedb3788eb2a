package room

import "time"

type Status string

const (
	StatusWaiting  Status = "WAITING"
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// Slot is the fixed seat of a participant: the host is 1, the guest is 2.
type Slot int

const (
	SlotHost  Slot = 1
	SlotGuest Slot = 2
)

type Participant struct {
	ConnectionID      string `json:"connectionId"`
	Slot              Slot   `json:"slot"`
	SelectedMonsterID string `json:"selectedMonsterId,omitempty"`
	Connected         bool   `json:"connected"`
}

// Room is a value copy of the store's record; mutating it has no effect on
// the store.
type Room struct {
	ID        string
	Status    Status
	Host      Participant
	Guest     *Participant
	CreatedAt time.Time
	UpdatedAt time.Time

	passwordHash []byte
}

// Info is the public view of a room sent to clients.
type Info struct {
	RoomID      string       `json:"roomId"`
	Status      Status       `json:"status"`
	HasPassword bool         `json:"hasPassword"`
	Host        Participant  `json:"host"`
	Guest       *Participant `json:"guest"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (r Room) HasPassword() bool {
	return len(r.passwordHash) > 0
}

func (r Room) Info() Info {
	info := Info{
		RoomID:      r.ID,
		Status:      r.Status,
		HasPassword: r.HasPassword(),
		Host:        r.Host,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Guest != nil {
		g := *r.Guest
		info.Guest = &g
	}
	return info
}

// Participant looks up a connection among host and guest.
func (r Room) Participant(connectionID string) (Participant, bool) {
	if r.Host.ConnectionID == connectionID {
		return r.Host, true
	}
	if r.Guest != nil && r.Guest.ConnectionID == connectionID {
		return *r.Guest, true
	}
	return Participant{}, false
}

// ConnectionIDs returns the connection ids of everyone in the room, host first.
func (r Room) ConnectionIDs() []string {
	ids := []string{r.Host.ConnectionID}
	if r.Guest != nil {
		ids = append(ids, r.Guest.ConnectionID)
	}
	return ids
}

func (r *Room) clone() Room {
	c := *r
	if r.Guest != nil {
		g := *r.Guest
		c.Guest = &g
	}
	return c
}
