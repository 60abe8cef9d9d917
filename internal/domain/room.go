package domain

// Phase represents the lifecycle stage of a room.
type Phase string

const (
	// PhaseMenu is the pre-game state where players gather and settings change.
	PhaseMenu Phase = "menu"
	// PhasePlaying is the active game state where cards are passed around.
	PhasePlaying Phase = "playing"
	// PhaseComplete is the state after a winner has been announced.
	PhaseComplete Phase = "complete"
)

// Default room settings applied until the host changes them.
const (
	DefaultTimerSeconds = 5
	DefaultHandSize     = 4
)

// Card is a single fruit card. The id is a unique token so clients can
// reference a card for removal without relying on hand position.
type Card struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Player holds the state for a participant in a room.
type Player struct {
	UserID   string
	Nickname string
	Hand     []Card
}

// Room holds the authoritative state for a single room instance.
// Players is ordered by join time; that order defines turn rotation.
type Room struct {
	Code     string
	HostID   string
	Players  []*Player
	Timer    int
	HandSize int
	Deck     []Card
	Phase    Phase
	TurnID   string
	NumTurns int
}

// NewRoom returns an empty room in the menu phase with default settings.
// The first player to join becomes host.
func NewRoom(code string) *Room {
	return &Room{
		Code:     code,
		Phase:    PhaseMenu,
		Timer:    DefaultTimerSeconds,
		HandSize: DefaultHandSize,
	}
}

// PlayerIndex returns the join-order index of the player with the given
// user id, or -1 when the id is not in the room.
func (r *Room) PlayerIndex(userID string) int {
	for i, pl := range r.Players {
		if pl.UserID == userID {
			return i
		}
	}
	return -1
}

// FindPlayer returns the player with the given user id, or nil.
func (r *Room) FindPlayer(userID string) *Player {
	if i := r.PlayerIndex(userID); i >= 0 {
		return r.Players[i]
	}
	return nil
}

// NextIndex returns the index after i in turn rotation, wrapping around.
func (r *Room) NextIndex(i int) int {
	return (i + 1) % len(r.Players)
}
