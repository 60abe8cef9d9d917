package app

import "fruitpass/internal/domain"

// EventKind identifies emitted room events for Nakama dispatch.
type EventKind string

const (
	EventJoinedRoom  EventKind = "joined_room"
	EventRoomUpdated EventKind = "room_updated"
	EventPlayerLeft  EventKind = "player_left"
	EventGameStarted EventKind = "game_started"
	EventGameWinner  EventKind = "game_winner"
	// EventInRoom re-delivers a member's snapshot to that connection alone,
	// so a client can reattach its view without re-joining.
	EventInRoom EventKind = "in_room"
)

// Event is a room event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast to the room
}

// RoomPayload carries a full room snapshot.
type RoomPayload struct {
	Room *domain.Room
}

// PlayerLeftPayload announces a departed player to the rest of the room.
type PlayerLeftPayload struct {
	UserID   string
	Nickname string
}

// GameWinnerPayload announces the end of a game.
type GameWinnerPayload struct {
	WinnerID       string
	WinnerNickname string
	WinningType    string
	NumTurns       int
}
