package app

import (
	"errors"
	"math/rand"
	"time"

	"fruitpass/internal/domain"
)

// Service contains the room use-cases. It is the only code that mutates a
// Room; every operation is a single synchronous step that returns the events
// to dispatch afterwards.
type Service struct {
	rng *rand.Rand
}

// NewService constructs a Service with the provided rng or a time-seeded default.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng}
}

var (
	ErrNotHost       = errors.New("actor is not the room host")
	ErrNotYourTurn   = errors.New("actor does not hold the turn")
	ErrWrongPhase    = errors.New("operation not valid in current phase")
	ErrUnknownPlayer = errors.New("player not found in room")
	ErrCardNotHeld   = errors.New("card not present in actor's hand")
	ErrBadSettings   = errors.New("timer and hand size must be positive")
)

// Join appends a new player to the room. The first player to join becomes
// host. A user id already present is treated as a rejoin and only has its
// snapshot re-delivered. The joining connection receives the full snapshot;
// everyone else receives a room update.
func (s *Service) Join(room *domain.Room, userID, nickname string) []Event {
	if room.FindPlayer(userID) != nil {
		return []Event{{
			Kind:       EventJoinedRoom,
			Payload:    RoomPayload{Room: room},
			Recipients: []string{userID},
		}}
	}

	room.Players = append(room.Players, &domain.Player{
		UserID:   userID,
		Nickname: nickname,
	})
	if room.HostID == "" {
		room.HostID = userID
	}

	return []Event{
		{
			Kind:       EventJoinedRoom,
			Payload:    RoomPayload{Room: room},
			Recipients: []string{userID},
		},
		{
			Kind:    EventRoomUpdated,
			Payload: RoomPayload{Room: room},
		},
	}
}

// Leave removes a player from the room. When the last player leaves the room
// must be destroyed by the caller; no events are emitted in that case. If the
// host leaves, the oldest remaining member inherits the host role. If the
// departing player held the turn mid-game, the turn advances so it always
// points at a present player.
func (s *Service) Leave(room *domain.Room, userID string) []Event {
	idx := room.PlayerIndex(userID)
	if idx < 0 {
		return nil
	}

	departed := room.Players[idx]
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

	if len(room.Players) == 0 {
		return nil
	}

	if room.HostID == userID {
		room.HostID = room.Players[0].UserID
	}
	if room.Phase == domain.PhasePlaying && room.TurnID == userID {
		// idx now points at the player after the departed one.
		room.TurnID = room.Players[idx%len(room.Players)].UserID
	}

	return []Event{
		{
			Kind:    EventRoomUpdated,
			Payload: RoomPayload{Room: room},
		},
		{
			Kind:    EventPlayerLeft,
			Payload: PlayerLeftPayload{UserID: departed.UserID, Nickname: departed.Nickname},
		},
	}
}

// UpdateSettings overwrites the per-turn timer and hand size. Host only.
func (s *Service) UpdateSettings(room *domain.Room, requesterID string, timer, handSize int) ([]Event, error) {
	if requesterID != room.HostID {
		return nil, ErrNotHost
	}
	if timer <= 0 || handSize <= 0 {
		return nil, ErrBadSettings
	}

	room.Timer = timer
	room.HandSize = handSize

	return []Event{{
		Kind:    EventRoomUpdated,
		Payload: RoomPayload{Room: room},
	}}, nil
}

// StartGame deals a fresh shuffled deck and transitions the room to playing.
// The first player in join order receives handSize+1 cards, everyone else
// handSize, so the total dealt is always odd and the starting imbalance is
// well defined. Host only, and only from the menu phase.
func (s *Service) StartGame(room *domain.Room, requesterID string, timer, handSize int) ([]Event, error) {
	if requesterID != room.HostID {
		return nil, ErrNotHost
	}
	if room.Phase != domain.PhaseMenu {
		return nil, ErrWrongPhase
	}
	if timer <= 0 || handSize <= 0 {
		return nil, ErrBadSettings
	}

	room.Timer = timer
	room.HandSize = handSize

	deck := domain.BuildDeck(domain.FruitTypes, len(room.Players), handSize)
	deck = domain.ShuffleDeck(s.rng, deck)

	dealt := 0
	for i, pl := range room.Players {
		n := handSize
		if i == 0 {
			n = handSize + 1
		}
		pl.Hand = append([]domain.Card{}, deck[dealt:dealt+n]...)
		dealt += n
	}
	room.Deck = append([]domain.Card{}, deck[dealt:]...)

	room.Phase = domain.PhasePlaying
	room.TurnID = room.Players[0].UserID
	room.NumTurns = 0

	return []Event{{
		Kind:    EventGameStarted,
		Payload: RoomPayload{Room: room},
	}}, nil
}

// PassCard processes one card pass by the turn holder. A player whose hand is
// already uniform wins on their own turn before any card moves; otherwise the
// named card moves to the next player in join order, who may become an
// instant winner in turn.
func (s *Service) PassCard(room *domain.Room, requesterID, cardID string) ([]Event, error) {
	if room.Phase != domain.PhasePlaying {
		return nil, ErrWrongPhase
	}
	if requesterID != room.TurnID {
		return nil, ErrNotYourTurn
	}

	idx := room.PlayerIndex(requesterID)
	if idx < 0 {
		return nil, ErrUnknownPlayer
	}
	actor := room.Players[idx]

	// The win check precedes card movement: a full-match hand wins on the
	// holder's own turn without passing.
	if winType, ok := domain.UniformType(actor.Hand); ok {
		return s.declareWinner(room, actor, winType), nil
	}

	hand, card, ok := domain.RemoveCardByID(actor.Hand, cardID)
	if !ok {
		return nil, ErrCardNotHeld
	}
	actor.Hand = hand

	next := room.Players[room.NextIndex(idx)]
	next.Hand = append(next.Hand, card)
	room.NumTurns++

	// Receiving a card can complete the receiver's hand, so every hand is
	// re-scanned after the move.
	for _, pl := range room.Players {
		if winType, ok := domain.UniformType(pl.Hand); ok {
			return s.declareWinner(room, pl, winType), nil
		}
	}

	room.TurnID = next.UserID

	return []Event{{
		Kind:    EventRoomUpdated,
		Payload: RoomPayload{Room: room},
	}}, nil
}

func (s *Service) declareWinner(room *domain.Room, winner *domain.Player, winType string) []Event {
	room.Phase = domain.PhaseComplete

	return []Event{{
		Kind: EventGameWinner,
		Payload: GameWinnerPayload{
			WinnerID:       winner.UserID,
			WinnerNickname: winner.Nickname,
			WinningType:    winType,
			NumTurns:       room.NumTurns,
		},
	}}
}

// GoToMenu resets the room back to the menu phase: hands and deck cleared,
// turn handed back to the host, turn counter zeroed. Host only. Calling it
// from the menu phase is a harmless no-op reset.
func (s *Service) GoToMenu(room *domain.Room, requesterID string) ([]Event, error) {
	if requesterID != room.HostID {
		return nil, ErrNotHost
	}

	for _, pl := range room.Players {
		pl.Hand = nil
	}
	room.Deck = nil
	room.Phase = domain.PhaseMenu
	room.TurnID = room.HostID
	room.NumTurns = 0

	return []Event{{
		Kind:    EventRoomUpdated,
		Payload: RoomPayload{Room: room},
	}}, nil
}
