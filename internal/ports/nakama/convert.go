package nakama

import (
	"fruitpass/internal/app"
	"fruitpass/internal/domain"
)

// roomState is the room snapshot wire shape. Field names follow what the
// client renders from.
type roomState struct {
	RoomID   string        `json:"roomId"`
	HostID   string        `json:"hostId"`
	Players  []playerState `json:"players"`
	Timer    int           `json:"timer"`
	Cards    int           `json:"cards"`
	Deck     []domain.Card `json:"deck"`
	Status   string        `json:"status"`
	Turn     string        `json:"turn"`
	NumTurns int           `json:"numTurns"`
}

type playerState struct {
	ID       string        `json:"id"`
	Nickname string        `json:"nickname"`
	Cards    []domain.Card `json:"cards"`
}

type playerLeftEvent struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type gameWinnerEvent struct {
	WinnerID        string `json:"winnerId"`
	WinnerNickname  string `json:"winnerNickname"`
	WinningCardType string `json:"winningCardType"`
	NumTurns        int    `json:"numTurns"`
}

type errorEvent struct {
	Message string `json:"message"`
}

// toRoomState maps a domain room to its snapshot wire shape.
func toRoomState(r *domain.Room) *roomState {
	players := make([]playerState, len(r.Players))
	for i, pl := range r.Players {
		cards := pl.Hand
		if cards == nil {
			cards = []domain.Card{}
		}
		players[i] = playerState{
			ID:       pl.UserID,
			Nickname: pl.Nickname,
			Cards:    cards,
		}
	}

	deck := r.Deck
	if deck == nil {
		deck = []domain.Card{}
	}

	return &roomState{
		RoomID:   r.Code,
		HostID:   r.HostID,
		Players:  players,
		Timer:    r.Timer,
		Cards:    r.HandSize,
		Deck:     deck,
		Status:   string(r.Phase),
		Turn:     r.TurnID,
		NumTurns: r.NumTurns,
	}
}

// toPlayerLeftEvent maps the app payload to its wire shape.
func toPlayerLeftEvent(p app.PlayerLeftPayload) playerLeftEvent {
	return playerLeftEvent{PlayerID: p.UserID, PlayerName: p.Nickname}
}

// toGameWinnerEvent maps the app payload to its wire shape.
func toGameWinnerEvent(p app.GameWinnerPayload) gameWinnerEvent {
	return gameWinnerEvent{
		WinnerID:        p.WinnerID,
		WinnerNickname:  p.WinnerNickname,
		WinningCardType: p.WinningType,
		NumTurns:        p.NumTurns,
	}
}
