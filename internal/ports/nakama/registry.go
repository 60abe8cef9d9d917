package nakama

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"fruitpass/internal/config"
	"fruitpass/internal/ports"
)

// roomCodeAlphabet is the set a room code is drawn from; codes stay short and
// human-typeable.
const roomCodeAlphabet = "1234567890abcdefghijklmnopqrstuvwxyz"

var (
	// ErrRoomNotFound means no live room advertises the requested code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNoFreeRoomCode means every generated code collided with a live room
	// within the configured attempt budget.
	ErrNoFreeRoomCode = errors.New("could not draw an unused room code")
)

// RoomRegistry creates rooms and resolves room codes against the live match
// index. The code is carried in each match's label, so lookup is a label
// query and disposal is implicit in match termination.
type RoomRegistry struct {
	matches ports.MatchRegistry
	rng     *rand.Rand
	cfg     *config.GameConfig
}

// NewRoomRegistry constructs a registry with the provided rng or a
// time-seeded default.
func NewRoomRegistry(matches ports.MatchRegistry, rng *rand.Rand, cfg *config.GameConfig) *RoomRegistry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg == nil {
		cfg = config.GetGameConfig()
	}
	return &RoomRegistry{matches: matches, rng: rng, cfg: cfg}
}

// CreateRoom draws a collision-checked room code, spins up the backing match
// and returns its id together with the code. The host's nickname is handed to
// the match so the creator keeps their name even when join metadata is lost.
func (r *RoomRegistry) CreateRoom(ctx context.Context, hostNickname string) (string, string, error) {
	for attempt := 0; attempt < r.cfg.RoomCodeAttempts; attempt++ {
		code := r.generateCode()

		_, err := r.FindRoom(ctx, code)
		if err == nil {
			continue // live room already uses this code
		}
		if !errors.Is(err, ErrRoomNotFound) {
			return "", "", err
		}

		matchID, err := r.matches.Create(ctx, MatchNameFruitpass, map[string]interface{}{
			"code":          code,
			"host_nickname": hostNickname,
		})
		if err != nil {
			return "", "", err
		}
		return matchID, code, nil
	}
	return "", "", ErrNoFreeRoomCode
}

// FindRoom resolves a room code to the id of the live match advertising it.
func (r *RoomRegistry) FindRoom(ctx context.Context, code string) (string, error) {
	query := fmt.Sprintf("+label.game:fruitpass +label.code:%s", code)
	matches, err := r.matches.List(ctx, 1, query)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrRoomNotFound
	}
	return matches[0].MatchId, nil
}

func (r *RoomRegistry) generateCode() string {
	code := make([]byte, r.cfg.RoomCodeLength)
	for i := range code {
		code[i] = roomCodeAlphabet[r.rng.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}
