package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// GameConfig carries operator-tunable room settings.
type GameConfig struct {
	DefaultTimerSeconds int `json:"default_timer_seconds"`
	DefaultHandSize     int `json:"default_hand_size"`
	MaxPlayersPerRoom   int `json:"max_players_per_room"`
	RoomCodeLength      int `json:"room_code_length"`
	// RoomCodeAttempts bounds the regenerate-on-collision loop when drawing a
	// fresh room code against the live room index.
	RoomCodeAttempts int `json:"room_code_attempts"`
	// TurnTimerDisabled switches off the automatic pass when the per-turn
	// timer expires; the timer then remains display-only state.
	TurnTimerDisabled bool `json:"turn_timer_disabled"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// DefaultGameConfig returns the configuration used when no file is present.
func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		DefaultTimerSeconds: 5,
		DefaultHandSize:     4,
		MaxPlayersPerRoom:   8,
		RoomCodeLength:      4,
		RoomCodeAttempts:    5,
	}
}

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		c := DefaultGameConfig()
		if err := json.Unmarshal(data, c); err != nil {
			loadErr = fmt.Errorf("failed to unmarshal game config: %w", err)
			return
		}
		cfg = c
	})
	return loadErr
}

// GetGameConfig returns the loaded configuration, or the defaults when no
// file was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return DefaultGameConfig()
	}
	return cfg
}
