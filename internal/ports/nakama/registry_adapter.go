package nakama

import (
	"context"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"fruitpass/internal/ports"
)

// nakamaMatchRegistry adapts the Nakama module API to the MatchRegistry port.
type nakamaMatchRegistry struct {
	nk runtime.NakamaModule
}

// NewNakamaMatchRegistry wraps a NakamaModule as a MatchRegistry.
func NewNakamaMatchRegistry(nk runtime.NakamaModule) ports.MatchRegistry {
	return &nakamaMatchRegistry{nk: nk}
}

func (a *nakamaMatchRegistry) List(ctx context.Context, limit int, query string) ([]*api.Match, error) {
	authoritative := true
	// No size bounds: a room is findable by code whether empty or full.
	return a.nk.MatchList(ctx, limit, authoritative, "", nil, nil, query)
}

func (a *nakamaMatchRegistry) Create(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	return a.nk.MatchCreate(ctx, module, params)
}
