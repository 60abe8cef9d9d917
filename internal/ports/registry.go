package ports

import (
	"context"

	"github.com/heroiclabs/nakama-common/api"
)

// MatchRegistry abstracts the slice of the Nakama module API the room
// registry needs, so code generation and lookup can be exercised with fakes.
type MatchRegistry interface {
	// List returns live matches whose label satisfies the query.
	List(ctx context.Context, limit int, query string) ([]*api.Match, error)
	// Create spins up a new authoritative match and returns its id.
	Create(ctx context.Context, module string, params map[string]interface{}) (string, error)
}
