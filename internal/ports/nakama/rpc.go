package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/heroiclabs/nakama-common/runtime"
)

// CreateRoomRequest is the create_room RPC payload.
type CreateRoomRequest struct {
	Nickname string `json:"nickname"`
}

// JoinRoomRequest is the join_room RPC payload.
type JoinRoomRequest struct {
	Code string `json:"code"`
}

// RoomResponse is returned by both room RPCs; the client joins the match id
// over its socket afterwards.
type RoomResponse struct {
	MatchID string `json:"matchId"`
	Code    string `json:"code"`
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer) error {
	if err := initializer.RegisterRpc(RpcCreateRoom, rpcCreateRoom); err != nil {
		return err
	}
	return initializer.RegisterRpc(RpcJoinRoom, rpcJoinRoom)
}

func rpcCreateRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req CreateRoomRequest
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req); err != nil {
			logger.Warn("rpcCreateRoom [User:%s]: Invalid payload: %v", userID, err)
			return "", runtime.NewError("invalid payload", 3) // INVALID_ARGUMENT
		}
	}

	registry := NewRoomRegistry(NewNakamaMatchRegistry(nk), nil, nil)
	matchID, code, err := registry.CreateRoom(ctx, req.Nickname)
	if err != nil {
		logger.Error("rpcCreateRoom [User:%s]: Failed to create room: %v", userID, err)
		return "", runtime.NewError("failed to create room", 13) // INTERNAL
	}

	logger.Info("rpcCreateRoom [User:%s]: Created room %s (match %s)", userID, code, matchID)

	b, _ := json.Marshal(RoomResponse{MatchID: matchID, Code: code})
	return string(b), nil
}

func rpcJoinRoom(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	var req JoinRoomRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil || req.Code == "" {
		logger.Warn("rpcJoinRoom [User:%s]: Invalid payload: %v", userID, err)
		return "", runtime.NewError("invalid payload", 3) // INVALID_ARGUMENT
	}

	registry := NewRoomRegistry(NewNakamaMatchRegistry(nk), nil, nil)
	matchID, err := registry.FindRoom(ctx, req.Code)
	if errors.Is(err, ErrRoomNotFound) {
		logger.Info("rpcJoinRoom [User:%s]: Room %s not found", userID, req.Code)
		return "", runtime.NewError("room not found", 5) // NOT_FOUND
	}
	if err != nil {
		logger.Error("rpcJoinRoom [User:%s]: Lookup failed: %v", userID, err)
		return "", runtime.NewError("failed to look up room", 13) // INTERNAL
	}

	b, _ := json.Marshal(RoomResponse{MatchID: matchID, Code: req.Code})
	return string(b), nil
}
