package nakama

const (
	// RpcCreateRoom is the Nakama RPC id clients call to open a new room.
	RpcCreateRoom = "create_room"
	// RpcJoinRoom is the Nakama RPC id clients call to resolve a room code
	// to a joinable match.
	RpcJoinRoom = "join_room"

	// MatchNameFruitpass is the authoritative match handler name registered
	// with Nakama.
	MatchNameFruitpass = "fruitpass_match"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpStartGame      int64 = 1
	OpPassCard       int64 = 2
	OpUpdateSettings int64 = 3
	OpGoToMenu       int64 = 4
	OpKickPlayer     int64 = 5
	OpCheckRoom      int64 = 6

	// Server -> Client events
	OpJoinedRoom  int64 = 101
	OpRoomUpdated int64 = 102
	OpPlayerLeft  int64 = 103
	OpGameStarted int64 = 104
	OpGameWinner  int64 = 105
	OpInRoom      int64 = 106 // send privately

	// Server -> Client targeted errors
	OpNotYourTurn         int64 = 201
	OpStartGameError      int64 = 202
	OpUpdateSettingsError int64 = 203
)
