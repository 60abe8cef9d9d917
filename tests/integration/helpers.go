package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/rtapi"
	"github.com/heroiclabs/nakama-go/v2"
)

const (
	ServerKey = "defaultkey"
	Host      = "127.0.0.1"
	Port      = 7350
)

// Op codes mirrored from the server module.
const (
	OpStartGame      int64 = 1
	OpPassCard       int64 = 2
	OpUpdateSettings int64 = 3
	OpGoToMenu       int64 = 4

	OpJoinedRoom  int64 = 101
	OpRoomUpdated int64 = 102
	OpGameStarted int64 = 104
	OpGameWinner  int64 = 105
)

// RoomSnapshot is the room state wire shape broadcast by the server.
type RoomSnapshot struct {
	RoomID  string `json:"roomId"`
	HostID  string `json:"hostId"`
	Players []struct {
		ID       string `json:"id"`
		Nickname string `json:"nickname"`
		Cards    []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"cards"`
	} `json:"players"`
	Timer    int    `json:"timer"`
	Cards    int    `json:"cards"`
	Status   string `json:"status"`
	Turn     string `json:"turn"`
	NumTurns int    `json:"numTurns"`
}

type RoomResponse struct {
	MatchID string `json:"matchId"`
	Code    string `json:"code"`
}

type TestClient struct {
	Client  *nakama.Client
	Session *nakama.Session
	Socket  *nakama.Socket
	UserID  string
}

func NewTestClient(t *testing.T) *TestClient {
	client := nakama.NewClient(ServerKey, Host, Port, false)

	deviceID := fmt.Sprintf("test_device_%d", time.Now().UnixNano())

	session, err := client.AuthenticateDevice(context.Background(), deviceID, true, "")
	if err != nil {
		t.Fatalf("Failed to authenticate: %v", err)
	}

	socket := client.NewSocket()
	if err := socket.Connect(context.Background(), session, true); err != nil {
		t.Fatalf("Failed to connect socket: %v", err)
	}

	return &TestClient{
		Client:  client,
		Session: session,
		Socket:  socket,
		UserID:  session.UserId,
	}
}

func (tc *TestClient) Close() {
	if tc.Socket != nil {
		tc.Socket.Close()
	}
}

// CreateRoom calls the create_room RPC and joins the backing match with the
// given nickname.
func (tc *TestClient) CreateRoom(t *testing.T, nickname string) RoomResponse {
	payload := fmt.Sprintf(`{"nickname":%q}`, nickname)
	rpc, err := tc.Client.RpcFunc(context.Background(), tc.Session, "create_room", payload)
	if err != nil {
		t.Fatalf("RPC create_room failed: %v", err)
	}

	var resp RoomResponse
	if err := json.Unmarshal([]byte(rpc.Payload), &resp); err != nil {
		t.Fatalf("create_room response unmarshal failed: %v", err)
	}
	if resp.MatchID == "" || resp.Code == "" {
		t.Fatalf("create_room returned incomplete response: %+v", resp)
	}

	tc.joinMatch(t, resp.MatchID, nickname)
	return resp
}

// JoinRoom resolves a room code via the join_room RPC and joins the match.
func (tc *TestClient) JoinRoom(t *testing.T, code, nickname string) RoomResponse {
	payload := fmt.Sprintf(`{"code":%q}`, code)
	rpc, err := tc.Client.RpcFunc(context.Background(), tc.Session, "join_room", payload)
	if err != nil {
		t.Fatalf("RPC join_room failed: %v", err)
	}

	var resp RoomResponse
	if err := json.Unmarshal([]byte(rpc.Payload), &resp); err != nil {
		t.Fatalf("join_room response unmarshal failed: %v", err)
	}

	tc.joinMatch(t, resp.MatchID, nickname)
	return resp
}

func (tc *TestClient) joinMatch(t *testing.T, matchID, nickname string) {
	metadata := map[string]string{"nickname": nickname}
	if _, err := tc.Socket.JoinMatch(context.Background(), nil, matchID, metadata); err != nil {
		t.Fatalf("Failed to join match %s: %v", matchID, err)
	}
}

// SendOp sends a JSON-encoded match message.
func (tc *TestClient) SendOp(t *testing.T, matchID string, opCode int64, payload any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("payload marshal failed: %v", err)
		}
	}
	if _, err := tc.Socket.SendMatchState(context.Background(), matchID, opCode, data, nil); err != nil {
		t.Fatalf("Failed to send opcode %d: %v", opCode, err)
	}
}

// WaitForMatchState waits for a specific opcode from the socket.
func (tc *TestClient) WaitForMatchState(t *testing.T, opCode int64, timeout time.Duration) *rtapi.MatchData {
	ch := make(chan *rtapi.MatchData)

	originalHandler := tc.Socket.OnMatchData
	tc.Socket.OnMatchData = func(data *rtapi.MatchData) {
		if data.OpCode == opCode {
			ch <- data
		}
		if originalHandler != nil {
			originalHandler(data)
		}
	}

	select {
	case data := <-ch:
		return data
	case <-time.After(timeout):
		t.Fatalf("Timeout waiting for OpCode %d", opCode)
		return nil
	}
}

// WaitForSnapshot waits for the given opcode and decodes its room snapshot.
func (tc *TestClient) WaitForSnapshot(t *testing.T, opCode int64, timeout time.Duration) RoomSnapshot {
	data := tc.WaitForMatchState(t, opCode, timeout)

	var snap RoomSnapshot
	if err := json.Unmarshal(data.Data, &snap); err != nil {
		t.Fatalf("snapshot unmarshal failed: %v", err)
	}
	return snap
}
