package nakama

import (
	"context"
	"encoding/json"
	"testing"

	"fruitpass/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy
// the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type sentMessage struct {
	opCode     int64
	data       []byte
	recipients []string // user ids; nil means room broadcast
}

// mockDispatcher records dispatcher calls for assertions.
type mockDispatcher struct {
	messages []sentMessage
	labels   []string
	kicked   []string
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	msg := sentMessage{opCode: opCode, data: append([]byte(nil), data...)}
	for _, p := range presences {
		msg.recipients = append(msg.recipients, p.GetUserId())
	}
	md.messages = append(md.messages, msg)
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return md.BroadcastMessage(opCode, data, presences, sender, reliable)
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	for _, p := range presences {
		md.kicked = append(md.kicked, p.GetUserId())
	}
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labels = append(md.labels, label)
	return nil
}

// lastByOpCode returns the most recent message sent with the given opcode.
func (md *mockDispatcher) lastByOpCode(opCode int64) (sentMessage, bool) {
	for i := len(md.messages) - 1; i >= 0; i-- {
		if md.messages[i].opCode == opCode {
			return md.messages[i], true
		}
	}
	return sentMessage{}, false
}

// mockPresence satisfies runtime.Presence.
type mockPresence struct {
	userID   string
	username string
}

func (mp mockPresence) GetUserId() string                 { return mp.userID }
func (mp mockPresence) GetSessionId() string              { return mp.userID + "-session" }
func (mp mockPresence) GetNodeId() string                 { return "node" }
func (mp mockPresence) GetHidden() bool                   { return false }
func (mp mockPresence) GetPersistence() bool              { return false }
func (mp mockPresence) GetUsername() string               { return mp.username }
func (mp mockPresence) GetStatus() string                 { return "" }
func (mp mockPresence) GetReason() runtime.PresenceReason { return runtime.PresenceReasonUnknown }

// mockMatchData satisfies runtime.MatchData.
type mockMatchData struct {
	mockPresence
	opCode int64
	data   []byte
}

func (md mockMatchData) GetOpCode() int64      { return md.opCode }
func (md mockMatchData) GetData() []byte       { return md.data }
func (md mockMatchData) GetReliable() bool     { return true }
func (md mockMatchData) GetReceiveTime() int64 { return 0 }

func message(userID string, opCode int64, payload any) runtime.MatchData {
	var data []byte
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	return mockMatchData{mockPresence: mockPresence{userID: userID, username: userID}, opCode: opCode, data: data}
}

// newTestMatch initializes a match and joins the given players in order.
func newTestMatch(t *testing.T, dispatcher *mockDispatcher, players ...string) (*matchHandler, *MatchState) {
	t.Helper()
	mh := newMatchHandler()

	raw, tickRate, label := mh.MatchInit(context.Background(), noopLogger{}, nil, nil, map[string]interface{}{
		"code": "ab12",
	})
	if raw == nil {
		t.Fatalf("MatchInit returned nil state")
	}
	if tickRate != 1 {
		t.Fatalf("tick rate = %d, want 1", tickRate)
	}
	var lp domain.LabelPayload
	if err := json.Unmarshal([]byte(label), &lp); err != nil {
		t.Fatalf("initial label unmarshal failed: %v", err)
	}
	if lp.Code != "ab12" || !lp.Open {
		t.Fatalf("initial label unexpected: %+v", lp)
	}

	state := raw.(*MatchState)
	for _, id := range players {
		p := mockPresence{userID: id, username: id}
		raw2, allow, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, dispatcher, 0, state, p, map[string]string{"nickname": id})
		if !allow {
			t.Fatalf("join attempt for %s rejected: %s", id, reason)
		}
		state = raw2.(*MatchState)
		state = mh.MatchJoin(context.Background(), noopLogger{}, nil, nil, dispatcher, 0, state, []runtime.Presence{p}).(*MatchState)
	}
	return mh, state
}

func loop(mh *matchHandler, state *MatchState, dispatcher *mockDispatcher, tick int64, msgs ...runtime.MatchData) interface{} {
	return mh.MatchLoop(context.Background(), noopLogger{}, nil, nil, dispatcher, tick, state, msgs)
}

func TestMatchJoinBroadcasts(t *testing.T) {
	dispatcher := &mockDispatcher{}
	_, state := newTestMatch(t, dispatcher, "A", "B")

	if state.Room.HostID != "A" {
		t.Fatalf("host = %q, want A", state.Room.HostID)
	}

	joined, ok := dispatcher.lastByOpCode(OpJoinedRoom)
	if !ok {
		t.Fatalf("no joined_room message sent")
	}
	if len(joined.recipients) != 1 || joined.recipients[0] != "B" {
		t.Fatalf("joined_room recipients = %v, want [B]", joined.recipients)
	}

	updated, ok := dispatcher.lastByOpCode(OpRoomUpdated)
	if !ok {
		t.Fatalf("no room_updated broadcast sent")
	}
	if updated.recipients != nil {
		t.Fatalf("room_updated must broadcast to the group, got %v", updated.recipients)
	}

	var snap roomState
	if err := json.Unmarshal(joined.data, &snap); err != nil {
		t.Fatalf("snapshot unmarshal failed: %v", err)
	}
	if snap.RoomID != "ab12" || len(snap.Players) != 2 || snap.Status != "menu" {
		t.Fatalf("snapshot unexpected: %+v", snap)
	}
	if len(dispatcher.labels) == 0 {
		t.Fatalf("label not updated on join")
	}
}

func TestMatchJoinAttemptRoomFull(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher)

	for i := 0; i < state.Cfg.MaxPlayersPerRoom; i++ {
		state.Room.Players = append(state.Room.Players, &domain.Player{UserID: string(rune('a' + i))})
	}

	_, allow, reason := mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, dispatcher, 0, state, mockPresence{userID: "newcomer"}, nil)
	if allow {
		t.Fatalf("expected full room to reject join")
	}
	if reason != "room_full" {
		t.Fatalf("reason = %q, want room_full", reason)
	}

	// An existing member reconnecting is always admitted.
	_, allow, _ = mh.MatchJoinAttempt(context.Background(), noopLogger{}, nil, nil, dispatcher, 0, state, mockPresence{userID: "a"}, nil)
	if !allow {
		t.Fatalf("expected rejoin to be admitted")
	}
}

func TestStartGameViaLoop(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")

	loop(mh, state, dispatcher, 1, message("A", OpStartGame, map[string]int{"timer": 5, "cards": 3}))

	started, ok := dispatcher.lastByOpCode(OpGameStarted)
	if !ok {
		t.Fatalf("no game_started broadcast sent")
	}
	var snap roomState
	if err := json.Unmarshal(started.data, &snap); err != nil {
		t.Fatalf("snapshot unmarshal failed: %v", err)
	}
	if snap.Status != "playing" || snap.Turn != "A" || snap.NumTurns != 0 {
		t.Fatalf("started snapshot unexpected: %+v", snap)
	}
	if len(snap.Players[0].Cards) != 4 || len(snap.Players[1].Cards) != 3 {
		t.Fatalf("dealt hands = %d/%d, want 4/3", len(snap.Players[0].Cards), len(snap.Players[1].Cards))
	}
	if len(snap.Deck) != 0 {
		t.Fatalf("deck remainder = %d, want 0", len(snap.Deck))
	}

	var lp domain.LabelPayload
	if err := json.Unmarshal([]byte(dispatcher.labels[len(dispatcher.labels)-1]), &lp); err != nil {
		t.Fatalf("label unmarshal failed: %v", err)
	}
	if lp.Phase != "playing" {
		t.Fatalf("label phase = %s, want playing", lp.Phase)
	}
}

func TestStartGameByNonHostSendsTargetedError(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")

	loop(mh, state, dispatcher, 1, message("B", OpStartGame, map[string]int{"timer": 5, "cards": 3}))

	if state.Room.Phase != domain.PhaseMenu {
		t.Fatalf("non-host start changed phase to %s", state.Room.Phase)
	}
	errMsg, ok := dispatcher.lastByOpCode(OpStartGameError)
	if !ok {
		t.Fatalf("no start_game_error sent")
	}
	if len(errMsg.recipients) != 1 || errMsg.recipients[0] != "B" {
		t.Fatalf("error recipients = %v, want [B]", errMsg.recipients)
	}
}

func TestPassCardOffTurnSendsNotYourTurn(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")
	loop(mh, state, dispatcher, 1, message("A", OpStartGame, map[string]int{"timer": 5, "cards": 3}))

	cardID := state.Room.Players[1].Hand[0].ID
	loop(mh, state, dispatcher, 2, message("B", OpPassCard, map[string]string{"cardId": cardID}))

	errMsg, ok := dispatcher.lastByOpCode(OpNotYourTurn)
	if !ok {
		t.Fatalf("no not_your_turn sent")
	}
	if len(errMsg.recipients) != 1 || errMsg.recipients[0] != "B" {
		t.Fatalf("error recipients = %v, want [B]", errMsg.recipients)
	}
	if state.Room.NumTurns != 0 {
		t.Fatalf("off-turn pass advanced the game: numTurns=%d", state.Room.NumTurns)
	}
}

func TestPassCardAdvancesTurn(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")
	loop(mh, state, dispatcher, 1, message("A", OpStartGame, map[string]int{"timer": 5, "cards": 3}))

	cardID := state.Room.Players[0].Hand[0].ID
	loop(mh, state, dispatcher, 2, message("A", OpPassCard, map[string]string{"cardId": cardID}))

	if state.Room.Phase == domain.PhasePlaying {
		if state.Room.TurnID != "B" || state.Room.NumTurns != 1 {
			t.Fatalf("turn=%q numTurns=%d after pass, want B/1", state.Room.TurnID, state.Room.NumTurns)
		}
		if _, ok := dispatcher.lastByOpCode(OpRoomUpdated); !ok {
			t.Fatalf("no room_updated broadcast after pass")
		}
	} else {
		// The shuffle can deal B a uniform hand that the passed card keeps
		// uniform; then the pass legitimately ends the game instead.
		if _, ok := dispatcher.lastByOpCode(OpGameWinner); !ok {
			t.Fatalf("game complete without game_winner broadcast")
		}
	}
}

func TestWinnerBroadcastOnUniformHand(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")
	loop(mh, state, dispatcher, 1, message("A", OpStartGame, map[string]int{"timer": 5, "cards": 3}))

	// Force a deterministic win: A already holds a uniform hand on their turn.
	state.Room.Players[0].Hand = []domain.Card{
		{Type: "mango", ID: "m1"},
		{Type: "mango", ID: "m2"},
	}
	state.Room.NumTurns = 4

	loop(mh, state, dispatcher, 2, message("A", OpPassCard, map[string]string{"cardId": "m1"}))

	if state.Room.Phase != domain.PhaseComplete {
		t.Fatalf("phase = %s, want complete", state.Room.Phase)
	}
	winMsg, ok := dispatcher.lastByOpCode(OpGameWinner)
	if !ok {
		t.Fatalf("no game_winner broadcast sent")
	}
	var win gameWinnerEvent
	if err := json.Unmarshal(winMsg.data, &win); err != nil {
		t.Fatalf("winner unmarshal failed: %v", err)
	}
	if win.WinnerID != "A" || win.WinnerNickname != "A" || win.WinningCardType != "mango" || win.NumTurns != 4 {
		t.Fatalf("winner payload = %+v", win)
	}
}

func TestGoToMenuResetsRoom(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")
	loop(mh, state, dispatcher, 1, message("A", OpStartGame, map[string]int{"timer": 5, "cards": 3}))

	// Non-host reset is ignored.
	loop(mh, state, dispatcher, 2, message("B", OpGoToMenu, nil))
	if state.Room.Phase != domain.PhasePlaying {
		t.Fatalf("non-host go-to-menu changed phase to %s", state.Room.Phase)
	}

	loop(mh, state, dispatcher, 3, message("A", OpGoToMenu, nil))
	if state.Room.Phase != domain.PhaseMenu || state.Room.TurnID != "A" || state.Room.NumTurns != 0 {
		t.Fatalf("room not reset: %+v", state.Room)
	}
	for _, pl := range state.Room.Players {
		if len(pl.Hand) != 0 {
			t.Fatalf("hand not cleared for %s", pl.UserID)
		}
	}
}

func TestKickPlayerHostOnly(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")

	loop(mh, state, dispatcher, 1, message("B", OpKickPlayer, map[string]string{"playerId": "A"}))
	if len(dispatcher.kicked) != 0 {
		t.Fatalf("non-host kick went through: %v", dispatcher.kicked)
	}

	loop(mh, state, dispatcher, 2, message("A", OpKickPlayer, map[string]string{"playerId": "B"}))
	if len(dispatcher.kicked) != 1 || dispatcher.kicked[0] != "B" {
		t.Fatalf("kicked = %v, want [B]", dispatcher.kicked)
	}
}

func TestCheckRoomDeliversSnapshotPrivately(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")

	loop(mh, state, dispatcher, 1, message("B", OpCheckRoom, nil))

	inRoom, ok := dispatcher.lastByOpCode(OpInRoom)
	if !ok {
		t.Fatalf("no in_room message sent")
	}
	if len(inRoom.recipients) != 1 || inRoom.recipients[0] != "B" {
		t.Fatalf("in_room recipients = %v, want [B]", inRoom.recipients)
	}
	var snap roomState
	if err := json.Unmarshal(inRoom.data, &snap); err != nil {
		t.Fatalf("snapshot unmarshal failed: %v", err)
	}
	if snap.RoomID != "ab12" || len(snap.Players) != 2 {
		t.Fatalf("snapshot unexpected: %+v", snap)
	}
}

func TestTurnTimerAutoPasses(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B")
	loop(mh, state, dispatcher, 1, message("A", OpStartGame, map[string]int{"timer": 2, "cards": 3}))

	// The start tick arms the deadline; the deadline tick fires the pass.
	if state.TurnDeadline != 3 {
		t.Fatalf("deadline = %d, want 3 (armed at tick 1 + timer 2)", state.TurnDeadline)
	}
	loop(mh, state, dispatcher, 2)
	loop(mh, state, dispatcher, 3)

	if state.Room.Phase == domain.PhasePlaying {
		if state.Room.NumTurns != 1 || state.Room.TurnID != "B" {
			t.Fatalf("auto-pass did not advance: turn=%q numTurns=%d", state.Room.TurnID, state.Room.NumTurns)
		}
	} else if _, ok := dispatcher.lastByOpCode(OpGameWinner); !ok {
		t.Fatalf("game complete without game_winner broadcast")
	}
}

func TestMatchLeaveLastPlayerTerminates(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A")

	result := mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, dispatcher, 5, state, []runtime.Presence{mockPresence{userID: "A"}})
	if result != nil {
		t.Fatalf("expected nil state (match termination) when the room empties")
	}
}

func TestMatchLeaveReassignsHostAndAnnounces(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher, "A", "B", "C")

	result := mh.MatchLeave(context.Background(), noopLogger{}, nil, nil, dispatcher, 5, state, []runtime.Presence{mockPresence{userID: "A"}})
	state = result.(*MatchState)

	if state.Room.HostID != "B" {
		t.Fatalf("host = %q, want B", state.Room.HostID)
	}
	leftMsg, ok := dispatcher.lastByOpCode(OpPlayerLeft)
	if !ok {
		t.Fatalf("no player_left broadcast sent")
	}
	var left playerLeftEvent
	if err := json.Unmarshal(leftMsg.data, &left); err != nil {
		t.Fatalf("player_left unmarshal failed: %v", err)
	}
	if left.PlayerID != "A" || left.PlayerName != "A" {
		t.Fatalf("player_left payload = %+v", left)
	}
}

func TestNeverJoinedRoomTerminates(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mh, state := newTestMatch(t, dispatcher)

	if result := loop(mh, state, dispatcher, emptyRoomGraceTicks-1); result == nil {
		t.Fatalf("room terminated before the grace period elapsed")
	}
	if result := loop(mh, state, dispatcher, emptyRoomGraceTicks); result != nil {
		t.Fatalf("expected termination once the grace period elapsed")
	}
}
