package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"fruitpass/internal/app"
	"fruitpass/internal/config"
	"fruitpass/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// emptyRoomGraceTicks is how long a freshly created room waits for its
// creator to connect before the match is torn down.
const emptyRoomGraceTicks = 30

// MatchState holds the authoritative runtime state for a room match.
type MatchState struct {
	Room      *domain.Room
	Presences map[string]runtime.Presence // userId -> presence for targeted sends
	App       *app.Service
	Cfg       *config.GameConfig
	Tick      int64

	// TurnDeadline is the tick when the current turn expires; 0 means the
	// timer is not armed.
	TurnDeadline int64

	// HostNickname comes from the create_room RPC and names the creator when
	// their join carries no nickname metadata.
	HostNickname string
	// JoinNicknames stages nicknames from join metadata between the join
	// attempt and the join callback.
	JoinNicknames map[string]string
}

func newMatchHandler() *matchHandler {
	return &matchHandler{}
}

type matchHandler struct{}

// MatchInit boots a new room in the menu phase and advertises its code in the
// match label.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	if err := config.LoadGameConfig("data/game_config.json"); err != nil {
		logger.Warn("MatchInit: Could not load game config, using defaults: %v", err)
	}
	cfg := config.GetGameConfig()

	code, _ := params["code"].(string)
	if code == "" {
		logger.Error("MatchInit: Missing room code param.")
		return nil, 0, ""
	}
	hostNickname, _ := params["host_nickname"].(string)

	room := domain.NewRoom(code)
	room.Timer = cfg.DefaultTimerSeconds
	room.HandSize = cfg.DefaultHandSize

	state := &MatchState{
		Room:          room,
		Presences:     make(map[string]runtime.Presence),
		App:           app.NewService(nil),
		Cfg:           cfg,
		HostNickname:  hostNickname,
		JoinNicknames: make(map[string]string),
	}

	labelBytes, err := json.Marshal(domain.ComputeLabel(room, cfg.MaxPlayersPerRoom))
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1 // turn timing is counted in whole seconds
	return state, tickRate, string(labelBytes)
}

// MatchJoinAttempt admits a presence while the room has space and stages its
// nickname metadata.
func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}

	// Rejoins are always allowed.
	if matchState.Room.FindPlayer(presence.GetUserId()) == nil &&
		len(matchState.Room.Players) >= matchState.Cfg.MaxPlayersPerRoom {
		return state, false, "room_full"
	}

	if nickname := metadata["nickname"]; nickname != "" {
		matchState.JoinNicknames[presence.GetUserId()] = nickname
	}

	return state, true, ""
}

// MatchJoin appends joining presences to the room. The joiner receives the
// full snapshot privately; the rest of the room receives an update.
func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		uid := p.GetUserId()
		matchState.Presences[uid] = p

		nickname := matchState.JoinNicknames[uid]
		delete(matchState.JoinNicknames, uid)
		if nickname == "" && len(matchState.Room.Players) == 0 {
			nickname = matchState.HostNickname
		}
		if nickname == "" {
			nickname = p.GetUsername()
		}

		events := matchState.App.Join(matchState.Room, uid, nickname)
		for _, ev := range events {
			mh.broadcastEvent(matchState, dispatcher, logger, ev)
		}
		logger.Debug("MatchJoin: %s (%s) joined room %s.", nickname, uid, matchState.Room.Code)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLeave removes departing presences. The room is destroyed the instant
// its player list empties; otherwise host and turn are reassigned as needed
// and the departure is announced.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		uid := p.GetUserId()
		delete(matchState.Presences, uid)
		delete(matchState.JoinNicknames, uid)

		prevTurn := matchState.Room.TurnID
		events := matchState.App.Leave(matchState.Room, uid)

		if len(matchState.Room.Players) == 0 {
			logger.Info("MatchLeave: Room %s empty, terminating.", matchState.Room.Code)
			return nil
		}

		for _, ev := range events {
			mh.broadcastEvent(matchState, dispatcher, logger, ev)
		}
		if matchState.Room.TurnID != prevTurn {
			matchState.TurnDeadline = 0
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLoop processes queued client messages in receipt order, then runs the
// turn timer.
func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	// A created room whose creator never connected would linger forever.
	if len(matchState.Room.Players) == 0 && tick >= emptyRoomGraceTicks {
		logger.Info("MatchLoop: Room %s never joined, terminating.", matchState.Room.Code)
		return nil
	}

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpStartGame:
			mh.handleStartGame(matchState, dispatcher, logger, msg)
		case OpPassCard:
			mh.handlePassCard(matchState, dispatcher, logger, msg)
		case OpUpdateSettings:
			mh.handleUpdateSettings(matchState, dispatcher, logger, msg)
		case OpGoToMenu:
			mh.handleGoToMenu(matchState, dispatcher, logger, msg)
		case OpKickPlayer:
			mh.handleKickPlayer(matchState, dispatcher, logger, msg)
		case OpCheckRoom:
			mh.handleCheckRoom(matchState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: Unknown opcode received: %d", msg.GetOpCode())
		}
	}

	if !matchState.Cfg.TurnTimerDisabled {
		mh.enforceTurnTimer(matchState, dispatcher, logger)
	}

	return matchState
}

// enforceTurnTimer passes the turn holder's first card once the configured
// per-turn budget elapses, so a stalled player cannot freeze the room.
func (mh *matchHandler) enforceTurnTimer(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	room := state.Room
	if room.Phase != domain.PhasePlaying {
		state.TurnDeadline = 0
		return
	}

	if state.TurnDeadline == 0 {
		state.TurnDeadline = state.Tick + int64(room.Timer)
		return
	}
	if state.Tick < state.TurnDeadline {
		return
	}

	holder := room.FindPlayer(room.TurnID)
	if holder == nil || len(holder.Hand) == 0 {
		state.TurnDeadline = state.Tick + int64(room.Timer)
		return
	}

	logger.Debug("enforceTurnTimer: Turn expired for %s, auto-passing first card.", room.TurnID)
	events, err := state.App.PassCard(room, room.TurnID, holder.Hand[0].ID)
	if err != nil {
		logger.Warn("enforceTurnTimer: Auto-pass failed for %s: %v", room.TurnID, err)
		state.TurnDeadline = state.Tick + int64(room.Timer)
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	state.TurnDeadline = 0
	if room.Phase != domain.PhasePlaying {
		mh.updateLabel(state, dispatcher, logger)
	}
}

func (mh *matchHandler) handleStartGame(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	var req struct {
		Timer int `json:"timer"`
		Cards int `json:"cards"`
	}
	if err := json.Unmarshal(msg.GetData(), &req); err != nil {
		logger.Warn("handleStartGame: Invalid payload from %s: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, OpStartGameError, "invalid payload")
		return
	}

	events, err := state.App.StartGame(state.Room, senderID, req.Timer, req.Cards)
	if err != nil {
		logger.Warn("handleStartGame: User %s failed to start game: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, OpStartGameError, err.Error())
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	state.TurnDeadline = 0
	mh.updateLabel(state, dispatcher, logger)
	logger.Info("handleStartGame: Game started in room %s with %d players.", state.Room.Code, len(state.Room.Players))
}

func (mh *matchHandler) handlePassCard(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	var req struct {
		CardID string `json:"cardId"`
	}
	if err := json.Unmarshal(msg.GetData(), &req); err != nil {
		logger.Warn("handlePassCard: Invalid payload from %s: %v", senderID, err)
		return
	}

	prevPhase := state.Room.Phase
	events, err := state.App.PassCard(state.Room, senderID, req.CardID)
	if err != nil {
		if errors.Is(err, app.ErrNotYourTurn) {
			mh.sendError(state, dispatcher, logger, senderID, OpNotYourTurn, err.Error())
			return
		}
		// A card id that is not in the sender's hand means a desynchronized
		// client; drop the message rather than answering it.
		logger.Warn("handlePassCard: User %s pass rejected: %v", senderID, err)
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	state.TurnDeadline = 0
	if state.Room.Phase != prevPhase {
		mh.updateLabel(state, dispatcher, logger)
	}
}

func (mh *matchHandler) handleUpdateSettings(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	var req struct {
		Timer int `json:"timer"`
		Cards int `json:"cards"`
	}
	if err := json.Unmarshal(msg.GetData(), &req); err != nil {
		logger.Warn("handleUpdateSettings: Invalid payload from %s: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, OpUpdateSettingsError, "invalid payload")
		return
	}

	events, err := state.App.UpdateSettings(state.Room, senderID, req.Timer, req.Cards)
	if err != nil {
		logger.Warn("handleUpdateSettings: User %s rejected: %v", senderID, err)
		mh.sendError(state, dispatcher, logger, senderID, OpUpdateSettingsError, err.Error())
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
}

func (mh *matchHandler) handleGoToMenu(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()

	events, err := state.App.GoToMenu(state.Room, senderID)
	if err != nil {
		logger.Warn("handleGoToMenu: User %s rejected: %v", senderID, err)
		return
	}

	for _, ev := range events {
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	state.TurnDeadline = 0
	mh.updateLabel(state, dispatcher, logger)
}

func (mh *matchHandler) handleKickPlayer(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	if senderID != state.Room.HostID {
		logger.Warn("handleKickPlayer: User %s is not host.", senderID)
		return
	}

	var req struct {
		PlayerID string `json:"playerId"`
	}
	if err := json.Unmarshal(msg.GetData(), &req); err != nil {
		logger.Warn("handleKickPlayer: Invalid payload from %s: %v", senderID, err)
		return
	}

	target, ok := state.Presences[req.PlayerID]
	if !ok {
		logger.Warn("handleKickPlayer: Target %s not present.", req.PlayerID)
		return
	}

	// Kicking drops the connection; the room mutation happens on the
	// resulting leave.
	if err := dispatcher.MatchKick([]runtime.Presence{target}); err != nil {
		logger.Error("handleKickPlayer: Failed to kick %s: %v", req.PlayerID, err)
	}
}

func (mh *matchHandler) handleCheckRoom(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	if state.Room.FindPlayer(senderID) == nil {
		logger.Warn("handleCheckRoom: User %s is not a room member.", senderID)
		return
	}

	mh.broadcastEvent(state, dispatcher, logger, app.Event{
		Kind:       app.EventInRoom,
		Payload:    app.RoomPayload{Room: state.Room},
		Recipients: []string{senderID},
	})
}

// broadcastEvent converts an app event to its wire shape and dispatches it to
// the room group or the targeted recipients.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	var opCode int64
	var payload any

	switch ev.Kind {
	case app.EventJoinedRoom:
		opCode = OpJoinedRoom
		payload = toRoomState(ev.Payload.(app.RoomPayload).Room)
	case app.EventRoomUpdated:
		opCode = OpRoomUpdated
		payload = toRoomState(ev.Payload.(app.RoomPayload).Room)
	case app.EventGameStarted:
		opCode = OpGameStarted
		payload = toRoomState(ev.Payload.(app.RoomPayload).Room)
	case app.EventInRoom:
		opCode = OpInRoom
		payload = toRoomState(ev.Payload.(app.RoomPayload).Room)
	case app.EventPlayerLeft:
		opCode = OpPlayerLeft
		payload = toPlayerLeftEvent(ev.Payload.(app.PlayerLeftPayload))
	case app.EventGameWinner:
		opCode = OpGameWinner
		payload = toGameWinnerEvent(ev.Payload.(app.GameWinnerPayload))
	default:
		logger.Warn("Unknown event kind: %v", ev.Kind)
		return
	}

	bytes, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	// Default to a room-group broadcast unless recipients are named.
	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}

		// Intended recipients that are no longer connected must not widen
		// into a broadcast.
		if len(recipients) == 0 {
			return
		}
	}

	if err := dispatcher.BroadcastMessage(opCode, bytes, recipients, nil, true); err != nil {
		logger.Error("Failed to broadcast event %v: %v", ev.Kind, err)
	}
}

// sendError sends a targeted error event to a single user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, opCode int64, message string) {
	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}

	bytes, err := json.Marshal(errorEvent{Message: message})
	if err != nil {
		logger.Error("Failed to marshal error event: %v", err)
		return
	}

	if err := dispatcher.BroadcastMessage(opCode, bytes, []runtime.Presence{presence}, nil, true); err != nil {
		logger.Error("Failed to send error to %s: %v", userID, err)
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	labelBytes, err := json.Marshal(domain.ComputeLabel(state.Room, state.Cfg.MaxPlayersPerRoom))
	if err != nil {
		logger.Error("updateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("updateLabel: Failed to update: %v", err)
	}
}

// MatchTerminate runs on match shutdown; room state is purely in-memory so
// there is nothing to persist.
func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: Match terminated for reason %d", reason)
	return state
}

// MatchSignal handles out-of-band signals; unused.
func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
