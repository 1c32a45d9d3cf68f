package game

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/kiliankoe/rajamantri/internal/common/clock"
	"github.com/kiliankoe/rajamantri/internal/common/ids"
)

// RoomManager owns every room. A single mutex guards the room table and
// all room contents; operations never block while holding it.
type RoomManager struct {
	mu    sync.Mutex
	rooms map[string]*Room
	order []string // room ids in creation order

	clock   clock.Clock
	ids     ids.Generator
	shuffle func(n int, swap func(i, j int))
}

type Option func(*RoomManager)

func WithClock(c clock.Clock) Option {
	return func(rm *RoomManager) { rm.clock = c }
}

func WithIDs(g ids.Generator) Option {
	return func(rm *RoomManager) { rm.ids = g }
}

// WithShuffle replaces the permutation source used for role assignment.
// It must behave like rand.Shuffle.
func WithShuffle(f func(n int, swap func(i, j int))) Option {
	return func(rm *RoomManager) { rm.shuffle = f }
}

func NewRoomManager(opts ...Option) *RoomManager {
	rm := &RoomManager{
		rooms:   make(map[string]*Room),
		clock:   clock.System{},
		ids:     ids.UUID{},
		shuffle: rand.Shuffle,
	}
	for _, o := range opts {
		o(rm)
	}
	return rm
}

// Close drops every room. The manager stays usable and starts out empty.
func (rm *RoomManager) Close() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.rooms = make(map[string]*Room)
	rm.order = nil
}

func (rm *RoomManager) CreateRoom(name string) (*CreateRoomResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, newError(ErrValidation, "name is required")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	now := rm.clock.Now()
	r := &Room{
		ID:            rm.newRoomID(),
		CreatedAt:     now,
		State:         StateWaiting,
		RolesAssigned: make(map[string]Role),
	}
	p := &Player{ID: rm.ids.NewID(), Name: name, JoinedAt: now}
	r.Players = append(r.Players, p)

	rm.rooms[r.ID] = r
	rm.order = append(rm.order, r.ID)
	return &CreateRoomResult{RoomID: r.ID, PlayerID: p.ID, Message: "Room created. You are player1."}, nil
}

func (rm *RoomManager) JoinRoom(roomID, name string) (*JoinRoomResult, error) {
	if roomID == "" || strings.TrimSpace(name) == "" {
		return nil, newError(ErrValidation, "roomId and name are required")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	if r.State != StateWaiting {
		return nil, newError(ErrInvalidState, "Cannot join: room already started or roles assigned")
	}
	if len(r.Players) >= RoomSize {
		return nil, newError(ErrRoomFull, fmt.Sprintf("Room full (%d players)", RoomSize))
	}

	p := &Player{ID: rm.ids.NewID(), Name: name, JoinedAt: rm.clock.Now()}
	r.Players = append(r.Players, p)
	return &JoinRoomResult{
		RoomID:   r.ID,
		PlayerID: p.ID,
		Players:  len(r.Players),
		Message:  fmt.Sprintf("Joined room: %s. Players now: %d/%d", r.ID, len(r.Players), RoomSize),
	}, nil
}

func (rm *RoomManager) ListPlayers(roomID string) (*PlayerList, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	out := &PlayerList{RoomID: r.ID, State: r.State, Players: make([]PlayerInfo, 0, len(r.Players))}
	for _, p := range r.Players {
		out.Players = append(out.Players, PlayerInfo{ID: p.ID, Name: p.Name})
	}
	return out, nil
}

// AssignRoles deals a fresh secret role to each of the four players. The
// result deliberately carries no mapping.
func (rm *RoomManager) AssignRoles(roomID string) (*AssignResult, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	if !r.State.CanTransitionTo(StateAssigned) {
		return nil, newError(ErrInvalidState, fmt.Sprintf("Cannot assign roles in state %s", r.State))
	}
	if len(r.Players) != RoomSize {
		return nil, newError(ErrPlayerCount, fmt.Sprintf("Need exactly %d players to assign roles", RoomSize))
	}

	shuffled := make([]*Player, len(r.Players))
	copy(shuffled, r.Players)
	rm.shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	assigned := make(map[string]Role, RoomSize)
	for i, p := range shuffled {
		role := Roles[i]
		assigned[p.ID] = role
		p.Role = rolePtr(role)
		p.LastRole = rolePtr(role)
	}
	r.RolesAssigned = assigned
	r.State = StateAssigned

	return &AssignResult{RoomID: r.ID, Message: "Roles assigned. Mantri, check your role endpoint to submit guess."}, nil
}

// MyRole returns the requesting player's own role and nothing else.
func (rm *RoomManager) MyRole(roomID, playerID string) (*RoleView, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	p := r.player(playerID)
	if p == nil {
		return nil, newError(ErrNotFound, "Player not found in room")
	}
	if r.State == StateWaiting || p.Role == nil {
		return nil, newError(ErrInvalidState, "Roles not assigned yet")
	}
	return &RoleView{PlayerID: p.ID, Name: p.Name, Role: *p.Role}, nil
}

// SubmitGuess resolves the round: only the Mantri may guess, once.
func (rm *RoomManager) SubmitGuess(roomID, mantriID, guessedPlayerID string) (*GuessResult, error) {
	if mantriID == "" || guessedPlayerID == "" {
		return nil, newError(ErrValidation, "mantriId and guessedPlayerId are required")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	if !r.State.CanTransitionTo(StateCompleted) {
		return nil, newError(ErrInvalidState, "Room not in guessing state")
	}
	if r.player(mantriID) == nil {
		return nil, newError(ErrNotFound, "mantriId not found in room")
	}
	if r.RolesAssigned[mantriID] != RoleMantri {
		return nil, newError(ErrForbidden, "Only the Mantri can submit a guess")
	}
	if r.player(guessedPlayerID) == nil {
		return nil, newError(ErrNotFound, "guessedPlayerId not found in room")
	}

	delta, correct := Score(r.RolesAssigned, guessedPlayerID)
	for _, p := range r.Players {
		p.CumulativeScore += delta[p.ID]
	}

	rec := RoundRecord{
		Round:         len(r.RoundHistory) + 1,
		Timestamp:     rm.clock.Now(),
		RolesAssigned: copyRoles(r.RolesAssigned),
		Guess:         Guess{MantriID: mantriID, GuessedPlayerID: guessedPlayerID, Correct: correct},
		PointsChange:  copyPoints(delta),
	}
	r.RoundHistory = append(r.RoundHistory, rec)
	r.State = StateCompleted

	out := &GuessResult{
		RoomID:           r.ID,
		Round:            rec.Round,
		Timestamp:        rec.Timestamp,
		Correct:          correct,
		MantriID:         mantriID,
		GuessedPlayerID:  guessedPlayerID,
		Roles:            make([]PlayerRole, 0, len(r.Players)),
		PointsChange:     copyPoints(delta),
		CumulativeScores: r.scores(),
		Message:          outcomeMessage(correct),
	}
	for _, p := range r.Players {
		role := r.RolesAssigned[p.ID]
		out.Roles = append(out.Roles, PlayerRole{PlayerID: p.ID, Name: p.Name, Role: rolePtr(role)})
	}
	return out, nil
}

// Result is the post-round review: last roles, scores and the latest record.
// While a round is in play every role is withheld.
func (rm *RoomManager) Result(roomID string) (*RoundSummary, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	out := &RoundSummary{
		RoomID:           r.ID,
		State:            r.State,
		Roles:            make([]PlayerRole, 0, len(r.Players)),
		CumulativeScores: r.scores(),
	}
	for _, p := range r.Players {
		var last *Role
		if p.LastRole != nil && r.State != StateAssigned {
			last = rolePtr(*p.LastRole)
		}
		out.Roles = append(out.Roles, PlayerRole{PlayerID: p.ID, Name: p.Name, Role: last})
	}
	if n := len(r.RoundHistory); n > 0 {
		rec := r.RoundHistory[n-1].clone()
		out.LastRound = &rec
	}
	return out, nil
}

func (rm *RoomManager) Leaderboard(roomID string) (*Leaderboard, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(r.Players))
	for _, p := range r.Players {
		entries = append(entries, LeaderboardEntry{PlayerID: p.ID, Name: p.Name, Score: p.CumulativeScore})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return &Leaderboard{RoomID: r.ID, Entries: entries}, nil
}

// ResetRoom starts a new round with the same roster. Scores are kept.
func (rm *RoomManager) ResetRoom(roomID string) (*ResetResult, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	for _, p := range r.Players {
		p.Role = nil
		p.LastRole = nil
	}
	r.RolesAssigned = make(map[string]Role)
	r.State = StateWaiting
	return &ResetResult{RoomID: r.ID, Message: "Room reset for next round. You may assign roles again."}, nil
}

func (rm *RoomManager) ListRooms() []RoomSummary {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make([]RoomSummary, 0, len(rm.order))
	for _, id := range rm.order {
		r := rm.rooms[id]
		out = append(out, RoomSummary{RoomID: r.ID, Players: len(r.Players), State: r.State})
	}
	return out
}

// History returns every resolved round of a room, oldest first.
func (rm *RoomManager) History(roomID string) ([]RoundRecord, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, err := rm.room(roomID)
	if err != nil {
		return nil, err
	}
	out := make([]RoundRecord, 0, len(r.RoundHistory))
	for _, rec := range r.RoundHistory {
		out = append(out, rec.clone())
	}
	return out, nil
}

// must be called with rm.mu held
func (rm *RoomManager) room(roomID string) (*Room, error) {
	if roomID == "" {
		return nil, newError(ErrValidation, "roomId is required")
	}
	r := rm.rooms[roomID]
	if r == nil {
		return nil, newError(ErrNotFound, "Room not found")
	}
	return r, nil
}

func (rm *RoomManager) newRoomID() string {
	id := rm.ids.NewID()
	for rm.rooms[id] != nil {
		id = rm.ids.NewID()
	}
	return id
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) scores() []PlayerScore {
	out := make([]PlayerScore, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, PlayerScore{PlayerID: p.ID, Name: p.Name, CumulativeScore: p.CumulativeScore})
	}
	return out
}

func (rec RoundRecord) clone() RoundRecord {
	rec.RolesAssigned = copyRoles(rec.RolesAssigned)
	rec.PointsChange = copyPoints(rec.PointsChange)
	return rec
}

// Record rebuilds the history entry of a resolved round.
func (res *GuessResult) Record() RoundRecord {
	roles := make(map[string]Role, len(res.Roles))
	for _, pr := range res.Roles {
		if pr.Role != nil {
			roles[pr.PlayerID] = *pr.Role
		}
	}
	return RoundRecord{
		Round:         res.Round,
		Timestamp:     res.Timestamp,
		RolesAssigned: roles,
		Guess:         Guess{MantriID: res.MantriID, GuessedPlayerID: res.GuessedPlayerID, Correct: res.Correct},
		PointsChange:  copyPoints(res.PointsChange),
	}
}

func rolePtr(r Role) *Role { return &r }

func copyRoles(m map[string]Role) map[string]Role {
	out := make(map[string]Role, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyPoints(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
