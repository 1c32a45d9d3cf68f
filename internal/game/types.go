package game

import (
	"time"
)

type Role string

const (
	RoleRaja   Role = "Raja"
	RoleMantri Role = "Mantri"
	RoleChor   Role = "Chor"
	RoleSipahi Role = "Sipahi"
)

// Roles in the order they are dealt to the shuffled players.
var Roles = [RoomSize]Role{RoleRaja, RoleMantri, RoleChor, RoleSipahi}

// RoomSize is the exact number of players a round needs.
const RoomSize = 4

// DefaultPoints awarded per round.
var DefaultPoints = map[Role]int{
	RoleRaja:   1000,
	RoleMantri: 800,
	RoleSipahi: 500,
	RoleChor:   0,
}

type State string

const (
	StateWaiting  State = "waiting"
	StateAssigned State = "assigned"
	// StateGuessed is reported by older clients but never entered.
	StateGuessed   State = "guessed"
	StateCompleted State = "completed"
)

// CanTransitionTo reports whether a room may move from s to target.
func (s State) CanTransitionTo(target State) bool {
	switch s {
	case StateWaiting:
		return target == StateAssigned
	case StateAssigned:
		return target == StateCompleted
	case StateCompleted:
		return target == StateWaiting
	}
	return false
}

type Player struct {
	ID              string
	Name            string
	CumulativeScore int
	Role            *Role
	LastRole        *Role
	JoinedAt        time.Time
}

type Room struct {
	ID            string
	CreatedAt     time.Time
	Players       []*Player
	State         State
	RolesAssigned map[string]Role
	RoundHistory  []RoundRecord
}

type Guess struct {
	MantriID        string `json:"mantriId"`
	GuessedPlayerID string `json:"guessedPlayerId"`
	Correct         bool   `json:"correct"`
}

type RoundRecord struct {
	Round         int             `json:"round"`
	Timestamp     time.Time       `json:"timestamp"`
	RolesAssigned map[string]Role `json:"rolesAssigned"`
	Guess         Guess           `json:"guess"`
	PointsChange  map[string]int  `json:"pointsChange"`
}

// Views handed out of the manager. They never alias room state.

type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PlayerRole struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Role     *Role  `json:"role"`
}

type PlayerScore struct {
	PlayerID        string `json:"playerId"`
	Name            string `json:"name"`
	CumulativeScore int    `json:"cumulativeScore"`
}

type CreateRoomResult struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Message  string `json:"message"`
}

type JoinRoomResult struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Players  int    `json:"players"`
	Message  string `json:"message"`
}

type PlayerList struct {
	RoomID  string       `json:"roomId"`
	Players []PlayerInfo `json:"players"`
	State   State        `json:"state"`
}

type AssignResult struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type RoleView struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
}

type GuessResult struct {
	RoomID           string         `json:"roomId"`
	Round            int            `json:"round"`
	Timestamp        time.Time      `json:"timestamp"`
	Correct          bool           `json:"correct"`
	MantriID         string         `json:"mantriId"`
	GuessedPlayerID  string         `json:"guessedPlayerId"`
	Roles            []PlayerRole   `json:"roles"`
	PointsChange     map[string]int `json:"pointsChange"`
	CumulativeScores []PlayerScore  `json:"cumulativeScores"`
	Message          string         `json:"message"`
}

type RoundSummary struct {
	RoomID           string        `json:"roomId"`
	State            State         `json:"state"`
	Roles            []PlayerRole  `json:"roles"`
	CumulativeScores []PlayerScore `json:"cumulativeScores"`
	LastRound        *RoundRecord  `json:"lastRound"`
}

type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

type Leaderboard struct {
	RoomID  string             `json:"roomId"`
	Entries []LeaderboardEntry `json:"leaderboard"`
}

type ResetResult struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type RoomSummary struct {
	RoomID  string `json:"roomId"`
	Players int    `json:"players"`
	State   State  `json:"state"`
}
