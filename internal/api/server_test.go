package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/rajamantri/internal/config"
	"github.com/kiliankoe/rajamantri/internal/game"
	"github.com/kiliankoe/rajamantri/internal/metrics"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	rounds []*game.GuessResult
	err    error
}

func (r *recordingSink) RoundCompleted(_ context.Context, res *game.GuessResult) error {
	r.rounds = append(r.rounds, res)
	return r.err
}

type recordingNotifier struct {
	rooms []string
}

func (n *recordingNotifier) RoomChanged(roomID string) { n.rooms = append(n.rooms, roomID) }

type memoryArchive struct {
	rounds map[string][]*game.GuessResult
}

func (a *memoryArchive) RoundCompleted(_ context.Context, res *game.GuessResult) error {
	a.rounds[res.RoomID] = append(a.rounds[res.RoomID], res)
	return nil
}

func (a *memoryArchive) Rounds(_ context.Context, roomID string) ([]*game.GuessResult, error) {
	return a.rounds[roomID], nil
}

func (a *memoryArchive) Rooms(context.Context) ([]string, error) {
	out := make([]string, 0, len(a.rounds))
	for id := range a.rounds {
		out = append(out, id)
	}
	return out, nil
}

type harness struct {
	t        *testing.T
	engine   *gin.Engine
	rm       *game.RoomManager
	sink     *recordingSink
	notifier *recordingNotifier
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:3000"
	}
	h := &harness{
		t:        t,
		engine:   gin.New(),
		rm:       game.NewRoomManager(),
		sink:     &recordingSink{},
		notifier: &recordingNotifier{},
	}
	srv := New(h.rm, cfg, metrics.New("test"))
	srv.AddSink(h.sink)
	srv.SetNotifier(h.notifier)
	h.engine.Use(srv.RequestLogger())
	srv.Mount(h.engine)
	return h
}

func (h *harness) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	h.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

// fullRoom creates a room with four players and returns its id and the
// player ids in join order.
func (h *harness) fullRoom() (string, []string) {
	rec, out := h.do("POST", "/room/create", map[string]string{"name": "A"})
	require.Equal(h.t, http.StatusCreated, rec.Code)
	roomID := out["roomId"].(string)
	ids := []string{out["playerId"].(string)}
	for _, n := range []string{"B", "C", "D"} {
		rec, out := h.do("POST", "/room/join", map[string]string{"roomId": roomID, "name": n})
		require.Equal(h.t, http.StatusOK, rec.Code)
		ids = append(ids, out["playerId"].(string))
	}
	return roomID, ids
}

func (h *harness) rolesOf(roomID string, ids []string) map[string]string {
	roles := map[string]string{}
	for _, id := range ids {
		rec, out := h.do("GET", fmt.Sprintf("/role/me/%s/%s", roomID, id), nil)
		require.Equal(h.t, http.StatusOK, rec.Code)
		require.Equal(h.t, id, out["playerId"])
		roles[out["role"].(string)] = id
	}
	return roles
}

func TestCreateAndJoin(t *testing.T) {
	h := newHarness(t, config.Config{})

	rec, out := h.do("POST", "/room/create", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "name is required", out["error"])

	roomID, ids := h.fullRoom()
	require.Len(t, ids, 4)

	rec, out = h.do("POST", "/room/join", map[string]string{"roomId": roomID, "name": "E"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Room full (4 players)", out["error"])

	rec, _ = h.do("POST", "/room/join", map[string]string{"roomId": "missing", "name": "E"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = h.do("GET", "/room/players/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "waiting", out["state"])
	players := out["players"].([]any)
	require.Len(t, players, 4)
	require.Equal(t, "A", players[0].(map[string]any)["name"])
	require.NotContains(t, rec.Body.String(), "role")

	require.Equal(t, []string{roomID, roomID, roomID, roomID}, h.notifier.rooms)
}

func TestFullRound(t *testing.T) {
	h := newHarness(t, config.Config{})
	roomID, ids := h.fullRoom()

	rec, _ := h.do("GET", fmt.Sprintf("/role/me/%s/%s", roomID, ids[0]), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out := h.do("POST", "/room/assign/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, roomID, out["roomId"])
	for _, id := range ids {
		require.NotContains(t, rec.Body.String(), id, "assign must not leak the mapping")
	}

	roles := h.rolesOf(roomID, ids)
	require.Len(t, roles, 4)

	rec, out = h.do("GET", "/result/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "assigned", out["state"])
	for _, r := range out["roles"].([]any) {
		require.Nil(t, r.(map[string]any)["role"], "roles stay secret until the guess")
	}

	rec, out = h.do("POST", "/guess/"+roomID, map[string]string{"mantriId": roles["Raja"], "guessedPlayerId": roles["Chor"]})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Only the Mantri can submit a guess", out["error"])

	rec, _ = h.do("POST", "/guess/"+roomID, map[string]string{"mantriId": roles["Mantri"]})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = h.do("POST", "/guess/"+roomID, map[string]string{"mantriId": roles["Mantri"], "guessedPlayerId": roles["Chor"]})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["correct"])
	deltas := out["pointsChange"].(map[string]any)
	require.EqualValues(t, 1000, deltas[roles["Raja"]])
	require.EqualValues(t, 800, deltas[roles["Mantri"]])
	require.EqualValues(t, 500, deltas[roles["Sipahi"]])
	require.EqualValues(t, 0, deltas[roles["Chor"]])
	require.Len(t, out["roles"].([]any), 4)
	require.Len(t, h.sink.rounds, 1)

	rec, _ = h.do("POST", "/guess/"+roomID, map[string]string{"mantriId": roles["Mantri"], "guessedPlayerId": roles["Chor"]})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, h.sink.rounds, 1)

	rec, out = h.do("GET", "/leaderboard/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := out["leaderboard"].([]any)
	require.Equal(t, roles["Raja"], board[0].(map[string]any)["playerId"])
	require.EqualValues(t, 0, board[3].(map[string]any)["score"])

	rec, out = h.do("GET", "/result/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, out["lastRound"])

	rec, _ = h.do("POST", "/room/reset/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out = h.do("GET", "/result/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, r := range out["roles"].([]any) {
		require.Nil(t, r.(map[string]any)["role"])
	}
	scores := out["cumulativeScores"].([]any)
	total := 0.0
	for _, s := range scores {
		total += s.(map[string]any)["cumulativeScore"].(float64)
	}
	require.EqualValues(t, 2300, total)

	rec, out = h.do("GET", "/room/history/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["rounds"].([]any), 1)
}

func TestWrongGuessAndSinkFailure(t *testing.T) {
	h := newHarness(t, config.Config{})
	h.sink.err = errors.New("disk full")
	roomID, ids := h.fullRoom()
	h.do("POST", "/room/assign/"+roomID, nil)
	roles := h.rolesOf(roomID, ids)

	rec, out := h.do("POST", "/guess/"+roomID, map[string]string{"mantriId": roles["Mantri"], "guessedPlayerId": roles["Sipahi"]})
	require.Equal(t, http.StatusOK, rec.Code, "sink errors never reach players")
	require.Equal(t, false, out["correct"])
	deltas := out["pointsChange"].(map[string]any)
	require.EqualValues(t, 0, deltas[roles["Mantri"]])
	require.EqualValues(t, 800, deltas[roles["Chor"]])
}

func TestAssignNeedsFourPlayers(t *testing.T) {
	h := newHarness(t, config.Config{})
	_, out := h.do("POST", "/room/create", map[string]string{"name": "A"})
	roomID := out["roomId"].(string)

	rec, out := h.do("POST", "/room/assign/"+roomID, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Need exactly 4 players to assign roles", out["error"])

	rec, _ = h.do("POST", "/room/assign/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomsAndAdminAuth(t *testing.T) {
	h := newHarness(t, config.Config{AdminUser: "host", AdminPass: "pw"})
	h.fullRoom()

	rec, _ := h.do("GET", "/rooms", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/rooms", nil)
	req.SetBasicAuth("host", "pw")
	rec = httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Rooms []game.RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Rooms, 1)
	require.Equal(t, 4, out.Rooms[0].Players)

	req = httptest.NewRequest("GET", "/metrics", nil)
	req.SetBasicAuth("host", "pw")
	rec = httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "test_players_joined_total 4")
}

func TestHistoryFallsBackToArchive(t *testing.T) {
	h := newHarness(t, config.Config{})
	rec, _ := h.do("GET", "/room/history/gone", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	arch := &memoryArchive{rounds: map[string][]*game.GuessResult{}}
	srv := New(h.rm, config.Config{PublicURL: "http://localhost:3000"}, metrics.New("archive"))
	srv.AddSink(arch)
	srv.SetArchive(arch)
	h.engine = gin.New()
	srv.Mount(h.engine)

	roomID, ids := h.fullRoom()
	h.do("POST", "/room/assign/"+roomID, nil)
	roles := h.rolesOf(roomID, ids)
	rec, _ = h.do("POST", "/guess/"+roomID, map[string]string{"mantriId": roles["Mantri"], "guessedPlayerId": roles["Chor"]})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, arch.rounds[roomID], 1)

	// the room disappears from memory but its rounds stay readable
	h.rm.Close()
	rec, out := h.do("GET", "/room/history/"+roomID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, roomID, out["roomId"])
	rounds := out["rounds"].([]any)
	require.Len(t, rounds, 1)
	round := rounds[0].(map[string]any)
	require.EqualValues(t, 1, round["round"])
	require.Equal(t, "Chor", round["rolesAssigned"].(map[string]any)[roles["Chor"]])
	require.Equal(t, roles["Mantri"], round["guess"].(map[string]any)["mantriId"])
	require.EqualValues(t, 800, round["pointsChange"].(map[string]any)[roles["Mantri"]])

	rec, _ = h.do("GET", "/room/history/never-existed", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = h.do("GET", "/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, out["rooms"])
	require.Equal(t, []any{roomID}, out["archived"])
}

func TestInvite(t *testing.T) {
	h := newHarness(t, config.Config{})
	roomID, _ := h.fullRoom()

	rec, _ := h.do("GET", "/room/invite/"+roomID+"?size=128", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec, _ = h.do("GET", "/room/invite/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		game.ErrValidation:           http.StatusBadRequest,
		game.ErrNotFound:             http.StatusNotFound,
		game.ErrInvalidState:         http.StatusBadRequest,
		game.ErrRoomFull:             http.StatusBadRequest,
		game.ErrPlayerCount:          http.StatusBadRequest,
		game.ErrForbidden:            http.StatusForbidden,
		errors.New("something else"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, StatusFor(err), err.Error())
	}
}
