package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/rajamantri/internal/config"
	"github.com/kiliankoe/rajamantri/internal/game"
	"github.com/kiliankoe/rajamantri/internal/invite"
	"github.com/kiliankoe/rajamantri/internal/metrics"
	"github.com/rs/zerolog/log"
)

const sinkTimeout = 5 * time.Second

// Notifier is told whenever the public view of a room changed.
type Notifier interface {
	RoomChanged(roomID string)
}

// Archive answers for rounds of rooms the manager no longer holds.
type Archive interface {
	Rounds(ctx context.Context, roomID string) ([]*game.GuessResult, error)
	Rooms(ctx context.Context) ([]string, error)
}

type Server struct {
	RM       *game.RoomManager
	cfg      config.Config
	metrics  *metrics.Metrics
	notifier Notifier
	archive  Archive
	sinks    []game.RoundSink
}

func New(rm *game.RoomManager, cfg config.Config, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New("rajamantri")
	}
	return &Server{RM: rm, cfg: cfg, metrics: m}
}

func (s *Server) SetNotifier(n Notifier) { s.notifier = n }

func (s *Server) SetArchive(a Archive) { s.archive = a }

// AddSink registers a receiver for resolved rounds.
func (s *Server) AddSink(sink game.RoundSink) { s.sinks = append(s.sinks, sink) }

// Mount registers all game routes plus health and metrics on r.
func (s *Server) Mount(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	r.POST("/room/create", s.createRoom)
	r.POST("/room/join", s.joinRoom)
	r.GET("/room/players/:roomId", s.listPlayers)
	r.POST("/room/assign/:roomId", s.assignRoles)
	r.GET("/role/me/:roomId/:playerId", s.myRole)
	r.POST("/guess/:roomId", s.submitGuess)
	r.GET("/result/:roomId", s.result)
	r.GET("/leaderboard/:roomId", s.leaderboard)
	r.POST("/room/reset/:roomId", s.resetRoom)
	r.GET("/room/history/:roomId", s.history)
	r.GET("/room/invite/:roomId", s.invite)

	admin := r.Group("/")
	if s.cfg.AdminEnabled() {
		admin.Use(gin.BasicAuth(gin.Accounts{s.cfg.AdminUser: s.cfg.AdminPass}))
	}
	admin.GET("/rooms", s.listRooms)
	admin.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// RequestLogger logs every request through zerolog and records its latency.
func (s *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		status := c.Writer.Status()
		dur := time.Since(start)
		if route := c.FullPath(); route != "" && route != "/socket.io/*any" {
			s.metrics.ObserveRequest(route, strconv.Itoa(status), dur)
		}
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		log.Info().Str("method", c.Request.Method).Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	}
}

type createRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

type joinRoomRequest struct {
	RoomID string `json:"roomId" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

type guessRequest struct {
	MantriID        string `json:"mantriId" binding:"required"`
	GuessedPlayerID string `json:"guessedPlayerId" binding:"required"`
}

func (s *Server) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	res, err := s.RM.CreateRoom(req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.PlayersJoined.Inc()
	s.metrics.SetRooms(len(s.RM.ListRooms()))
	log.Info().Str("roomId", res.RoomID).Str("playerId", res.PlayerID).Msg("room created")
	s.roomChanged(res.RoomID)
	c.JSON(http.StatusCreated, res)
}

func (s *Server) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId and name are required"})
		return
	}
	res, err := s.RM.JoinRoom(req.RoomID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.PlayersJoined.Inc()
	log.Info().Str("roomId", res.RoomID).Str("playerId", res.PlayerID).Int("players", res.Players).Msg("player joined")
	s.roomChanged(res.RoomID)
	c.JSON(http.StatusOK, res)
}

func (s *Server) listPlayers(c *gin.Context) {
	res, err := s.RM.ListPlayers(c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) assignRoles(c *gin.Context) {
	res, err := s.RM.AssignRoles(c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.RolesAssigned.Inc()
	log.Info().Str("roomId", res.RoomID).Msg("roles assigned")
	s.roomChanged(res.RoomID)
	c.JSON(http.StatusOK, res)
}

func (s *Server) myRole(c *gin.Context) {
	res, err := s.RM.MyRole(c.Param("roomId"), c.Param("playerId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) submitGuess(c *gin.Context) {
	var req guessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mantriId and guessedPlayerId are required"})
		return
	}
	res, err := s.RM.SubmitGuess(c.Param("roomId"), req.MantriID, req.GuessedPlayerID)
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.ObserveRound(res.Correct)
	log.Info().Str("roomId", res.RoomID).Int("round", res.Round).Bool("correct", res.Correct).Msg("round resolved")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), sinkTimeout)
	defer cancel()
	for _, sink := range s.sinks {
		if err := sink.RoundCompleted(ctx, res); err != nil {
			log.Error().Err(err).Str("roomId", res.RoomID).Int("round", res.Round).Msg("round sink failed")
		}
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) result(c *gin.Context) {
	res, err := s.RM.Result(c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) leaderboard(c *gin.Context) {
	res, err := s.RM.Leaderboard(c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) resetRoom(c *gin.Context) {
	res, err := s.RM.ResetRoom(c.Param("roomId"))
	if err != nil {
		writeError(c, err)
		return
	}
	s.metrics.Resets.Inc()
	log.Info().Str("roomId", res.RoomID).Msg("room reset")
	s.roomChanged(res.RoomID)
	c.JSON(http.StatusOK, res)
}

func (s *Server) listRooms(c *gin.Context) {
	rooms := s.RM.ListRooms()
	s.metrics.SetRooms(len(rooms))
	out := gin.H{"rooms": rooms}
	if s.archive != nil {
		archived, err := s.archive.Rooms(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("archived rooms")
		} else {
			out["archived"] = archived
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) history(c *gin.Context) {
	roomID := c.Param("roomId")
	rounds, err := s.RM.History(roomID)
	if errors.Is(err, game.ErrNotFound) && s.archive != nil {
		rounds, err = s.archivedHistory(c.Request.Context(), roomID, err)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "rounds": rounds})
}

// archivedHistory reads a room's rounds back from the archive. notFound is
// returned unchanged when the archive has nothing for the room either.
func (s *Server) archivedHistory(ctx context.Context, roomID string, notFound error) ([]game.RoundRecord, error) {
	archived, err := s.archive.Rounds(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("archived history")
		return nil, notFound
	}
	if len(archived) == 0 {
		return nil, notFound
	}
	rounds := make([]game.RoundRecord, 0, len(archived))
	for _, res := range archived {
		rounds = append(rounds, res.Record())
	}
	return rounds, nil
}

func (s *Server) invite(c *gin.Context) {
	roomID := c.Param("roomId")
	if _, err := s.RM.ListPlayers(roomID); err != nil {
		writeError(c, err)
		return
	}
	size, _ := strconv.Atoi(c.Query("size"))
	png, err := invite.PNG(invite.Link(s.cfg.PublicURL, roomID), size)
	if err != nil {
		log.Error().Err(err).Str("roomId", roomID).Msg("invite qr")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not render invite"})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) roomChanged(roomID string) {
	if s.notifier != nil {
		s.notifier.RoomChanged(roomID)
	}
}

// StatusFor maps a manager error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidState), errors.Is(err, game.ErrRoomFull), errors.Is(err, game.ErrPlayerCount):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unexpected error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
