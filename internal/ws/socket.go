package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/kiliankoe/rajamantri/internal/game"
	"github.com/rs/zerolog/log"
)

const namespace = "/"

type ConnCtx struct {
	RoomID string
}

// Server pushes public room updates to every socket watching a room. Secret
// roles only ever travel back on the acknowledgement of role:me.
type Server struct {
	RM *game.RoomManager
	io *socketio.Server
}

var _ game.RoundSink = (*Server)(nil)

func New(rm *game.RoomManager) *Server {
	return &Server{RM: rm}
}

// Mount attaches Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect(namespace, func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// room:watch subscribes the socket to public updates of one room
	io.OnEvent(namespace, "room:watch", func(s socketio.Conn, payload struct {
		RoomID string `json:"roomId"`
	}) map[string]any {
		ack, err := srv.watch(payload.RoomID)
		if err != nil {
			return srv.err(s, err)
		}
		s.SetContext(&ConnCtx{RoomID: payload.RoomID})
		s.Join(payload.RoomID)
		log.Info().Str("sid", s.ID()).Str("roomId", payload.RoomID).Msg("room:watch")
		return ack
	})

	// role:me answers only the caller, never the room
	io.OnEvent(namespace, "role:me", func(s socketio.Conn, payload struct {
		RoomID   string `json:"roomId"`
		PlayerID string `json:"playerId"`
	}) map[string]any {
		ack, err := srv.roleOf(payload.RoomID, payload.PlayerID)
		if err != nil {
			return srv.err(s, err)
		}
		return ack
	})

	io.OnError(namespace, func(s socketio.Conn, e error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		log.Error().Str("sid", sid).Err(e).Msg("socket error")
	})
	io.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go func() {
		if err := io.Serve(); err != nil {
			log.Error().Err(err).Msg("socket.io serve")
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	// Basic CORS preflight for Socket.IO POST
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

// RoomChanged broadcasts the public view of a room: players and state.
func (srv *Server) RoomChanged(roomID string) {
	if srv.io == nil {
		return
	}
	list, err := srv.RM.ListPlayers(roomID)
	if err != nil {
		return
	}
	srv.io.BroadcastToRoom(namespace, roomID, "room:state", list)
}

// watch builds the room:watch acknowledgement. It carries the same public
// view as room:state.
func (srv *Server) watch(roomID string) (map[string]any, error) {
	list, err := srv.RM.ListPlayers(roomID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"room": list}, nil
}

// roleOf builds the role:me acknowledgement for a single player.
func (srv *Server) roleOf(roomID, playerID string) (map[string]any, error) {
	view, err := srv.RM.MyRole(roomID, playerID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"playerId": view.PlayerID, "name": view.Name, "role": view.Role}, nil
}

// RoundCompleted reveals a resolved round to everyone watching the room.
func (srv *Server) RoundCompleted(_ context.Context, res *game.GuessResult) error {
	if srv.io == nil {
		return nil
	}
	if !srv.io.BroadcastToRoom(namespace, res.RoomID, "round:result", res) {
		return errors.New("broadcast round:result failed")
	}
	srv.RoomChanged(res.RoomID)
	return nil
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	code := "bad_request"
	if errors.Is(err, game.ErrNotFound) {
		code = "not_found"
	}
	s.Emit("error", map[string]any{"code": code, "message": err.Error()})
	return map[string]any{"error": err.Error()}
}
