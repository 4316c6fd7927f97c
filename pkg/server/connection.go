package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/log"
	"github.com/mopad/mopad/pkg/metrics"
	"github.com/mopad/mopad/pkg/protocol"
	"github.com/mopad/mopad/pkg/service"
	"github.com/mopad/mopad/pkg/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The frontend may be served from a different origin during
	// development; authentication happens in-band, not via cookies, so
	// cross-origin upgrades carry no ambient authority.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connection runs one client through the connection lifecycle: upgrade,
// authenticate, sync a snapshot, then pump commands in and updates out
// until either side closes.
//
// The socket has exactly one reader (readLoop) and one writer; the auth
// reply and snapshot are written before the forward loop starts, so
// writes never interleave.
type connection struct {
	ws      *websocket.Conn
	service *service.Service
	logger  zerolog.Logger
}

func (s *Server) handleTalks(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	c := &connection{
		ws:      ws,
		service: s.service,
		logger:  log.WithConnection(uuid.NewString()),
	}
	c.run(s.hub)
}

func (c *connection) run(broadcast *hub.Hub) {
	defer c.ws.Close()

	session, ok := c.authenticate()
	if !ok {
		return
	}
	c.logger.Debug().Uint64("user_id", uint64(session.UserID)).Msg("authenticated")

	// Subscribe before taking the snapshot: anything committed after the
	// snapshot arrives through the subscription, so nothing is missed. An
	// event may show up in both; clients apply updates idempotently.
	sub := broadcast.Subscribe()
	defer sub.Close()

	for _, update := range c.service.Snapshot() {
		if err := c.writeJSON(update); err != nil {
			return
		}
	}

	done := make(chan struct{})
	go c.readLoop(session, done)
	c.writeLoop(sub, done)
}

// authenticate reads the first message and resolves it to a session. The
// reply is either a success carrying the user's ID, capabilities, and
// token, or an error naming the reason, after which the connection dies.
func (c *connection) authenticate() (*service.Session, bool) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, false
	}

	creds, err := protocol.DecodeCredentials(data)
	if err != nil {
		c.logger.Debug().Err(err).Msg("rejecting credentials")
		_ = c.writeJSON(protocol.AuthError("malformed credentials"))
		return nil, false
	}

	var session *service.Session
	switch creds.Type {
	case protocol.CredentialRegister:
		mode := types.AttendanceOnSite
		if creds.AttendanceMode != nil {
			mode = *creds.AttendanceMode
		}
		session, err = c.service.Register(creds.Name, creds.Team, mode, creds.Password)
	case protocol.CredentialLogin:
		session, err = c.service.Login(creds.Name, creds.Team, creds.Password)
	case protocol.CredentialRelogin:
		session, err = c.service.Relogin(creds.Token)
	}
	if err != nil {
		_ = c.writeJSON(protocol.AuthError(authErrorReason(err)))
		return nil, false
	}

	if err := c.writeJSON(protocol.AuthSuccess(session.UserID, session.Capabilities, session.Token)); err != nil {
		return nil, false
	}
	return session, true
}

// authErrorReason maps domain rejections to stable wire reasons.
// Infrastructure errors are not echoed to the client.
func authErrorReason(err error) string {
	switch {
	case errors.Is(err, service.ErrUnknownTeam):
		return "unknown team"
	case errors.Is(err, service.ErrAlreadyRegistered):
		return "already registered"
	case errors.Is(err, service.ErrUnknownUser):
		return "unknown user"
	case errors.Is(err, service.ErrWrongPassword):
		return "wrong password"
	case errors.Is(err, service.ErrUnknownToken):
		return "unknown token"
	case errors.Is(err, service.ErrUnknownUserFromToken):
		return "unknown user from token"
	default:
		return "internal error"
	}
}

// readLoop receives and applies commands until the socket closes or the
// client violates the protocol. Malformed JSON is a violation and ends
// the connection; a well-formed message with an unknown type is ignored
// for forward compatibility.
func (c *connection) readLoop(session *service.Session, done chan<- struct{}) {
	defer close(done)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		cmd, known, err := protocol.DecodeCommand(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("protocol violation, closing connection")
			return
		}
		if !known {
			c.logger.Debug().Str("command", string(cmd.Type)).Msg("ignoring unknown command type")
			continue
		}

		if err := c.service.Apply(session, cmd); err != nil {
			c.logger.Error().Err(err).Str("command", string(cmd.Type)).Msg("command failed")
		}
	}
}

// writeLoop forwards hub events to the socket. It ends when the reader
// ends, the socket write fails, or the subscription is closed; if the hub
// closed it for lagging, the client reconnects and resyncs from a fresh
// snapshot.
func (c *connection) writeLoop(sub *hub.Subscription, done <-chan struct{}) {
	for {
		select {
		case update, ok := <-sub.Events():
			if !ok {
				if sub.Lagged() {
					c.logger.Warn().Msg("connection too slow for broadcast stream, disconnecting")
				}
				return
			}
			if err := c.writeJSON(update); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (c *connection) writeJSON(message any) error {
	data, err := protocol.Encode(message)
	if err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
