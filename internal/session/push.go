package session

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ws "github.com/doctorquest/quiz/pkg/http/ws"
)

// Pusher is the part of the WebSocket hub a tracker reports to.
type Pusher interface {
	SendToSession(sessionID uuid.UUID, msg ws.Message) error
	BindUser(sessionID, userID uuid.UUID)
	UnbindUser(sessionID uuid.UUID)
	DropSession(sessionID uuid.UUID)
}

// hubObserver keeps the hub's user binding in step with the session's auth
// state and pushes every change to the session's socket.
func hubObserver(hub Pusher, sessionID uuid.UUID, logger zerolog.Logger) Observer {
	return func(c Change) {
		if c.Kind == ChangeAuth {
			payload := ws.AuthStatePayload{Event: string(c.Event)}
			if c.View.User != nil {
				hub.BindUser(sessionID, c.View.User.ID)
				payload.UserID = c.View.User.ID.String()
				payload.Email = c.View.User.Email
			} else {
				hub.UnbindUser(sessionID)
			}
			send(hub, sessionID, ws.TypeAuthState, payload, logger)
		}
		send(hub, sessionID, ws.TypeSessionState, c.View, logger)
	}
}

func send(hub Pusher, sessionID uuid.UUID, msgType string, payload interface{}, logger zerolog.Logger) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		logger.Warn().Err(err).Str("type", msgType).Msg("failed to marshal WS payload")
		return
	}
	if err := hub.SendToSession(sessionID, msg); err != nil && !errors.Is(err, ws.ErrConnectionNotFound) {
		logger.Debug().Err(err).Str("type", msgType).Msg("push failed")
	}
}
