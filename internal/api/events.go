// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ManuGH/sigcapt/internal/bus"
	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
)

// MessageState is sent once when a stream opens.
const MessageState = "state"

// WSMessage frames every event stream message. Type is the notification
// kind or MessageState.
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// handleEvents upgrades to a WebSocket and forwards every controller
// notification until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "events")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logger.Warn().Err(err).Str(log.FieldRemoteAddr, r.RemoteAddr).Msg("event stream upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(s.streams)
	defer cancel()

	sub, err := s.ctl.Bus().Subscribe(ctx, bus.AllTopics)
	if err != nil {
		logger.Error().Err(err).Msg("event stream subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(defaultWriteWait))
		return
	}
	defer func() { _ = sub.Close() }()

	logger.Info().Str(log.FieldRemoteAddr, r.RemoteAddr).Msg("event stream opened")
	defer logger.Info().Str(log.FieldRemoteAddr, r.RemoteAddr).Msg("event stream closed")

	// Clients send nothing; reading surfaces close frames and pongs.
	readDeadline := 2 * s.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.send(conn, WSMessage{Type: MessageState, Payload: s.snapshot()}); err != nil {
		return
	}

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.streams.Err() != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(defaultWriteWait))
			}
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			ev, isEvent := msg.(sigcapt.Event)
			if !isEvent {
				continue
			}
			if err := s.send(conn, WSMessage{Type: string(ev.Kind), Payload: ev}); err != nil {
				logger.Debug().Err(err).Msg("event stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(defaultWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msg WSMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
	return conn.WriteJSON(msg)
}
