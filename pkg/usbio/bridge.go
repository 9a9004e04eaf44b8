// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package usbio

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Bridge serves a locally claimed Transport to remote clients over
// WebSocket. One client at a time: USB BOT transactions are stateful, so
// concurrent clients would corrupt command/response correlation. Subsequent
// connections are rejected until the active one ends.
type Bridge struct {
	dev      Transport
	log      zerolog.Logger
	username string
	password string
	upgrader websocket.Upgrader
	active   chan struct{}
}

// NewBridge wraps a claimed device. If username is non-empty, clients must
// present matching HTTP Basic credentials.
func NewBridge(dev Transport, username, password string, log zerolog.Logger) *Bridge {
	b := &Bridge{
		dev:      dev,
		log:      log,
		username: username,
		password: password,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
		},
		active: make(chan struct{}, 1),
	}
	b.active <- struct{}{}
	return b
}

// ServeHTTP implements http.Handler.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.username != "" {
		user, pass, ok := r.BasicAuth()
		if !ok || user != b.username || pass != b.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="alilcd bridge"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	select {
	case <-b.active:
	default:
		http.Error(w, "device in use by another client", http.StatusConflict)
		return
	}
	defer func() { b.active <- struct{}{} }()

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("bridge upgrade failed")
		return
	}
	defer conn.Close()

	b.log.Info().Str("client", r.RemoteAddr).Msg("bridge client connected")
	b.serve(conn)
	b.log.Info().Str("client", r.RemoteAddr).Msg("bridge client disconnected")
}

// serve processes request frames until the connection drops.
func (b *Bridge) serve(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		req, err := decodeRequest(data)
		if err != nil {
			b.log.Warn().Err(err).Msg("bad bridge frame")
			return
		}

		resp := b.dispatch(req)
		frame, err := encodeResponse(resp)
		if err != nil {
			b.log.Error().Err(err).Msg("encode bridge response")
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}

// dispatch runs one operation against the local device and folds any fault
// into the response so the client can re-classify it.
func (b *Bridge) dispatch(req bridgeRequest) bridgeResponse {
	var (
		resp bridgeResponse
		err  error
	)

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch req.Op {
	case opBulkWrite:
		resp.N, err = b.dev.BulkWrite(req.Endpoint, req.Data, timeout)
	case opBulkRead:
		resp.Data, err = b.dev.BulkRead(req.Endpoint, req.Length, timeout)
		resp.N = len(resp.Data)
	case opClearHalt:
		err = b.dev.ClearHalt(req.Endpoint)
	case opClaimInterface:
		err = b.dev.ClaimInterface(req.Interface)
	case opReleaseInterface:
		err = b.dev.ReleaseInterface(req.Interface)
	case opDetachKernelDriver:
		err = b.dev.DetachKernelDriver(req.Interface)
	case opAttachKernelDriver:
		err = b.dev.AttachKernelDriver(req.Interface)
	case opReset:
		err = b.dev.Reset()
	}

	if err != nil {
		resp.Fault = Classify(err)
		resp.Err = err.Error()
		b.log.Debug().Str("op", req.Op.String()).Str("fault", resp.Fault.String()).
			Err(err).Msg("bridge op failed")
	}
	return resp
}
