// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package usbio

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RemoteDevice is a Transport backed by a bridge on another host. Every
// operation is one request/response exchange over the WebSocket; a link
// failure classifies as FaultGone since the device is unreachable.
type RemoteDevice struct {
	mu   sync.Mutex
	conn *websocket.Conn
	gone bool
}

// Dial connects to a bridge. username/password enable HTTP Basic auth;
// insecure skips TLS certificate verification for wss URLs.
func Dial(bridgeURL, username, password string, insecure bool) (*RemoteDevice, error) {
	u, err := url.Parse(bridgeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme %q (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, bridgeURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("bridge connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("bridge connection failed: %w", err)
	}

	return &RemoteDevice{conn: conn}, nil
}

// bridgeResponseSlack pads the client-side deadline beyond the operation
// timeout the bridge enforces on the device, so the bridge's own timeout
// answer normally arrives first and keeps its fault classification.
var bridgeResponseSlack = 5 * time.Second

// roundTrip sends one request frame and waits for its response. The bridge
// answers strictly in order, so a plain lock is enough for correlation. The
// wait is bounded by the operation timeout plus slack; a bridge that stops
// answering classifies as FaultGone.
func (r *RemoteDevice) roundTrip(req bridgeRequest) (bridgeResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gone {
		return bridgeResponse{}, &TransportError{Op: req.Op.String(), Endpoint: req.Endpoint,
			Kind: FaultGone, Err: fmt.Errorf("bridge connection closed")}
	}

	wait := time.Duration(req.TimeoutMs) * time.Millisecond
	if wait <= 0 {
		wait = DefaultTimeout
	}
	wait += bridgeResponseSlack
	deadline := time.Now().Add(wait)

	frame, err := encodeRequest(req)
	if err != nil {
		return bridgeResponse{}, &TransportError{Op: req.Op.String(), Kind: FaultOther, Err: err}
	}
	if err := r.conn.SetWriteDeadline(deadline); err != nil {
		r.gone = true
		return bridgeResponse{}, &TransportError{Op: req.Op.String(), Endpoint: req.Endpoint,
			Kind: FaultGone, Err: err}
	}
	if err := r.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		r.gone = true
		return bridgeResponse{}, &TransportError{Op: req.Op.String(), Endpoint: req.Endpoint,
			Kind: FaultGone, Err: err}
	}

	if err := r.conn.SetReadDeadline(deadline); err != nil {
		r.gone = true
		return bridgeResponse{}, &TransportError{Op: req.Op.String(), Endpoint: req.Endpoint,
			Kind: FaultGone, Err: err}
	}
	for {
		messageType, data, err := r.conn.ReadMessage()
		if err != nil {
			// A missed deadline can cut the stream mid-frame, so the link is
			// unusable either way.
			r.gone = true
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				err = fmt.Errorf("no bridge response within %s: %w", wait, err)
			}
			return bridgeResponse{}, &TransportError{Op: req.Op.String(), Endpoint: req.Endpoint,
				Kind: FaultGone, Err: err}
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		resp, err := decodeResponse(data)
		if err != nil {
			return bridgeResponse{}, &TransportError{Op: req.Op.String(), Kind: FaultOther, Err: err}
		}
		return resp, nil
	}
}

// do runs one operation and rehydrates any remote fault.
func (r *RemoteDevice) do(req bridgeRequest) (bridgeResponse, error) {
	resp, err := r.roundTrip(req)
	if err != nil {
		return bridgeResponse{}, err
	}
	if resp.Err != "" {
		return resp, &TransportError{
			Op:       req.Op.String(),
			Endpoint: req.Endpoint,
			Kind:     resp.Fault,
			Err:      fmt.Errorf("%s", resp.Err),
		}
	}
	return resp, nil
}

// BulkWrite implements Transport.
func (r *RemoteDevice) BulkWrite(endpoint byte, data []byte, timeout time.Duration) (int, error) {
	resp, err := r.do(bridgeRequest{
		Op:        opBulkWrite,
		Endpoint:  endpoint,
		Data:      data,
		TimeoutMs: timeout.Milliseconds(),
	})
	if err != nil {
		return 0, err
	}
	return resp.N, nil
}

// BulkRead implements Transport.
func (r *RemoteDevice) BulkRead(endpoint byte, length int, timeout time.Duration) ([]byte, error) {
	resp, err := r.do(bridgeRequest{
		Op:        opBulkRead,
		Endpoint:  endpoint,
		Length:    length,
		TimeoutMs: timeout.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ClearHalt implements Transport.
func (r *RemoteDevice) ClearHalt(endpoint byte) error {
	_, err := r.do(bridgeRequest{Op: opClearHalt, Endpoint: endpoint})
	return err
}

// ClaimInterface implements Transport.
func (r *RemoteDevice) ClaimInterface(number int) error {
	_, err := r.do(bridgeRequest{Op: opClaimInterface, Interface: number})
	return err
}

// ReleaseInterface implements Transport.
func (r *RemoteDevice) ReleaseInterface(number int) error {
	_, err := r.do(bridgeRequest{Op: opReleaseInterface, Interface: number})
	return err
}

// DetachKernelDriver implements Transport.
func (r *RemoteDevice) DetachKernelDriver(number int) error {
	_, err := r.do(bridgeRequest{Op: opDetachKernelDriver, Interface: number})
	return err
}

// AttachKernelDriver implements Transport.
func (r *RemoteDevice) AttachKernelDriver(number int) error {
	_, err := r.do(bridgeRequest{Op: opAttachKernelDriver, Interface: number})
	return err
}

// Reset implements Transport.
func (r *RemoteDevice) Reset() error {
	_, err := r.do(bridgeRequest{Op: opReset})
	return err
}

// Close implements Transport. It closes the bridge link, not the remote
// device; the bridge releases the device when it shuts down.
func (r *RemoteDevice) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gone = true
	return r.conn.Close()
}
