package usbio

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// scriptedTransport records calls and serves canned results.
type scriptedTransport struct {
	writes     [][]byte
	reads      [][]byte
	readErrs   []error
	haltsClear []byte
	resets     int
	claims     int
	releases   int
}

func (s *scriptedTransport) BulkWrite(endpoint byte, data []byte, timeout time.Duration) (int, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.writes = append(s.writes, buf)
	return len(data), nil
}

func (s *scriptedTransport) BulkRead(endpoint byte, length int, timeout time.Duration) ([]byte, error) {
	if len(s.readErrs) > 0 {
		err := s.readErrs[0]
		s.readErrs = s.readErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(s.reads) == 0 {
		return nil, &TransportError{Op: "read", Endpoint: endpoint, Kind: FaultTimeout,
			Err: fmt.Errorf("no scripted data")}
	}
	data := s.reads[0]
	s.reads = s.reads[1:]
	return data, nil
}

func (s *scriptedTransport) ClearHalt(endpoint byte) error {
	s.haltsClear = append(s.haltsClear, endpoint)
	return nil
}

func (s *scriptedTransport) ClaimInterface(number int) error   { s.claims++; return nil }
func (s *scriptedTransport) ReleaseInterface(number int) error { s.releases++; return nil }
func (s *scriptedTransport) DetachKernelDriver(int) error      { return nil }
func (s *scriptedTransport) AttachKernelDriver(int) error      { return nil }
func (s *scriptedTransport) Reset() error                      { s.resets++; return nil }
func (s *scriptedTransport) Close() error                      { return nil }

func dialTestBridge(t *testing.T, dev Transport, username, password string) (*RemoteDevice, func()) {
	t.Helper()
	bridge := NewBridge(dev, username, password, zerolog.Nop())
	server := httptest.NewServer(bridge)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	remote, err := Dial(wsURL, username, password, false)
	if err != nil {
		server.Close()
		t.Fatalf("Dial failed: %v", err)
	}
	return remote, func() {
		remote.Close()
		server.Close()
	}
}

func TestBridge_BulkRoundTrip(t *testing.T) {
	dev := &scriptedTransport{reads: [][]byte{{0xAA, 0xBB, 0xCC}}}
	remote, cleanup := dialTestBridge(t, dev, "", "")
	defer cleanup()

	n, err := remote.BulkWrite(EndpointOut, []byte{1, 2, 3, 4}, time.Second)
	if err != nil {
		t.Fatalf("BulkWrite failed: %v", err)
	}
	if n != 4 {
		t.Errorf("wrote %d bytes, want 4", n)
	}
	if len(dev.writes) != 1 || !bytes.Equal(dev.writes[0], []byte{1, 2, 3, 4}) {
		t.Errorf("device saw writes %v, want [[1 2 3 4]]", dev.writes)
	}

	data, err := remote.BulkRead(EndpointIn, 3, time.Second)
	if err != nil {
		t.Fatalf("BulkRead failed: %v", err)
	}
	if !bytes.Equal(data, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("read % X, want AA BB CC", data)
	}
}

func TestBridge_FaultClassificationSurvives(t *testing.T) {
	dev := &scriptedTransport{
		readErrs: []error{&TransportError{Op: "read", Endpoint: EndpointIn,
			Kind: FaultStall, Err: fmt.Errorf("endpoint halted")}},
	}
	remote, cleanup := dialTestBridge(t, dev, "", "")
	defer cleanup()

	_, err := remote.BulkRead(EndpointIn, 13, time.Second)
	if err == nil {
		t.Fatalf("BulkRead succeeded, want stall fault")
	}
	if kind := Classify(err); kind != FaultStall {
		t.Errorf("Classify = %v, want %v", kind, FaultStall)
	}
}

func TestBridge_RecoveryOps(t *testing.T) {
	dev := &scriptedTransport{}
	remote, cleanup := dialTestBridge(t, dev, "", "")
	defer cleanup()

	if err := remote.ClearHalt(EndpointIn); err != nil {
		t.Fatalf("ClearHalt failed: %v", err)
	}
	if err := remote.ReleaseInterface(0); err != nil {
		t.Fatalf("ReleaseInterface failed: %v", err)
	}
	if err := remote.ClaimInterface(0); err != nil {
		t.Fatalf("ClaimInterface failed: %v", err)
	}
	if err := remote.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if len(dev.haltsClear) != 1 || dev.haltsClear[0] != EndpointIn {
		t.Errorf("halts cleared = %v, want [0x81]", dev.haltsClear)
	}
	if dev.releases != 1 || dev.claims != 1 || dev.resets != 1 {
		t.Errorf("release/claim/reset = %d/%d/%d, want 1/1/1",
			dev.releases, dev.claims, dev.resets)
	}
}

func TestBridge_RejectsBadCredentials(t *testing.T) {
	dev := &scriptedTransport{}
	bridge := NewBridge(dev, "operator", "secret", zerolog.Nop())
	server := httptest.NewServer(bridge)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	if _, err := Dial(wsURL, "operator", "wrong", false); err == nil {
		t.Errorf("Dial succeeded with bad password")
	}
	if _, err := Dial(wsURL, "", "", false); err == nil {
		t.Errorf("Dial succeeded with no credentials")
	}
}

func TestRemoteDevice_SilentBridgeIsBounded(t *testing.T) {
	// A bridge that accepts the link but never answers must not hang the
	// caller: the wait is bounded by the operation timeout plus slack.
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	oldSlack := bridgeResponseSlack
	bridgeResponseSlack = 100 * time.Millisecond
	defer func() { bridgeResponseSlack = oldSlack }()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	remote, err := Dial(wsURL, "", "", false)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer remote.Close()

	start := time.Now()
	_, err = remote.BulkRead(EndpointIn, 13, 50*time.Millisecond)
	elapsed := time.Since(start)
	if err == nil {
		t.Fatalf("BulkRead succeeded against a silent bridge")
	}
	if elapsed > 2*time.Second {
		t.Errorf("BulkRead returned after %v, want a bounded wait", elapsed)
	}
	if kind := Classify(err); kind != FaultGone {
		t.Errorf("Classify = %v, want %v", kind, FaultGone)
	}

	// The link is latched gone: later operations fail immediately.
	if _, err := remote.BulkWrite(EndpointOut, []byte{1}, time.Second); err == nil {
		t.Errorf("BulkWrite succeeded after the link went silent")
	}
}

func TestRemoteDevice_LinkLossIsGone(t *testing.T) {
	dev := &scriptedTransport{}
	remote, cleanup := dialTestBridge(t, dev, "", "")
	cleanup() // drop the link before using it

	_, err := remote.BulkWrite(EndpointOut, []byte{1}, time.Second)
	if err == nil {
		t.Fatalf("BulkWrite succeeded on closed link")
	}
	if kind := Classify(err); kind != FaultGone {
		t.Errorf("Classify = %v, want %v", kind, FaultGone)
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Errorf("error type %T, want TransportError", err)
	}
}
