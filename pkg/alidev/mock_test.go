// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package alidev

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/windin101/alilcd/pkg/aliproto"
	"github.com/windin101/alilcd/pkg/usbio"
)

var errScripted = errors.New("scripted failure")

// fakeTransport is a scripted usbio.Transport. Writes consume writeErrs in
// order (an exhausted queue means success); reads consume reads in order.
// With echoCSW set, an exhausted read queue behaves like a well-behaved
// device: 13-byte reads yield a good CSW echoing the last CBW tag. Every
// call is recorded; a mutex makes the fake safe for watchdog tests.
type fakeTransport struct {
	mu sync.Mutex

	writeErrs []error
	reads     []readResult
	echoCSW   bool

	writes     [][]byte
	readLens   []int
	clearHalts []byte
	claims     int
	claimErrs  []error
	releases   int
	detaches   int
	attaches   int
	resets     int
	closed     bool

	lastTag uint32
}

type readResult struct {
	data []byte
	err  error
}

func (f *fakeTransport) BulkWrite(endpoint byte, data []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	f.writes = append(f.writes, buf)

	if len(data) == aliproto.CBWSize &&
		binary.LittleEndian.Uint32(data[0:4]) == aliproto.CBWSignature {
		f.lastTag = binary.LittleEndian.Uint32(data[4:8])
	}

	if len(f.writeErrs) > 0 {
		err := f.writeErrs[0]
		f.writeErrs = f.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (f *fakeTransport) BulkRead(endpoint byte, length int, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readLens = append(f.readLens, length)

	if len(f.reads) > 0 {
		r := f.reads[0]
		f.reads = f.reads[1:]
		return r.data, r.err
	}
	if f.echoCSW && length == aliproto.CSWSize {
		return aliproto.EncodeCSW(aliproto.CSW{Tag: f.lastTag}), nil
	}
	return make([]byte, length), nil
}

func (f *fakeTransport) ClearHalt(endpoint byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearHalts = append(f.clearHalts, endpoint)
	return nil
}

func (f *fakeTransport) ClaimInterface(number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	if len(f.claimErrs) > 0 {
		err := f.claimErrs[0]
		f.claimErrs = f.claimErrs[1:]
		return err
	}
	return nil
}

func (f *fakeTransport) ReleaseInterface(number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

func (f *fakeTransport) DetachKernelDriver(number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detaches++
	return nil
}

func (f *fakeTransport) AttachKernelDriver(number int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attaches++
	return nil
}

func (f *fakeTransport) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// faultErr builds a classified transport error of the given kind.
func faultErr(kind usbio.FaultKind) error {
	return &usbio.TransportError{Op: "test", Kind: kind, Err: errScripted}
}

// goodCSW returns a wire-encoded success CSW carrying the given tag.
func goodCSW(tag uint32) readResult {
	return readResult{data: aliproto.EncodeCSW(aliproto.CSW{Tag: tag})}
}

// testTimings returns zero-delay timings so tests run without sleeping.
func testTimings() Timings {
	t := DefaultTimings()
	t.DelayAnimation = 0
	t.DelayConnecting = 0
	t.DelayConnected = 0
	return t
}

// newTestSession wires a session around the fake with instant pacing and no
// watchdog.
func newTestSession(f *fakeTransport, opts ...Option) *Session {
	base := []Option{
		WithTimings(testTimings()),
		WithWatchdog(false),
		WithChunkPacing(0),
		WithRetryPolicy(RetryPolicy{MaxRetries: 3, BaseDelay: 0}),
	}
	s := NewSession(f, append(base, opts...)...)
	s.retrier.sleep = func(time.Duration) {}
	return s
}
