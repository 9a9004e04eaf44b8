// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 windin101

package aliproto

import "fmt"

// MalformedFrameError reports a frame that failed envelope validation. It is
// fatal to the read that produced it; retrying the transfer will not fix a
// framing bug, so callers must not retry on it.
type MalformedFrameError struct {
	Reason    string
	Length    int
	Signature uint32
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s (length=%d, signature=0x%08X)",
		e.Reason, e.Length, e.Signature)
}

// EncodeError reports CBW fields that cannot be represented on the wire.
type EncodeError struct {
	Reason string
}

func (e *EncodeError) Error() string {
	return "cannot encode CBW: " + e.Reason
}
