package walletdb

import (
	"fmt"
	"runtime"
)

// SecureBuffer holds bytes read from a database. Wipe zeroes them, and a
// buffer that is garbage collected without being wiped is wiped then.
type SecureBuffer struct {
	b []byte
}

// NewSecureBuffer takes ownership of b.
func NewSecureBuffer(b []byte) *SecureBuffer {
	s := &SecureBuffer{b: b}
	runtime.SetFinalizer(s, (*SecureBuffer).Wipe)

	return s
}

// Bytes returns the buffer content. The slice is zeroed by Wipe, copy it to
// keep it longer.
func (s *SecureBuffer) Bytes() []byte {
	if s == nil {
		return nil
	}

	return s.b
}

// Len returns the number of bytes held.
func (s *SecureBuffer) Len() int {
	if s == nil {
		return 0
	}

	return len(s.b)
}

// String never prints the content.
func (s *SecureBuffer) String() string {
	return fmt.Sprintf("SecureBuffer(%d bytes)", s.Len())
}

// Wipe zeroes the buffer and drops it.
func (s *SecureBuffer) Wipe() {
	if s == nil {
		return
	}

	clear(s.b)
	s.b = nil
}
