// Package identity generates caller identifiers for audit records.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRequestID returns a unique id for one tool invocation.
func NewRequestID() string {
	return uuid.NewString()
}

// NewSessionID returns a fallback session id for transports that carry no
// session identity of their own.
func NewSessionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess-%x", time.Now().UnixNano())
	}
	return "sess-" + hex.EncodeToString(b)
}
