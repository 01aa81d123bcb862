package dto

import (
	"strconv"
	"time"
)

// Session event types.
const (
	SessionEventSignedIn  = "signed_in"
	SessionEventSignedOut = "signed_out"
)

// SessionEvent notifies subscribers that an account's session changed.
type SessionEvent struct {
	Type       string    `json:"type"`
	LocalID    string    `json:"localId"`
	SessionID  string    `json:"sessionId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// LocalID renders an account id the way the identity API exposes it.
func LocalID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
