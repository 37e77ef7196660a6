package utils

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// TempIDPrefix marks client-fabricated message ids that have not been
// confirmed by the store yet.
const TempIDPrefix = "tmp-"

// NewChatID returns a new conversation id.
func NewChatID() string {
	return uuid.NewString()
}

// NewMessageID returns a new lexicographically sortable message id.
func NewMessageID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
}

// NewTempMessageID returns a temporary id for an optimistic message.
func NewTempMessageID() string {
	return TempIDPrefix + NewMessageID()
}

// IsTempMessageID reports whether id denotes an unconfirmed optimistic
// message.
func IsTempMessageID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
