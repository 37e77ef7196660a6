package models

// Conversation is a single persistent thread between exactly two users.
// UserA always holds the lexicographically lower participant id so that
// one unordered pair maps to at most one row.
type Conversation struct {
	ID    string `json:"id"`
	UserA string `json:"user_a"`
	UserB string `json:"user_b"`
	// AdID is the listing this conversation originated from, if any.
	AdID string `json:"ad_id,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - bumped on every new message
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// CanonicalPair orders two participant ids so the lower one comes first.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// HasParticipant reports whether id is one of the two participants.
func (c Conversation) HasParticipant(id string) bool {
	return id != "" && (c.UserA == id || c.UserB == id)
}

// Counterpart returns the other participant relative to viewer, or empty
// when viewer is not a participant.
func (c Conversation) Counterpart(viewer string) string {
	switch viewer {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	}
	return ""
}
