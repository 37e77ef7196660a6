package models

import (
	"bytes"
	"encoding/json"
)

// ContentKind discriminates message content variants.
type ContentKind string

const (
	ContentText        ContentKind = "text"
	ContentAdInquiry   ContentKind = "ad_inquiry"
	ContentRideBooking ContentKind = "ride_booking"
)

// Content is a tagged message payload: plain text or a structured
// attachment. Structured variants carry explicit fields instead of
// free-form JSON embedded in the text.
type Content struct {
	Kind ContentKind `json:"kind"`
	Text string      `json:"text,omitempty"`
	// ad_inquiry fields
	AdID    string `json:"ad_id,omitempty"`
	AdTitle string `json:"ad_title,omitempty"`
	// ride_booking fields
	RideID string `json:"ride_id,omitempty"`
	Seats  int    `json:"seats,omitempty"`
}

// TextContent wraps a plain string into a text variant.
func TextContent(s string) Content {
	return Content{Kind: ContentText, Text: s}
}

// Preview returns a short human-readable rendering used in conversation
// list rows.
func (c Content) Preview() string {
	switch c.Kind {
	case ContentAdInquiry:
		if c.AdTitle != "" {
			return c.AdTitle
		}
		return c.Text
	case ContentRideBooking:
		return c.Text
	default:
		return c.Text
	}
}

// UnmarshalJSON accepts either the tagged object form or a bare JSON
// string, which is treated as plain text for compatibility with simple
// senders.
func (c *Content) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = TextContent(s)
		return nil
	}
	type alias Content
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if a.Kind == "" {
		a.Kind = ContentText
	}
	*c = Content(a)
	return nil
}

// Message belongs to exactly one conversation. Immutable once created
// except for IsRead, which transitions false->true only.
type Message struct {
	ID     string `json:"id"`
	ChatID string `json:"chat_id"`
	Sender string `json:"sender_id"`
	// Content is the message payload (text or structured attachment).
	Content Content `json:"content"`
	// Context is a short label naming the listing/ride this message
	// relates to, e.g. "По объявлению: Диван".
	Context string `json:"context,omitempty"`
	// AdID links the message to the originating listing, if any.
	AdID string `json:"ad_id,omitempty"`
	// Created timestamp (ns)
	TS     int64 `json:"created_ts"`
	IsRead bool  `json:"is_read,omitempty"`
}
