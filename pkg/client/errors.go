package client

import "errors"

// ErrSessionNotStarted is returned when Send is called before Start.
var ErrSessionNotStarted = errors.New("chat session not started")
