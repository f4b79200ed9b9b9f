package kvstore

import (
	"encoding/json"

	"github.com/okian/onetoone/pkg/logger"
)

// ConflictHandler is told when a local write was discarded in favor of the remote value.
type ConflictHandler func(key string, latest json.RawMessage, version string)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConflictHandler registers a handler called after a conflict has been resolved.
func WithConflictHandler(h ConflictHandler) Option {
	return func(c *Client) {
		c.onConflict = h
	}
}
