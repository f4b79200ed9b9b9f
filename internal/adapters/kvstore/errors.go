package kvstore

import "errors"

// ErrUndecodable means a stored document could not be decoded; an update
// based on it is refused so the stored content is left alone.
var ErrUndecodable = errors.New("stored document does not decode")
