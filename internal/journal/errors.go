package journal

import "errors"

// ErrClosed is returned when an append races with shutdown.
var ErrClosed = errors.New("journal closed")
