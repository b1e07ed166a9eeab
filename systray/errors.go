package systray

import "errors"

var (
	// ErrClosed is returned by operations on a closed host, watcher or client.
	ErrClosed = errors.New("systray: closed")

	// ErrUnknownItem is returned by [Client.Activate] for an address that is
	// not registered.
	ErrUnknownItem = errors.New("systray: unknown item")
)
