package inhibit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	login1Destination = "org.freedesktop.login1"
	login1Path        = "/org/freedesktop/login1"
	login1Inhibit     = "org.freedesktop.login1.Manager.Inhibit"
)

// Inhibitor acquires and releases the system idle lock.
type Inhibitor interface {
	// Inhibit acquires the lock. Calling it while holding the lock is a
	// no-op.
	Inhibit(ctx context.Context, why string) error

	// Release drops the lock. Calling it without holding the lock is a
	// no-op.
	Release() error
}

// Login1Inhibitor takes an idle inhibitor lock from systemd-logind. The lock
// is held for as long as the file descriptor returned by logind stays open.
type Login1Inhibitor struct {
	conn *dbus.Conn
	who  string

	mu sync.Mutex
	fd *os.File
}

// NewLogin1Inhibitor connects to the system bus. Who is shown by
// systemd-inhibit as the owner of the lock.
func NewLogin1Inhibitor(who string) (*Login1Inhibitor, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("inhibit: failed to connect to system bus: %w", err)
	}

	return &Login1Inhibitor{conn: conn, who: who}, nil
}

// Inhibit implements [Inhibitor].
func (i *Login1Inhibitor) Inhibit(ctx context.Context, why string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.fd != nil {
		return nil
	}

	var fd dbus.UnixFD
	err := i.conn.Object(login1Destination, login1Path).
		CallWithContext(ctx, login1Inhibit, 0, "idle", i.who, why, "block").
		Store(&fd)
	if err != nil {
		return fmt.Errorf("inhibit: %s: %w", login1Inhibit, err)
	}

	i.fd = os.NewFile(uintptr(fd), "login1-inhibit")
	return nil
}

// Release implements [Inhibitor].
func (i *Login1Inhibitor) Release() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.fd == nil {
		return nil
	}

	err := i.fd.Close()
	i.fd = nil
	if err != nil {
		return fmt.Errorf("inhibit: release: %w", err)
	}

	return nil
}

// Close releases the lock and closes the bus connection.
func (i *Login1Inhibitor) Close() error {
	return errors.Join(i.Release(), i.conn.Close())
}

// NopInhibitor only tracks state. It is used when no backend is configured.
type NopInhibitor struct{}

// Inhibit implements [Inhibitor].
func (NopInhibitor) Inhibit(context.Context, string) error { return nil }

// Release implements [Inhibitor].
func (NopInhibitor) Release() error { return nil }
