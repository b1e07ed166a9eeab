package inhibit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelepuginivan/statusbar/internal/vars"
)

type fakeSender struct {
	commands chan Command
	err      error
}

func newFakeSender() *fakeSender {
	return &fakeSender{commands: make(chan Command, 16)}
}

func (f *fakeSender) Send(_ context.Context, cmd Command) error {
	if f.err != nil {
		return f.err
	}

	f.commands <- cmd
	return nil
}

// failingBus is a variable bus whose writes to one variable fail.
type failingBus struct {
	*vars.Manager
	failVar string

	mu       sync.Mutex
	attempts map[string]int
}

func (b *failingBus) Set(name, value string) error {
	b.mu.Lock()
	b.attempts[name]++
	b.mu.Unlock()

	if name == b.failVar {
		return errors.New("bus unavailable")
	}

	return b.Manager.Set(name, value)
}

func (b *failingBus) attemptsFor(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.attempts[name]
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

type bridgeHarness struct {
	bus    *failingBus
	sender *fakeSender
	states chan State
	logs   *syncBuffer
	result <-chan error
	cancel context.CancelFunc
}

func startBridge(t *testing.T, failVar string, sender *fakeSender) *bridgeHarness {
	t.Helper()

	h := &bridgeHarness{
		bus: &failingBus{
			Manager:  vars.NewManager(),
			failVar:  failVar,
			attempts: make(map[string]int),
		},
		sender: sender,
		states: make(chan State),
		logs:   &syncBuffer{},
	}

	logger := zerolog.New(h.logs).Level(zerolog.DebugLevel)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.result = StartBridge(ctx, h.bus, sender, h.states, BridgeConfig{Logger: &logger})

	t.Cleanup(cancel)
	return h
}

func (h *bridgeHarness) wait(t *testing.T) error {
	t.Helper()

	select {
	case err := <-h.result:
		return err
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
		return nil
	}
}

func receiveCommand(t *testing.T, sender *fakeSender) Command {
	t.Helper()

	select {
	case cmd := <-sender.commands:
		return cmd
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
		return 0
	}
}

// TestBridgeForwardsAndResets tests that a command is forwarded once and the variable cleared
func TestBridgeForwardsAndResets(t *testing.T) {
	for _, text := range []string{"toggle", "cycle"} {
		t.Run(text, func(t *testing.T) {
			h := startBridge(t, "", newFakeSender())
			watch := h.bus.Subscribe(DefaultCommandVar)
			defer watch.Close()

			require.NoError(t, h.bus.Set(DefaultCommandVar, text))

			want, _ := ParseCommand(text)
			assert.Equal(t, want, receiveCommand(t, h.sender))

			assert.Equal(t, text, <-watch.C())
			assert.Equal(t, "", <-watch.C())

			v, _ := h.bus.Get(DefaultCommandVar)
			assert.Equal(t, "", v)
			assert.Len(t, h.sender.commands, 0)
		})
	}
}

// TestBridgeRetrigger tests that the same command can be written twice
func TestBridgeRetrigger(t *testing.T) {
	h := startBridge(t, "", newFakeSender())

	require.NoError(t, h.bus.Set(DefaultCommandVar, "toggle"))
	assert.Equal(t, Toggle, receiveCommand(t, h.sender))

	require.Eventually(t, func() bool {
		return h.bus.attemptsFor(DefaultCommandVar) == 2
	}, time.Second, time.Millisecond)

	require.NoError(t, h.bus.Set(DefaultCommandVar, "toggle"))
	assert.Equal(t, Toggle, receiveCommand(t, h.sender))
}

// TestBridgeResetFailure tests that forwarding is independent of the reset outcome
func TestBridgeResetFailure(t *testing.T) {
	h := startBridge(t, DefaultCommandVar, newFakeSender())

	// Writes to the command variable fail, so publish through the manager.
	require.NoError(t, h.bus.Manager.Set(DefaultCommandVar, "toggle"))
	assert.Equal(t, Toggle, receiveCommand(t, h.sender))

	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), "Failed to reset inhibit command")
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, h.bus.attemptsFor(DefaultCommandVar))

	require.NoError(t, h.bus.Manager.Set(DefaultCommandVar, "cycle"))
	assert.Equal(t, Cycle, receiveCommand(t, h.sender))
}

// TestBridgeIgnoresEmptyAndUnknown tests that only known commands are forwarded
func TestBridgeIgnoresEmptyAndUnknown(t *testing.T) {
	h := startBridge(t, "", newFakeSender())

	require.NoError(t, h.bus.Set(DefaultCommandVar, ""))
	require.NoError(t, h.bus.Set(DefaultCommandVar, "explode"))

	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), "Unknown inhibit command")
	}, time.Second, time.Millisecond)

	assert.Len(t, h.sender.commands, 0)
	assert.Equal(t, 2, h.bus.attemptsFor(DefaultCommandVar))
	assert.Contains(t, h.logs.String(), `"command":"explode"`)
}

// TestBridgeForwardFailure tests that the bridge stops when the controller is gone
func TestBridgeForwardFailure(t *testing.T) {
	sender := newFakeSender()
	sender.err = ErrStopped
	h := startBridge(t, "", sender)

	require.NoError(t, h.bus.Set(DefaultCommandVar, "toggle"))

	err := h.wait(t)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Contains(t, h.logs.String(), "Inhibit IPC controller started")
	assert.Contains(t, h.logs.String(), "Failed to send inhibit command")
	assert.Equal(t, 1, h.bus.attemptsFor(DefaultCommandVar))
}

// TestBridgePublishesState tests formatting of state snapshots
func TestBridgePublishesState(t *testing.T) {
	h := startBridge(t, "", newFakeSender())
	info := h.bus.Subscribe(DefaultInfoVar)
	defer info.Close()

	h.states <- State{Active: true, Duration: 5 * time.Second}
	assert.Equal(t, `{"status":"active","remaining":"5s"}`, <-info.C())

	h.states <- State{Duration: time.Hour}
	assert.Equal(t, `{"status":"inactive","remaining":"1h 00m"}`, <-info.C())
}

// TestBridgePublishFailure tests that a failed status write does not stop the bridge
func TestBridgePublishFailure(t *testing.T) {
	h := startBridge(t, DefaultInfoVar, newFakeSender())

	h.states <- State{Active: true, Duration: time.Second}
	h.states <- State{}

	require.Eventually(t, func() bool {
		return h.bus.attemptsFor(DefaultInfoVar) == 2
	}, time.Second, time.Millisecond)
	assert.Contains(t, h.logs.String(), "Failed to set inhibit info")

	require.NoError(t, h.bus.Set(DefaultCommandVar, "cycle"))
	assert.Equal(t, Cycle, receiveCommand(t, h.sender))
}

// TestBridgeStops tests the remaining exit conditions
func TestBridgeStops(t *testing.T) {
	t.Run("context cancelled", func(t *testing.T) {
		h := startBridge(t, "", newFakeSender())
		h.cancel()
		assert.NoError(t, h.wait(t))
	})

	t.Run("state channel closed", func(t *testing.T) {
		h := startBridge(t, "", newFakeSender())
		close(h.states)

		require.NoError(t, h.bus.Set(DefaultCommandVar, "toggle"))
		assert.Equal(t, Toggle, receiveCommand(t, h.sender))

		select {
		case err := <-h.result:
			t.Fatalf("bridge stopped early: %v", err)
		default:
		}
	})
}

// TestBridgeWithController tests the bridge against a running controller
func TestBridgeWithController(t *testing.T) {
	logger := zerolog.Nop()
	clock := &fakeClock{now: time.Unix(0, 0)}
	controller := NewController(&fakeInhibitor{}, ControllerConfig{
		Durations: []time.Duration{5 * time.Second},
		Tick:      time.Hour,
		Logger:    &logger,
		Now:       clock.Now,
	})

	bus := vars.NewManager()
	info := bus.Subscribe(DefaultInfoVar)
	defer info.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := controller.Subscribe()
	result := StartBridge(ctx, bus, controller, states.C(), BridgeConfig{Logger: &logger})
	go controller.Run(ctx)

	assert.Equal(t, `{"status":"inactive","remaining":"5s"}`, <-info.C())

	require.NoError(t, bus.Set(DefaultCommandVar, "toggle"))
	assert.Equal(t, `{"status":"active","remaining":"5s"}`, <-info.C())

	cmd, _ := bus.Get(DefaultCommandVar)
	assert.Equal(t, "", cmd)

	cancel()
	<-controller.Done()
	assert.NoError(t, <-result)
}
