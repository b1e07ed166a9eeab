package inhibit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/shelepuginivan/statusbar/internal/log"
	"github.com/shelepuginivan/statusbar/internal/metrics"
	"github.com/shelepuginivan/statusbar/internal/vars"
)

const (
	DefaultCommandVar = "inhibit_cmd"
	DefaultInfoVar    = "inhibit_info"
)

// Bus is the variable bus the bridge reads commands from and writes state to.
type Bus interface {
	Subscribe(name string) *vars.Subscription
	Set(name, value string) error
}

// Sender accepts commands. *Controller implements it.
type Sender interface {
	Send(ctx context.Context, cmd Command) error
}

// BridgeConfig configures [RunBridge]. Zero values select defaults.
type BridgeConfig struct {
	CommandVar string
	InfoVar    string
	Logger     *zerolog.Logger
}

type bridge struct {
	bus        Bus
	sender     Sender
	commandVar string
	infoVar    string
	logger     zerolog.Logger
}

// Info is the value written to the info variable.
type Info struct {
	Status    string `json:"status"`
	Remaining string `json:"remaining"`
}

// NewInfo formats s for the info variable.
func NewInfo(s State) Info {
	status := "inactive"
	if s.Active {
		status = "active"
	}

	return Info{Status: status, Remaining: FormatDuration(s.Duration)}
}

func (i Info) String() string {
	data, err := json.Marshal(i)
	if err != nil {
		// Two string fields always marshal.
		panic(err)
	}

	return string(data)
}

// StartBridge subscribes to the command variable and runs the bridge in a new
// goroutine. Commands written after StartBridge returns are not missed. The
// returned channel receives the result of the bridge.
func StartBridge(ctx context.Context, bus Bus, sender Sender, states <-chan State, cfg BridgeConfig) <-chan error {
	b := newBridge(bus, sender, cfg)
	sub := bus.Subscribe(b.commandVar)
	result := make(chan error, 1)

	go func() {
		result <- b.run(ctx, sub, states)
	}()

	return result
}

// RunBridge relays commands written to the command variable to sender and
// writes every state received on states to the info variable.
//
// After a command has been forwarded the command variable is reset to the
// empty string so the same command can be written again. A failed reset is
// logged and ignored. If forwarding fails the bridge stops and returns the
// error. It also stops when ctx is done or both inputs are closed.
func RunBridge(ctx context.Context, bus Bus, sender Sender, states <-chan State, cfg BridgeConfig) error {
	b := newBridge(bus, sender, cfg)
	return b.run(ctx, bus.Subscribe(b.commandVar), states)
}

func newBridge(bus Bus, sender Sender, cfg BridgeConfig) *bridge {
	b := &bridge{
		bus:        bus,
		sender:     sender,
		commandVar: cfg.CommandVar,
		infoVar:    cfg.InfoVar,
	}

	if b.commandVar == "" {
		b.commandVar = DefaultCommandVar
	}

	if b.infoVar == "" {
		b.infoVar = DefaultInfoVar
	}

	if cfg.Logger != nil {
		b.logger = *cfg.Logger
	} else {
		b.logger = log.WithComponent("inhibit_ipc")
	}

	return b
}

func (b *bridge) run(ctx context.Context, sub *vars.Subscription, states <-chan State) error {
	defer sub.Close()

	b.logger.Debug().
		Str("command_var", b.commandVar).
		Str("info_var", b.infoVar).
		Msg("Inhibit IPC controller started")

	commands := sub.C()
	for commands != nil || states != nil {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}

			if err := b.handleCommand(ctx, msg); err != nil {
				return err
			}

		case s, ok := <-states:
			if !ok {
				states = nil
				continue
			}

			b.publish(s)
		}
	}

	return nil
}

func (b *bridge) handleCommand(ctx context.Context, msg string) error {
	if msg == "" {
		return nil
	}

	cmd, ok := ParseCommand(msg)
	if !ok {
		metrics.InhibitCommands.WithLabelValues("unknown").Inc()
		b.logger.Warn().Str("command", msg).Msg("Unknown inhibit command")
		return nil
	}

	metrics.InhibitCommands.WithLabelValues(cmd.String()).Inc()

	if err := b.sender.Send(ctx, cmd); err != nil {
		b.logger.Error().Err(err).Stringer("command", cmd).Msg("Failed to send inhibit command")
		return fmt.Errorf("inhibit: forward %s: %w", cmd, err)
	}

	if err := b.bus.Set(b.commandVar, ""); err != nil {
		b.logger.Error().Err(err).Str("var", b.commandVar).Msg("Failed to reset inhibit command")
	}

	return nil
}

func (b *bridge) publish(s State) {
	if err := b.bus.Set(b.infoVar, NewInfo(s).String()); err != nil {
		b.logger.Error().Err(err).Str("var", b.infoVar).Msg("Failed to set inhibit info")
	}
}
