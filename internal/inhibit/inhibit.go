// Package inhibit controls idle inhibition and bridges it to the variable
// bus.
//
// The [Controller] owns the inhibition state and is driven by [Command]
// values. [RunBridge] feeds it commands read from a bus variable and writes
// every [State] it broadcasts back to another bus variable.
package inhibit

import (
	"fmt"
	"time"
)

// Command is an instruction for the [Controller].
type Command int

const (
	// Toggle switches inhibition on for the selected duration, or off.
	Toggle Command = iota

	// Cycle selects the next duration. An active inhibition restarts with it.
	Cycle
)

func (c Command) String() string {
	switch c {
	case Toggle:
		return "toggle"
	case Cycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// ParseCommand maps the text written to the command variable to a command.
// The empty string is the reset value and is not a command.
func ParseCommand(text string) (Command, bool) {
	switch text {
	case "toggle":
		return Toggle, true
	case "cycle":
		return Cycle, true
	default:
		return 0, false
	}
}

// Indefinite is the duration of an inhibition without a deadline.
const Indefinite time.Duration = -1

// State is a snapshot of the controller.
type State struct {
	Active bool

	// Duration is the remaining time while active and the selected duration
	// otherwise. It is Indefinite when there is no deadline.
	Duration time.Duration
}

// FormatDuration renders d for the status bar: "1h 05m", "4m 05s", "5s" or
// "∞" for Indefinite.
func FormatDuration(d time.Duration) string {
	if d == Indefinite {
		return "∞"
	}

	if d < 0 {
		d = 0
	}

	d = d.Truncate(time.Second)
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	seconds := int(d % time.Minute / time.Second)

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %02ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
