package systray

// ActivateType selects what [Client.Activate] asks the item to do.
type ActivateType int

const (
	// ActivateDefault is the primary activation, typically a left click.
	ActivateDefault ActivateType = iota

	// ActivateSecondary is the secondary activation, typically a middle click.
	ActivateSecondary

	// ActivateMenuItem clicks an entry of the item menu.
	ActivateMenuItem
)

// ActivateRequest is a user interaction with a tray item.
type ActivateRequest struct {
	Type    ActivateType
	Address string

	// X and Y are screen coordinates used as a placement hint for
	// ActivateDefault and ActivateSecondary.
	X, Y int

	// MenuPath and SubmenuID identify the menu entry for ActivateMenuItem.
	// An empty MenuPath uses the path announced by the item.
	MenuPath  string
	SubmenuID int32
}
