package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelepuginivan/statusbar/internal/clients/tray"
	"github.com/shelepuginivan/statusbar/systray"
)

// Tray commands
var trayCmd = &cobra.Command{
	Use:   "tray",
	Short: "Inspect and control the system tray",
}

var trayItemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List registered tray items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectTray(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		// Items are registered asynchronously after the host starts listening.
		wait, _ := cmd.Flags().GetDuration("wait")
		time.Sleep(wait)

		showMenus, _ := cmd.Flags().GetBool("menus")

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tID\tTITLE\tSTATUS\tICON\tMENU")
		for _, item := range client.Items() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				item.Address(), item.ID, item.Title, item.Status, iconSize(item.IconPixmap), item.MenuPath)
		}

		if err := w.Flush(); err != nil {
			return err
		}

		if !showMenus {
			return nil
		}

		for _, item := range client.Items() {
			root, err := fetchMenu(cmd.Context(), item)
			if err != nil {
				continue
			}

			fmt.Printf("\n%s:\n", item.Address())
			writeMenu(os.Stdout, root, 1)
		}

		return nil
	},
}

var trayActivateCmd = &cobra.Command{
	Use:   "activate ADDRESS",
	Short: "Activate a tray item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := connectTray(cmd)
		if err != nil {
			return err
		}
		defer client.Close()

		wait, _ := cmd.Flags().GetDuration("wait")
		time.Sleep(wait)

		req := systray.ActivateRequest{Type: systray.ActivateDefault, Address: args[0]}

		if secondary, _ := cmd.Flags().GetBool("secondary"); secondary {
			req.Type = systray.ActivateSecondary
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		if cmd.Flags().Changed("menu-item") {
			req.Type = systray.ActivateMenuItem
			req.SubmenuID, _ = cmd.Flags().GetInt32("menu-item")

			item, ok := findItem(client.Items(), args[0])
			if !ok {
				return fmt.Errorf("failed to activate %s: %w", args[0], systray.ErrUnknownItem)
			}

			root, err := fetchMenu(ctx, item)
			if err != nil {
				return fmt.Errorf("failed to activate %s: %w", args[0], err)
			}

			if err := checkMenuEntry(root, req.SubmenuID); err != nil {
				return fmt.Errorf("failed to activate %s: %w", args[0], err)
			}
		}

		if err := client.Activate(ctx, req); err != nil {
			return fmt.Errorf("failed to activate %s: %w", args[0], err)
		}

		return nil
	},
}

// iconSize describes the pixmap a 24px tray slot would use.
func iconSize(icons systray.IconSet) string {
	icon := icons.Best(24)
	if icon == nil {
		return "-"
	}

	return fmt.Sprintf("%dx%d", icon.Width, icon.Height)
}

func findItem(items []*systray.Item, address string) (*systray.Item, bool) {
	for _, item := range items {
		if item.Address() == address {
			return item, true
		}
	}

	return nil, false
}

func fetchMenu(ctx context.Context, item *systray.Item) (*systray.LayoutNode, error) {
	menu, err := item.Menu()
	if err != nil {
		return nil, err
	}
	defer menu.Close()

	return menu.Root(ctx)
}

// writeMenu prints the visible entries below node, one per line, indented by
// depth.
func writeMenu(w io.Writer, node *systray.LayoutNode, depth int) {
	for _, child := range node.Children {
		if !child.Visible() {
			continue
		}

		label := child.Label()
		if label == "" {
			label = "---"
		}

		fmt.Fprintf(w, "%s%d  %s\n", strings.Repeat("  ", depth), child.ID, label)
		writeMenu(w, child, depth+1)
	}
}

// checkMenuEntry reports an error unless id is a visible entry of root.
func checkMenuEntry(root *systray.LayoutNode, id int32) error {
	node, ok := root.Find(id)
	if !ok {
		return fmt.Errorf("menu has no entry %d", id)
	}

	if !node.Visible() {
		return fmt.Errorf("menu entry %d is hidden", id)
	}

	return nil
}

func connectTray(cmd *cobra.Command) (*tray.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	return tray.Connect(cmd.Context(), trayDial(cfg), trayConfig(cfg))
}

func init() {
	trayCmd.AddCommand(trayItemsCmd)
	trayCmd.AddCommand(trayActivateCmd)

	trayCmd.PersistentFlags().Duration("wait", 500*time.Millisecond, "Time to wait for items to register")

	trayItemsCmd.Flags().Bool("menus", false, "Also print the menu of every item")

	trayActivateCmd.Flags().Bool("secondary", false, "Use secondary activation")
	trayActivateCmd.Flags().Int32("menu-item", 0, "Click the menu entry with this ID instead")
}
