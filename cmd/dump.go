package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/events"
	"github.com/darkhz/avrctl/avrcp/browsetree"
)

// dumpCommand returns the command that prints the browse tree of a device.
func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "Connect to a device and print its browse tree.",
		ArgsUsage: "<address>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "depth",
				Aliases: []string{"d"},
				Value:   2,
				Usage:   "Specify how many folder levels to fetch.",
			},
		},
		Action: func(cliCtx *cli.Context) error {
			address, err := bluetooth.ParseMAC(cliCtx.Args().First())
			if err != nil {
				return err
			}

			depth := cliCtx.Int("depth")

			// The global flags are merged with the configuration file by koanf,
			// so the parent context is used.
			parent := cliCtx
			if lineage := cliCtx.Lineage(); len(lineage) > 1 {
				parent = lineage[1]
			}

			cfg, err := loadConfig(parent)
			if err != nil {
				return err
			}

			cfg.Values.AutoConnectDeviceAddr = address
			if err := initLogging(cfg.Values); err != nil {
				return err
			}

			ctrl, err := newController(cfg)
			if err != nil {
				return err
			}
			defer ctrl.close()

			ctx, cancel := context.WithCancel(cliCtx.Context)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			if err := ctrl.start(gctx, g, ""); err != nil {
				return err
			}

			root, err := dumpTree(gctx, ctrl, address, depth, cfg.Values.FetchTimeout)
			cancel()

			if gerr := g.Wait(); err == nil {
				err = gerr
			}
			if err != nil {
				return err
			}

			printTree(root)

			return nil
		},
	}
}

// treeEntry is a fetched node along with its fetched children.
type treeEntry struct {
	info     browsetree.NodeInfo
	children []*treeEntry
}

// dumpTree connects to the device and fetches its browse tree, breadth first,
// up to the provided depth.
func dumpTree(ctx context.Context, ctrl *controller, device bluetooth.MacAddress, depth int, timeout time.Duration) (*treeEntry, error) {
	sessionSub, ok := events.SessionEvents(ctrl.bus).Subscribe()
	if !ok {
		return nil, errors.New("cannot subscribe to session events")
	}
	defer sessionSub.Unsubscribe()

	browseSub, ok := events.BrowseEvents(ctrl.bus).Subscribe()
	if !ok {
		return nil, errors.New("cannot subscribe to browse events")
	}
	defer browseSub.Unsubscribe()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Connecting to "+device.String()),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	if err := ctrl.registry.Connect(device); err != nil {
		return nil, err
	}

	if err := waitConnected(ctx, sessionSub, device, timeout); err != nil {
		return nil, err
	}

	root := &treeEntry{info: browsetree.NodeInfo{ID: browsetree.RootID, Title: device.String(), Browsable: true}}
	level := []*treeEntry{root}

	for range depth {
		var next []*treeEntry

		for _, entry := range level {
			bar.Describe("Fetching " + entry.info.Title)

			info, err := fetchNode(ctx, ctrl, browseSub, device, entry.info.ID, timeout)
			if err != nil {
				return nil, err
			}

			bar.Add(1)

			for _, child := range info.Children {
				childEntry := &treeEntry{info: child}
				entry.children = append(entry.children, childEntry)

				if child.Browsable {
					next = append(next, childEntry)
				}
			}
		}

		level = next
	}

	return root, nil
}

// waitConnected waits for the session of the device to connect.
func waitConnected(ctx context.Context, sub *events.Subscriber[events.SessionData, events.SessionData], device bluetooth.MacAddress, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			return fmt.Errorf("%s: timed out waiting for the connection", device)

		case ev, ok := <-sub.AddedEvents:
			if !ok {
				return errors.New("session events were closed")
			}

			if ev.Address == device {
				return nil
			}

		case ev, ok := <-sub.RemovedEvents:
			if ok && ev.Address == device {
				return fmt.Errorf("%s: the connection was refused", device)
			}
		}
	}
}

// fetchNode requests a folder and waits until its listing is cached.
func fetchNode(
	ctx context.Context, ctrl *controller,
	sub *events.Subscriber[events.NodeData, events.NodeData],
	device bluetooth.MacAddress, nodeID string, timeout time.Duration,
) (browsetree.NodeInfo, error) {
	if err := ctrl.registry.RequestFolder(ctx, device, nodeID); err != nil {
		return browsetree.NodeInfo{}, err
	}

	// A fetch that times out in the session never reports a cached node.
	timer := time.NewTimer(2 * timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return browsetree.NodeInfo{}, ctx.Err()

		case <-timer.C:
			return ctrl.registry.Node(ctx, device, nodeID)

		case ev, ok := <-sub.UpdatedEvents:
			if !ok {
				return browsetree.NodeInfo{}, errors.New("browse events were closed")
			}

			if ev.Address == device && ev.Node.ID == nodeID && ev.Node.Cached {
				return ev.Node, nil
			}
		}
	}
}

// printTree prints the fetched browse tree.
func printTree(root *treeEntry) {
	var sb strings.Builder

	header := color.New(color.FgCyan, color.Bold)
	folder := color.New(color.FgBlue, color.Bold)
	player := color.New(color.FgGreen, color.Bold)

	sb.WriteString(header.Sprint(root.info.Title))
	sb.WriteString("\n")

	var walk func(entries []*treeEntry, prefix string)
	walk = func(entries []*treeEntry, prefix string) {
		for i, entry := range entries {
			branch, indent := "├── ", "│   "
			if i == len(entries)-1 {
				branch, indent = "└── ", "    "
			}

			title := entry.info.Title
			switch {
			case entry.info.IsPlayer:
				title = player.Sprint(title)

			case entry.info.Browsable:
				title = folder.Sprint(title)

			case entry.info.Track.Artist != "":
				title += " - " + entry.info.Track.Artist
			}

			sb.WriteString(prefix)
			sb.WriteString(branch)
			sb.WriteString(title)
			sb.WriteString("\n")

			walk(entry.children, prefix+indent)
		}
	}
	walk(root.children, "")

	fmt.Print(sb.String())
}
