package commands

import (
	"context"
	"flag"
	"fmt"

	"haventory/internal/cli/api"
	"haventory/internal/config"
	"haventory/internal/protocol"
	"haventory/internal/subscription"
)

type watchCmd struct{}

func (watchCmd) Name() string { return "watch" }
func (watchCmd) Description() string {
	return "Следить за изменениями (опционально в пределах места)"
}
func (watchCmd) Usage() string { return "watch [-location id] [-exact] [-n count]" }

func (watchCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(Out)
	location := fs.String("location", "", "location id to scope item events")
	exact := fs.Bool("exact", false, "only the location itself, not nested ones")
	limit := fs.Int("n", 0, "stop after n events (0 = until interrupted)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	sub := protocol.Subscribe{Topic: string(subscription.TopicItems)}
	if *location != "" {
		incl := !*exact
		sub.LocationID, sub.IncludeSubtree = location, &incl
	}
	if _, err := client.Subscribe(ctx, sub); err != nil {
		return err
	}
	if _, err := client.Subscribe(ctx, protocol.Subscribe{Topic: string(subscription.TopicStats)}); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Watching... (Ctrl+C to stop)")

	for seen := 0; *limit == 0 || seen < *limit; seen++ {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-client.Events():
			if !ok {
				return api.ErrClosed
			}
			printEvent(ev.Event)
		}
	}
	return nil
}

func printEvent(ev subscription.Event) {
	switch {
	case ev.Item != nil:
		fmt.Fprintf(Out, "%s item %s: ", ev.TS, ev.Action)
		printItem(*ev.Item)
	case ev.Location != nil:
		fmt.Fprintf(Out, "%s location %s: %s %s\n", ev.TS, ev.Action, ev.Location.ID, ev.Location.Path.DisplayPath)
	case ev.Counts != nil:
		fmt.Fprintf(Out, "%s stats: items=%d low=%d out=%d locations=%d\n", ev.TS,
			ev.Counts.ItemsTotal, ev.Counts.LowStockCount, ev.Counts.CheckedOutCount, ev.Counts.LocationsTotal)
	}
}

func init() { RegisterCmd(watchCmd{}) }
