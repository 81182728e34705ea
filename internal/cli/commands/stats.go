package commands

import (
	"context"
	"fmt"

	"haventory/internal/config"
	"haventory/internal/model"
	"haventory/internal/protocol"
)

type statsCmd struct{}

func (statsCmd) Name() string        { return "stats" }
func (statsCmd) Description() string { return "Показать сводку по инвентарю" }
func (statsCmd) Usage() string       { return "stats" }

func (statsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var c model.Counts
	if err := client.Call(ctx, protocol.OpStats, nil, &c); err != nil {
		return err
	}
	printCounts(c)
	return nil
}

func printCounts(c model.Counts) {
	fmt.Fprintf(Out, "items:       %d\n", c.ItemsTotal)
	fmt.Fprintf(Out, "low stock:   %d\n", c.LowStockCount)
	fmt.Fprintf(Out, "checked out: %d\n", c.CheckedOutCount)
	fmt.Fprintf(Out, "locations:   %d\n", c.LocationsTotal)
}

func init() { RegisterCmd(statsCmd{}) }
