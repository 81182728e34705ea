package commands

import (
	"context"
	"fmt"

	"haventory/internal/cli/cache"
	"haventory/internal/config"
)

type itemRmCmd struct{}

func (itemRmCmd) Name() string        { return "item-rm" }
func (itemRmCmd) Description() string { return "Удалить предмет" }
func (itemRmCmd) Usage() string       { return "item-rm <item-id>" }

func (itemRmCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	id := args[0]
	return withCache(ctx, cfg, func(c *cache.Cache) error {
		if _, err := c.Refresh(ctx, id); err != nil {
			return err
		}
		if err := c.DeleteItem(ctx, id); err != nil {
			printFailures(c)
			return err
		}
		fmt.Fprintf(Out, "Deleted: %s\n", id)
		return nil
	})
}

func init() { RegisterCmd(itemRmCmd{}) }
