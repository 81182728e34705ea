package commands

import (
	"context"
	"fmt"
	"strconv"

	"haventory/internal/cli/cache"
	"haventory/internal/config"
	"haventory/internal/model"
)

type itemAddCmd struct{}

func (itemAddCmd) Name() string { return "item-add" }
func (itemAddCmd) Description() string {
	return "Добавить предмет (опционально количество и место)"
}
func (itemAddCmd) Usage() string { return "item-add <name> [<quantity> [<location-id>]]" }

func (itemAddCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 3 || args[0] == "" {
		return ErrUsage
	}
	in := model.ItemCreate{Name: args[0]}
	if len(args) >= 2 {
		q, err := strconv.Atoi(args[1])
		if err != nil {
			return ErrUsage
		}
		in.Quantity = &q
	}
	if len(args) == 3 {
		in.LocationID = &args[2]
	}

	return withCache(ctx, cfg, func(c *cache.Cache) error {
		it, err := c.CreateItem(ctx, in)
		if err != nil {
			printFailures(c)
			return err
		}
		fmt.Fprintln(Out, "Created:")
		printItem(it)
		return nil
	})
}

func init() { RegisterCmd(itemAddCmd{}) }
