package commands

import (
	"context"
	"strconv"

	"haventory/internal/cli/cache"
	"haventory/internal/config"
	"haventory/internal/model"
)

type qtyCmd struct{}

func (qtyCmd) Name() string        { return "qty" }
func (qtyCmd) Description() string { return "Изменить количество на delta (+N или -N)" }
func (qtyCmd) Usage() string       { return "qty <item-id> <delta>" }

func (qtyCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	delta, err := strconv.Atoi(args[1])
	if err != nil {
		return ErrUsage
	}
	return withItem(ctx, cfg, args[0], func(c *cache.Cache) (model.Item, error) {
		return c.AdjustQuantity(ctx, args[0], delta)
	})
}

func init() { RegisterCmd(qtyCmd{}) }
