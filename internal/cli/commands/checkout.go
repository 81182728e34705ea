package commands

import (
	"context"

	"haventory/internal/cli/cache"
	"haventory/internal/config"
	"haventory/internal/model"
)

type checkOutCmd struct{}

func (checkOutCmd) Name() string        { return "checkout" }
func (checkOutCmd) Description() string { return "Выдать предмет (срок возврата YYYY-MM-DD)" }
func (checkOutCmd) Usage() string       { return "checkout <item-id> [<due-date>]" }

func (checkOutCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}
	var due *string
	if len(args) == 2 {
		due = &args[1]
	}
	return withItem(ctx, cfg, args[0], func(c *cache.Cache) (model.Item, error) {
		return c.CheckOut(ctx, args[0], due)
	})
}

type checkInCmd struct{}

func (checkInCmd) Name() string        { return "checkin" }
func (checkInCmd) Description() string { return "Вернуть выданный предмет" }
func (checkInCmd) Usage() string       { return "checkin <item-id>" }

func (checkInCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	return withItem(ctx, cfg, args[0], func(c *cache.Cache) (model.Item, error) {
		return c.CheckIn(ctx, args[0])
	})
}

type itemMoveCmd struct{}

func (itemMoveCmd) Name() string        { return "item-move" }
func (itemMoveCmd) Description() string { return "Переместить предмет ('-' убирает место)" }
func (itemMoveCmd) Usage() string       { return "item-move <item-id> <location-id|->" }

func (itemMoveCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	var loc *string
	if args[1] != "-" {
		loc = &args[1]
	}
	return withItem(ctx, cfg, args[0], func(c *cache.Cache) (model.Item, error) {
		return c.MoveItem(ctx, args[0], loc)
	})
}

func init() {
	RegisterCmd(checkOutCmd{})
	RegisterCmd(checkInCmd{})
	RegisterCmd(itemMoveCmd{})
}
