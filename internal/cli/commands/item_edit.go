package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"haventory/internal/cli/cache"
	"haventory/internal/config"
	"haventory/internal/model"
)

type itemEditCmd struct{}

func (itemEditCmd) Name() string { return "item-edit" }
func (itemEditCmd) Description() string {
	return "Изменить поля предмета (name, description, category, tags, quantity, low_stock); '-' очищает"
}
func (itemEditCmd) Usage() string { return "item-edit <item-id> <field>=<value> [...]" }

func (itemEditCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return ErrUsage
	}
	changes, err := parseChanges(args[1:])
	if err != nil {
		return err
	}
	return withItem(ctx, cfg, args[0], func(c *cache.Cache) (model.Item, error) {
		return c.UpdateItem(ctx, args[0], changes)
	})
}

// parseChanges собирает патч из пар field=value.
func parseChanges(pairs []string) (model.ItemUpdate, error) {
	var u model.ItemUpdate
	for _, p := range pairs {
		field, value, ok := strings.Cut(p, "=")
		if !ok || field == "" {
			return u, ErrUsage
		}
		null := value == "-"
		switch field {
		case "name":
			u.Name = model.Set(value)
		case "description":
			u.Description = optString(value, null)
		case "category":
			u.Category = optString(value, null)
		case "tags":
			if null {
				u.Tags = model.Null[[]string]()
			} else {
				u.Tags = model.Set(strings.Split(value, ","))
			}
		case "quantity":
			n, err := strconv.Atoi(value)
			if err != nil {
				return u, fmt.Errorf("quantity: %w", err)
			}
			u.Quantity = model.Set(n)
		case "low_stock":
			if null {
				u.LowStockThreshold = model.Null[int]()
				continue
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return u, fmt.Errorf("low_stock: %w", err)
			}
			u.LowStockThreshold = model.Set(n)
		default:
			return u, fmt.Errorf("unknown field %q", field)
		}
	}
	return u, nil
}

func optString(v string, null bool) model.Field[string] {
	if null {
		return model.Null[string]()
	}
	return model.Set(v)
}

func init() { RegisterCmd(itemEditCmd{}) }
