package commands

import (
	"context"
	"fmt"
	"sort"

	"haventory/internal/config"
	"haventory/internal/model"
	"haventory/internal/protocol"
)

type itemGetCmd struct{}

func (itemGetCmd) Name() string        { return "item-get" }
func (itemGetCmd) Description() string { return "Показать предмет целиком" }
func (itemGetCmd) Usage() string       { return "item-get <item-id>" }

func (itemGetCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var it model.Item
	if err := client.Call(ctx, protocol.OpItemGet, protocol.ItemRef{ItemID: args[0]}, &it); err != nil {
		return err
	}
	fmt.Fprintf(Out, "id:        %s\n", it.ID)
	fmt.Fprintf(Out, "name:      %s\n", it.Name)
	fmt.Fprintf(Out, "quantity:  %d\n", it.Quantity)
	fmt.Fprintf(Out, "version:   %d\n", it.Version)
	if it.Description != nil {
		fmt.Fprintf(Out, "about:     %s\n", *it.Description)
	}
	if it.Category != nil {
		fmt.Fprintf(Out, "category:  %s\n", *it.Category)
	}
	if it.LocationPath.DisplayPath != "" {
		fmt.Fprintf(Out, "location:  %s\n", it.LocationPath.DisplayPath)
	}
	if it.LowStockThreshold != nil {
		fmt.Fprintf(Out, "low stock: <= %d\n", *it.LowStockThreshold)
	}
	if it.CheckedOut {
		due := "-"
		if it.DueDate != nil {
			due = *it.DueDate
		}
		fmt.Fprintf(Out, "checked out, due %s\n", due)
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(Out, "tags:      %v\n", it.Tags)
	}
	keys := make([]string, 0, len(it.CustomFields))
	for k := range it.CustomFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(Out, "  %s = %v\n", k, it.CustomFields[k])
	}
	fmt.Fprintf(Out, "updated:   %s\n", model.FormatTime(it.UpdatedAt))
	return nil
}

func init() { RegisterCmd(itemGetCmd{}) }
