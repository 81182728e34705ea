package commands

import (
	"context"
	"fmt"
	"strings"

	"haventory/internal/config"
	"haventory/internal/model"
	"haventory/internal/protocol"
	"haventory/internal/service"
)

type locationsCmd struct{}

func (locationsCmd) Name() string        { return "locations" }
func (locationsCmd) Description() string { return "Показать дерево мест хранения" }
func (locationsCmd) Usage() string       { return "locations" }

func (locationsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var tree []service.TreeNode
	if err := client.Call(ctx, protocol.OpLocationTree, nil, &tree); err != nil {
		return err
	}
	if len(tree) == 0 {
		fmt.Fprintln(Out, "Нет мест")
		return nil
	}
	printTree(tree, 0)
	return nil
}

func printTree(nodes []service.TreeNode, depth int) {
	for _, n := range nodes {
		line := fmt.Sprintf("%s- %s  %s", strings.Repeat("  ", depth), n.Name, n.ID)
		if n.AreaName != nil {
			line += "  [" + *n.AreaName + "]"
		}
		fmt.Fprintln(Out, line)
		printTree(n.Children, depth+1)
	}
}

type locationAddCmd struct{}

func (locationAddCmd) Name() string        { return "location-add" }
func (locationAddCmd) Description() string { return "Добавить место (опционально родитель и зона)" }
func (locationAddCmd) Usage() string       { return "location-add <name> [<parent-id|-> [<area-id>]]" }

func (locationAddCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 1 || len(args) > 3 || args[0] == "" {
		return ErrUsage
	}
	in := model.LocationCreate{Name: args[0]}
	if len(args) >= 2 && args[1] != "-" {
		in.ParentID = &args[1]
	}
	if len(args) == 3 {
		in.AreaID = &args[2]
	}

	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var loc service.LocationView
	if err := client.Call(ctx, protocol.OpLocationCreate, in, &loc); err != nil {
		return err
	}
	fmt.Fprintf(Out, "Created: %s  %s\n", loc.ID, loc.Path.DisplayPath)
	return nil
}

func init() {
	RegisterCmd(locationsCmd{})
	RegisterCmd(locationAddCmd{})
}
