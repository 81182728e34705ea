package commands

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"haventory/internal/cli/cache"
	"haventory/internal/config"
	"haventory/internal/model"
)

type itemsCmd struct{}

func (itemsCmd) Name() string { return "items" }
func (itemsCmd) Description() string {
	return "Показать предметы (фильтры: текст, теги, место, остатки)"
}
func (itemsCmd) Usage() string {
	return "items [-q text] [-tag t] [-location id [-subtree]] [-low] [-out] [-sort f] [-order o] [-all]"
}

func (itemsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("items", flag.ContinueOnError)
	fs.SetOutput(Out)
	q := fs.String("q", "", "text search")
	tags := fs.String("tag", "", "comma separated tags, any of them")
	location := fs.String("location", "", "location id")
	subtree := fs.Bool("subtree", false, "include nested locations")
	low := fs.Bool("low", false, "low stock only")
	out := fs.Bool("out", false, "checked out only")
	sortField := fs.String("sort", "", "updated_at, created_at, name or quantity")
	order := fs.String("order", "", "asc or desc")
	all := fs.Bool("all", false, "load every page")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}

	f := model.ItemFilter{Q: *q, LowStockOnly: *low, IncludeSubtree: *subtree}
	if *tags != "" {
		f.TagsAny = strings.Split(*tags, ",")
	}
	if *location != "" {
		f.LocationID = location
	}
	if *out {
		f.CheckedOut = out
	}
	srt := model.Sort{Field: model.SortField(*sortField), Order: model.SortOrder(*order)}

	return withCache(ctx, cfg, func(c *cache.Cache) error {
		if err := c.SetFilter(ctx, f, srt); err != nil {
			return err
		}
		for *all {
			more, err := c.LoadMore(ctx)
			if err != nil {
				return err
			}
			if !more {
				break
			}
		}
		st := c.Snapshot()
		if len(st.Items) == 0 {
			fmt.Fprintln(Out, "Нет предметов")
			return nil
		}
		for _, it := range st.Items {
			printItem(it)
		}
		fmt.Fprintf(Out, "Показано: %d", len(st.Items))
		if st.NextCursor != nil {
			fmt.Fprint(Out, " (есть ещё, -all)")
		}
		fmt.Fprintln(Out)
		return nil
	})
}

func init() { RegisterCmd(itemsCmd{}) }
