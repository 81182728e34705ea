package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"haventory/internal/cli/api"
	"haventory/internal/cli/cache"
	"haventory/internal/config"
	"haventory/internal/model"
)

// ErrUsage is returned by a command when arguments are invalid and usage should be shown.
var ErrUsage = errors.New("usage")

// Command represents a CLI subcommand.
type Command interface {
	// Name returns the command name as typed by the user, e.g. "items".
	Name() string
	// Description is a short human-readable description shown in help.
	Description() string
	// Usage returns the exact usage string, e.g. "qty <item-id> <delta>".
	Usage() string
	// Run executes the command with provided args (without the command name).
	Run(ctx context.Context, cfg *config.Config, args []string) error
}

// registry holds available commands by name.
var registry = map[string]Command{}

// Out — общий writer для вывода CLI. По умолчанию os.Stdout, но в тестах может переназначаться.
var Out io.Writer = os.Stdout

// Logger — логгер клиента; main подменяет его на настоящий.
var Logger = zap.NewNop().Sugar()

// RegisterCmd adds a command to the registry. Should be called from init() of each command.
func RegisterCmd(cmd Command) {
	registry[cmd.Name()] = cmd
}

// Get returns a command by name.
func Get(name string) (Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// List returns all registered commands sorted by name.
func List() []Command {
	list := make([]Command, 0, len(registry))
	for _, c := range registry {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// FormatGlobalUsage builds a help text for all commands.
func FormatGlobalUsage() string {
	lines := []string{
		"Haventory CLI",
		"",
		"Usage:",
		"  hvcli [--base-url <host:port>] [--page-size N] <command> [args]",
		"",
		"Commands:",
	}
	for _, c := range List() {
		lines = append(lines, fmt.Sprintf("  %-44s %s", c.Usage(), c.Description()))
	}
	return strings.Join(lines, "\n") + "\n"
}

func dial(ctx context.Context, cfg *config.Config) (*api.Client, error) {
	return api.Dial(ctx, cfg.WebSocketURL, Logger)
}

// withCache runs fn against a cache bound to a fresh channel.
func withCache(ctx context.Context, cfg *config.Config, fn func(c *cache.Cache) error) error {
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := cache.New(loopCtx, client, Logger, cache.WithPageSize(cfg.PageSize))
	return fn(c)
}

// withItem loads one item into the cache so writes carry its version.
func withItem(ctx context.Context, cfg *config.Config, id string, fn func(c *cache.Cache) (model.Item, error)) error {
	return withCache(ctx, cfg, func(c *cache.Cache) error {
		if _, err := c.Refresh(ctx, id); err != nil {
			return err
		}
		it, err := fn(c)
		if err != nil {
			printFailures(c)
			return err
		}
		printItem(it)
		return nil
	})
}

func printItem(it model.Item) {
	line := fmt.Sprintf("- %s  %s  qty=%d  ver=%d", it.ID, it.Name, it.Quantity, it.Version)
	if it.LocationPath.DisplayPath != "" {
		line += "  @ " + it.LocationPath.DisplayPath
	}
	if it.CheckedOut {
		line += "  (checked out"
		if it.DueDate != nil {
			line += " until " + *it.DueDate
		}
		line += ")"
	}
	if len(it.Tags) > 0 {
		line += "  #" + strings.Join(it.Tags, " #")
	}
	fmt.Fprintln(Out, line)
}

// printFailures выводит очередь ошибок кеша: код, операцию и намерение пользователя.
func printFailures(c *cache.Cache) {
	for _, e := range c.Errors() {
		fmt.Fprintf(Out, "! %s %s", e.Op, e.Code)
		if e.ItemID != "" {
			fmt.Fprintf(Out, " item=%s", e.ItemID)
		}
		fmt.Fprintf(Out, ": %s\n", e.Message)
	}
}
