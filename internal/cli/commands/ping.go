package commands

import (
	"context"
	"fmt"

	"haventory/internal/config"
	"haventory/internal/protocol"
)

type pingCmd struct{}

func (pingCmd) Name() string        { return "ping" }
func (pingCmd) Description() string { return "Проверить связь с сервером и версию протокола" }
func (pingCmd) Usage() string       { return "ping" }

func (pingCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	client, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	var pong struct {
		TS string `json:"ts"`
	}
	if err := client.Call(ctx, protocol.OpPing, protocol.Ping{}, &pong); err != nil {
		return err
	}
	var v protocol.VersionInfo
	if err := client.Call(ctx, protocol.OpVersion, nil, &v); err != nil {
		return err
	}
	fmt.Fprintf(Out, "pong %s\n", pong.TS)
	fmt.Fprintf(Out, "server %s, schema %d\n", v.ServerVersion, v.SchemaVersion)
	return nil
}

func init() { RegisterCmd(pingCmd{}) }
