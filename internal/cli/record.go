package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/tally/internal/config"
)

type recordJSON struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Today    int64  `json:"today"`
	Sum      int64  `json:"sum"`
	Recorded bool   `json:"recorded"`
}

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	if c.Type != "" && c.Client == "" {
		return fmt.Errorf("--client is required with --type")
	}
	return withRuntime(c.globals, c.rt, c.execute)
}

func (c *RecordCommand) execute(ctx context.Context, rt *runtime) error {
	item, name := c.Args.Item, c.Args.Name

	kind := c.Type
	if kind == "" && c.Client != "" {
		kind = config.DefaultHitType
	}

	out := recordJSON{ItemID: item, Name: name, Recorded: true}
	if kind != "" {
		snap, recorded, err := rt.svc.Hit(ctx, item, name, kind, c.Client)
		if err != nil {
			return err
		}
		out.Today, out.Sum, out.Recorded = snap.Today, snap.Sum, recorded
	} else {
		snap, err := rt.svc.Record(ctx, item, name)
		if err != nil {
			return err
		}
		out.Today, out.Sum = snap.Today, snap.Sum
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}

	fmt.Printf("%s/%s  today: %d  sum: %d", item, name, out.Today, out.Sum)
	if !out.Recorded {
		fmt.Print("  (same visit, not counted)")
	}
	fmt.Println()
	return nil
}
