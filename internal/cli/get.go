package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/runnerr0/tally/internal/stats"
)

type dayJSON struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type getJSON struct {
	ItemID string    `json:"item_id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
	Today  int64     `json:"today"`
	Sum    int64     `json:"sum"`
	Days   []dayJSON `json:"days,omitempty"`
}

// Execute implements the go-flags Commander interface for GetCommand.
func (c *GetCommand) Execute(args []string) error {
	if c.Date != "" && (c.From != "" || c.To != "") {
		return fmt.Errorf("--date cannot be combined with --from/--to")
	}
	if c.To != "" && c.From == "" {
		return fmt.Errorf("--to requires --from")
	}
	return withRuntime(c.globals, c.rt, c.execute)
}

// query builds the stats query from the date flags.
func (c *GetCommand) query(cal stats.Calendar, now time.Time) (stats.Query, error) {
	switch {
	case c.Date != "":
		d, err := cal.ParseDay(c.Date)
		if err != nil {
			return stats.Query{}, err
		}
		return stats.OnDay(d), nil
	case c.From != "":
		from, err := cal.ParseDay(c.From)
		if err != nil {
			return stats.Query{}, err
		}
		to := cal.DayStart(now)
		if c.To != "" {
			if to, err = cal.ParseDay(c.To); err != nil {
				return stats.Query{}, err
			}
		}
		return stats.Between(from, to), nil
	default:
		return stats.Query{}, nil
	}
}

func (c *GetCommand) execute(ctx context.Context, rt *runtime) error {
	item, name := c.Args.Item, c.Args.Name

	q, err := c.query(rt.svc.Calendar(), rt.svc.Now())
	if err != nil {
		return err
	}

	res, err := rt.svc.Get(ctx, item, name, q)
	if err != nil {
		return err
	}
	if res.Status == stats.StatusInvalid {
		return errors.New(res.Reason)
	}

	// A missing counter is shown as zero counts.
	out := getJSON{
		ItemID: item,
		Name:   name,
		Status: res.Status.String(),
		Today:  res.Today,
		Sum:    res.Sum,
	}
	for _, d := range res.Days {
		out.Days = append(out.Days, dayJSON{Day: d.Day.Format(stats.DayLayout), Count: d.Count})
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(out)
	}

	fmt.Printf("%s/%s\n", item, name)
	fmt.Printf("Today:  %s\n", formatNumber(out.Today))
	fmt.Printf("Sum:    %s\n", formatNumber(out.Sum))
	if len(out.Days) > 0 {
		fmt.Println()
		for _, d := range out.Days {
			fmt.Printf("  %s  %s\n", d.Day, formatNumber(d.Count))
		}
	}
	return nil
}
