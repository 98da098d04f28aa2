package command

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/arclink-go/internal/core/domain"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and the shorter forms in timeLayouts; times
// without a zone are UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("time %q", s))
}

func selectorFlags(requireStation bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "network", Aliases: []string{"net"}, Usage: "Network code, e.g. GE", Required: true},
		&cli.StringFlag{Name: "station", Aliases: []string{"sta"}, Usage: "Station code, wildcards allowed", Required: requireStation},
		&cli.StringFlag{Name: "location", Aliases: []string{"loc"}, Usage: "Location code"},
		&cli.StringFlag{Name: "channel", Aliases: []string{"cha"}, Usage: "Channel code, e.g. BHZ or BH*"},
	}
}

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Aliases: []string{"t0"}, Usage: "Start time (UTC), e.g. 2010-01-01T00:00:00", Required: true},
		&cli.StringFlag{Name: "end", Aliases: []string{"t1"}, Usage: "End time (UTC)"},
		&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "Window length when --end is not given"},
	}
}

func selectorFromFlags(c *cli.Context) domain.Selector {
	return domain.Selector{
		Network:  c.String("network"),
		Station:  c.String("station"),
		Location: c.String("location"),
		Channel:  c.String("channel"),
	}
}

func windowFromFlags(c *cli.Context) (start, end time.Time, err error) {
	start, err = parseTime(c.String("start"))
	if err != nil {
		return start, end, err
	}
	switch {
	case c.IsSet("end"):
		end, err = parseTime(c.String("end"))
	case c.IsSet("duration"):
		end = start.Add(c.Duration("duration"))
	default:
		err = domain.ErrMissingArgument.WithDetails("--end or --duration")
	}
	return start, end, err
}

// optionalTime parses flag name when set.
func optionalTime(c *cli.Context, name string) (time.Time, error) {
	if !c.IsSet(name) {
		return time.Time{}, nil
	}
	return parseTime(c.String(name))
}

func optionalBool(c *cli.Context, name string) *bool {
	if !c.IsSet(name) {
		return nil
	}
	b := c.Bool(name)
	return &b
}

func optionalFloat(c *cli.Context, name string) *float64 {
	if !c.IsSet(name) {
		return nil
	}
	f := c.Float64(name)
	return &f
}

// writeData writes data to path, or to w when path is "-" or empty.
func writeData(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
