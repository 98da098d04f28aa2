package command

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/arclink-go/internal/cli/output"
	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/core/service"
)

// RoutingCommand returns the routing command.
func RoutingCommand() *cli.Command {
	return &cli.Command{
		Name:  "routing",
		Usage: "Show the routing table of the initial node",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "network", Aliases: []string{"net"}, Usage: "Network code", Required: true},
			&cli.StringFlag{Name: "station", Aliases: []string{"sta"}, Usage: "Station code"},
			&cli.StringFlag{Name: "modified-after", Usage: "Only routes changed after this time"},
		}, windowFlags()...),
		Action: routingAction,
	}
}

func routingAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	start, end, err := windowFromFlags(c)
	if err != nil {
		return err
	}
	modified, err := optionalTime(c, "modified-after")
	if err != nil {
		return err
	}

	req := service.RoutingRequest{
		Network:       c.String("network"),
		Station:       c.String("station"),
		Start:         start,
		End:           end,
		ModifiedAfter: modified,
	}

	var table domain.RoutingTable
	err = rt.run("resolving routes", func(ctx context.Context) error {
		var err error
		table, err = rt.client.Routing(ctx, req)
		return err
	})
	if err != nil {
		return err
	}
	return rt.print(output.RouteRows(table))
}

// InventoryCommand returns the inventory command.
func InventoryCommand() *cli.Command {
	flags := append(selectorFlags(false), windowFlags()...)
	flags = append(flags,
		&cli.BoolFlag{Name: "instruments", Usage: "Include instrument descriptions"},
		&cli.StringFlag{Name: "modified-after", Usage: "Only entries changed after this time"},
		&cli.BoolFlag{Name: "restricted", Usage: "Filter on restricted (true) or open (false) streams"},
		&cli.BoolFlag{Name: "permanent", Usage: "Filter on permanent (true) or temporary (false) networks"},
		&cli.StringFlag{Name: "sensortype", Usage: "Sensor type, e.g. VBB"},
		&cli.Float64Flag{Name: "latmin", Usage: "Minimum latitude"},
		&cli.Float64Flag{Name: "latmax", Usage: "Maximum latitude"},
		&cli.Float64Flag{Name: "lonmin", Usage: "Minimum longitude"},
		&cli.Float64Flag{Name: "lonmax", Usage: "Maximum longitude"},
		&cli.StringFlag{Name: "out", Aliases: []string{"O"}, Usage: "Output file, - for stdout", Value: "-"},
	)

	return &cli.Command{
		Name:   "inventory",
		Usage:  "Fetch the inventory XML document",
		Flags:  flags,
		Action: inventoryAction,
	}
}

func inventoryAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	start, end, err := windowFromFlags(c)
	if err != nil {
		return err
	}
	modified, err := optionalTime(c, "modified-after")
	if err != nil {
		return err
	}

	req := service.InventoryRequest{
		Selector:      selectorFromFlags(c),
		Start:         start,
		End:           end,
		Instruments:   c.Bool("instruments"),
		ModifiedAfter: modified,
		Restricted:    optionalBool(c, "restricted"),
		Permanent:     optionalBool(c, "permanent"),
		SensorType:    c.String("sensortype"),
		MinLatitude:   optionalFloat(c, "latmin"),
		MaxLatitude:   optionalFloat(c, "latmax"),
		MinLongitude:  optionalFloat(c, "lonmin"),
		MaxLongitude:  optionalFloat(c, "lonmax"),
	}

	return rt.fetchDocument(c.String("out"), "requesting inventory", func(ctx context.Context) ([]byte, error) {
		return rt.client.Inventory(ctx, req)
	})
}

// QCCommand returns the qc command.
func QCCommand() *cli.Command {
	flags := append(selectorFlags(false), windowFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "parameters", Usage: "Comma separated QC parameters, * for all", Value: "*"},
		&cli.BoolFlag{Name: "outages", Usage: "Include outages"},
		&cli.BoolFlag{Name: "logs", Usage: "Include log messages"},
		&cli.StringFlag{Name: "out", Aliases: []string{"O"}, Usage: "Output file, - for stdout", Value: "-"},
	)

	return &cli.Command{
		Name:   "qc",
		Usage:  "Fetch quality control parameters",
		Flags:  flags,
		Action: qcAction,
	}
}

func qcAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	start, end, err := windowFromFlags(c)
	if err != nil {
		return err
	}

	req := service.QCRequest{
		Selector:   selectorFromFlags(c),
		Start:      start,
		End:        end,
		Parameters: c.String("parameters"),
		Outages:    c.Bool("outages"),
		Logs:       c.Bool("logs"),
	}

	return rt.fetchDocument(c.String("out"), "requesting qc", func(ctx context.Context) ([]byte, error) {
		return rt.client.QC(ctx, req)
	})
}

// ResponseCommand returns the response command.
func ResponseCommand() *cli.Command {
	flags := append(selectorFlags(false), windowFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "out", Aliases: []string{"O"}, Usage: "Output file for the dataless SEED volume", Required: true},
	)

	return &cli.Command{
		Name:   "response",
		Usage:  "Download instrument responses as dataless SEED",
		Flags:  flags,
		Action: responseAction,
	}
}

func responseAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	start, end, err := windowFromFlags(c)
	if err != nil {
		return err
	}

	req := service.ResponseRequest{
		Selector: selectorFromFlags(c),
		Start:    start,
		End:      end,
	}

	return rt.fetchDocument(c.String("out"), "requesting responses", func(ctx context.Context) ([]byte, error) {
		return rt.client.Response(ctx, req)
	})
}

// fetchDocument runs fn and writes the bytes to path. A summary is
// printed when the bytes went to a file.
func (rt *runtime) fetchDocument(path, message string, fn func(ctx context.Context) ([]byte, error)) error {
	var data []byte
	err := rt.run(message, func(ctx context.Context) error {
		var err error
		data, err = fn(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if err := writeData(rt.stdout, path, data); err != nil {
		return err
	}
	if path == "" || path == "-" {
		return nil
	}
	return rt.print(SaveResult{
		File:  path,
		Bytes: len(data),
		Node:  rt.client.Session().Endpoint().String(),
	})
}
