package command

import (
	"context"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/arclink-go/internal/core/domain"
	"github.com/yndnr/arclink-go/internal/core/service"
)

// SaveResult summarises a saved download.
type SaveResult struct {
	File       string   `json:"file" yaml:"file"`
	Bytes      int      `json:"bytes" yaml:"bytes"`
	Node       string   `json:"node" yaml:"node"`
	DCID       string   `json:"dcid,omitempty" yaml:"dcid,omitempty"`
	Encrypted  bool     `json:"encrypted" yaml:"encrypted"`
	Compressed bool     `json:"compressed" yaml:"compressed"`
	PollRounds int      `json:"poll_rounds" yaml:"poll_rounds"`
	Warnings   []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// WaveformCommand returns the waveform command.
func WaveformCommand() *cli.Command {
	flags := append(selectorFlags(false), windowFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "MSEED or FSEED", Value: "MSEED"},
		&cli.BoolFlag{Name: "compressed", Usage: "Ask the node for bzip2 compressed data", Value: true},
		&cli.BoolFlag{Name: "unpack", Usage: "Inflate compressed data before saving", Value: true},
		&cli.StringFlag{Name: "out", Aliases: []string{"O"}, Usage: "Output file, - for stdout", Required: true},
	)

	return &cli.Command{
		Name:    "waveform",
		Aliases: []string{"wf"},
		Usage:   "Download waveform data to a file",
		Flags:   flags,
		Action:  waveformAction,
	}
}

func waveformAction(c *cli.Context) error {
	rt, err := getRuntime(c)
	if err != nil {
		return err
	}
	start, end, err := windowFromFlags(c)
	if err != nil {
		return err
	}

	req := service.WaveformRequest{
		Selector:   selectorFromFlags(c),
		Start:      start,
		End:        end,
		Format:     strings.ToUpper(c.String("format")),
		Compressed: c.Bool("compressed"),
	}

	var payload *domain.Payload
	err = rt.run("requesting "+req.Selector.String(), func(ctx context.Context) error {
		var err error
		payload, err = rt.client.Waveform(ctx, req)
		return err
	})
	if err != nil {
		return err
	}

	return rt.save(c.String("out"), payload, c.Bool("unpack"))
}

// save writes payload and prints a SaveResult. Data that is still
// encrypted is saved as is, with ".openssl" appended to the file name
// (".bz2.openssl" when compressed); compressed data kept packed gets
// ".bz2".
func (rt *runtime) save(path string, p *domain.Payload, unpack bool) error {
	res := SaveResult{
		Node:       rt.client.Session().Endpoint().String(),
		DCID:       p.DCID,
		Encrypted:  p.StillEncrypted(),
		Compressed: p.Compressed,
		PollRounds: p.PollRounds,
	}
	for _, w := range p.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}

	data := p.Data
	toFile := path != "" && path != "-"
	switch {
	case p.StillEncrypted():
		if toFile {
			suffix := ".openssl"
			if p.Compressed {
				suffix = ".bz2.openssl"
			}
			if !strings.HasSuffix(path, suffix) {
				path += suffix
			}
		}
		if unpack && p.Compressed {
			res.Warnings = append(res.Warnings, "cannot unpack encrypted waveforms")
		}
	case p.Compressed && unpack:
		unpacked, err := p.Unpack()
		if err != nil {
			return err
		}
		data = unpacked
		res.Compressed = false
	case p.Compressed && toFile && !strings.HasSuffix(path, ".bz2"):
		path += ".bz2"
	}

	if err := writeData(rt.stdout, path, data); err != nil {
		return err
	}
	res.File = path
	res.Bytes = len(data)

	for _, w := range res.Warnings {
		rt.log.Warn(w)
	}
	if !toFile {
		return nil
	}
	return rt.print(res)
}
