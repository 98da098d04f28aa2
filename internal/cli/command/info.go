package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/arclink-go/internal/cli/config"
	"github.com/yndnr/arclink-go/internal/cli/output"
	"github.com/yndnr/arclink-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			rt, err := getRuntime(c)
			if err != nil {
				return err
			}
			return rt.print(buildinfo.Get())
		},
	}
}

// ConfigCommand returns the config command group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the merged configuration with secrets masked",
				Action: func(c *cli.Context) error {
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					// Nested sections do not fit a table.
					format := rt.format
					if format == output.FormatTable {
						format = output.FormatYAML
					}
					return output.NewFormatter(format).Format(rt.stdout, config.Sanitize(rt.cfg))
				},
			},
			{
				Name:  "path",
				Usage: "Print the default config file path",
				Action: func(c *cli.Context) error {
					rt, err := getRuntime(c)
					if err != nil {
						return err
					}
					_, err = rt.stdout.Write([]byte(config.DefaultConfigPath() + "\n"))
					return err
				},
			},
		},
	}
}
