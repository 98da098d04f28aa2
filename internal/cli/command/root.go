package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/arclink-go/internal/cli/config"
	"github.com/yndnr/arclink-go/internal/cli/output"
	"github.com/yndnr/arclink-go/internal/core/service"
	"github.com/yndnr/arclink-go/internal/infra/buildinfo"
	"github.com/yndnr/arclink-go/internal/infra/keystore"
	"github.com/yndnr/arclink-go/internal/infra/shutdown"
	"github.com/yndnr/arclink-go/internal/telemetry/logger"
	"github.com/yndnr/arclink-go/internal/telemetry/metric"
)

const runtimeKey = "runtime"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "arclink-cli",
		Usage:   "Request waveforms and metadata from ArcLink archive nodes",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			WaveformCommand(),
			RoutingCommand(),
			InventoryCommand(),
			QCCommand(),
			ResponseCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: setup,
		After:  teardown,
	}
}

// globalFlags returns the global CLI flags. Flags override the config
// file and ARCLINK_* variables only when given explicitly.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "Config file (default ~/.arclink/cli.yaml)"},
		&cli.StringFlag{Name: "host", Aliases: []string{"H"}, Usage: "Initial archive node host"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Initial archive node port"},
		&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User sent in the handshake, usually an e-mail address"},
		&cli.StringFlag{Name: "password", Usage: "Password sent with USER"},
		&cli.StringFlag{Name: "institution", Usage: "Institution of the requester"},
		&cli.DurationFlag{Name: "timeout", Usage: "Connect and read timeout"},
		&cli.DurationFlag{Name: "command-delay", Usage: "Pause before every command sent"},
		&cli.StringFlag{Name: "dcid-key-file", Usage: "File of DCID=passphrase lines"},
		&cli.StringFlag{Name: "dcid-cipher", Usage: "Cipher of encrypted payloads: des-cbc, aes-256-cbc"},
		&cli.StringFlag{Name: "dcid-kdf", Usage: "Key derivation of encrypted payloads: md5, pbkdf2"},
		&cli.BoolFlag{Name: "no-route", Usage: "Send requests to the initial node only"},
		&cli.BoolFlag{Name: "try-all", Usage: "Fall over to further route candidates when a node is unreachable"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "Trace the wire protocol at debug level"},
		&cli.BoolFlag{Name: "progress", Usage: "Show a spinner while a request is pending"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output format: table, json, yaml", Value: "table"},
		&cli.StringFlag{Name: "metrics-textfile", Usage: "Write Prometheus metrics to this file on exit"},
	}
}

// flagOverrides maps explicitly set global flags to config keys.
func flagOverrides(c *cli.Context) map[string]any {
	o := make(map[string]any)
	str := map[string]string{
		"host":             "server.host",
		"user":             "identity.user",
		"password":         "identity.password",
		"institution":      "identity.institution",
		"dcid-key-file":    "keystore.file",
		"dcid-cipher":      "keystore.cipher",
		"dcid-kdf":         "keystore.kdf",
		"metrics-textfile": "metrics.textfile",
	}
	for flag, key := range str {
		if c.IsSet(flag) {
			o[key] = c.String(flag)
		}
	}
	if c.IsSet("port") {
		o["server.port"] = c.Int("port")
	}
	if c.IsSet("timeout") {
		o["server.timeout"] = c.Duration("timeout").String()
	}
	if c.IsSet("command-delay") {
		o["server.command_delay"] = c.Duration("command-delay").String()
	}
	if c.Bool("no-route") {
		o["request.route"] = false
	}
	if c.Bool("try-all") {
		o["request.try_all_candidates"] = true
	}
	if c.Bool("verbose") {
		o["log.verbose"] = true
		o["log.level"] = "debug"
	}
	return o
}

// runtime is what one invocation needs; it is built in Before.
type runtime struct {
	cfg      *config.ClientConfig
	log      logger.Logger
	metrics  *metric.Registry
	client   *service.Client
	format   output.Format
	progress bool
	stdout   io.Writer
	stderr   io.Writer

	ctx      context.Context
	stop     context.CancelFunc
	shutdown *shutdown.Handler
}

func setup(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"), flagOverrides(c))
	if err != nil {
		return err
	}

	stderr := c.App.ErrWriter
	if stderr == nil {
		stderr = os.Stderr
	}
	stdout := c.App.Writer
	if stdout == nil {
		stdout = os.Stdout
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})
	if err != nil {
		return err
	}

	keys, err := keystore.Load(cfg.Keystore.Keys, cfg.Keystore.File)
	if err != nil {
		return err
	}
	log.Debug("configuration loaded", "endpoint", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), "dcids", keys.Len())

	decryptor, err := config.NewDecryptor(&cfg.Keystore)
	if err != nil {
		return err
	}

	metrics := metric.NewRegistry()
	client := service.NewClient(config.ToClientConfig(cfg), keys, decryptor,
		service.WithLogger(log), service.WithMetrics(metrics))

	rt := &runtime{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		client:   client,
		format:   format,
		progress: c.Bool("progress"),
		stdout:   stdout,
		stderr:   stderr,
		shutdown: shutdown.NewHandler(cfg.Server.Timeout),
	}
	rt.ctx, rt.stop = rt.shutdown.Context(c.Context)

	rt.shutdown.OnShutdown(func(context.Context) error {
		if cfg.Metrics.Textfile == "" {
			return nil
		}
		return metrics.WriteTextfile(cfg.Metrics.Textfile)
	})
	rt.shutdown.OnShutdown(func(context.Context) error {
		return client.Close()
	})

	c.App.Metadata[runtimeKey] = rt
	return nil
}

func teardown(c *cli.Context) error {
	rt, ok := c.App.Metadata[runtimeKey].(*runtime)
	if !ok {
		return nil
	}
	rt.stop()
	return rt.shutdown.Run()
}

func getRuntime(c *cli.Context) (*runtime, error) {
	if c.App.Metadata != nil {
		if rt, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("arclink-cli not initialised")
}

// print writes data to stdout in the selected format.
func (rt *runtime) print(data any) error {
	return output.NewFormatter(rt.format).Format(rt.stdout, data)
}

// run executes fn, with a spinner on stderr when requested.
func (rt *runtime) run(message string, fn func(ctx context.Context) error) error {
	if !rt.progress {
		return fn(rt.ctx)
	}
	sp := output.NewSpinner(rt.stderr, message)
	sp.Start()
	start := time.Now()
	err := fn(rt.ctx)
	if err != nil {
		sp.Fail(err.Error())
		return err
	}
	sp.Success(fmt.Sprintf("done in %s", time.Since(start).Round(time.Millisecond)))
	return nil
}
