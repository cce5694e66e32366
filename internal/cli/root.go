package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/technosupport/protect-dl/internal/config"
	"github.com/technosupport/protect-dl/internal/logging"
	"github.com/technosupport/protect-dl/internal/protect"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     *zap.SugaredLogger
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:   "protect-dl",
		Short: "Download recorded footage from a UniFi Protect console",
		Long: `Bulk-export recordings from a UniFi Protect console in hourly chunks.

Settings can also come from PROTECT_* environment variables or a YAML file
(default $HOME/.protect-dl.yaml).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.protect-dl.yaml)")
	pf.String("host", "", "console address, e.g. 192.168.1.1 or unvr.local:443")
	pf.String("user", "", "local console username")
	pf.String("pass", "", "local console password")
	pf.String("log-level", "info", "debug, info, warn or error")
	_ = a.v.BindPFlag(config.KeyHost, pf.Lookup("host"))
	_ = a.v.BindPFlag(config.KeyUser, pf.Lookup("user"))
	_ = a.v.BindPFlag(config.KeyPass, pf.Lookup("pass"))
	_ = a.v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))

	root.AddCommand(newCamerasCommand(a))
	root.AddCommand(newDownloadCommand(a))
	return root, a
}

// load resolves the configuration once flags are parsed. Commands that talk
// to the console validate it themselves, so help and completion work without
// credentials.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	a.cfg = config.Decode(a.v)

	if a.log == nil {
		logger, err := logging.New(a.cfg.LogLevel)
		if err != nil {
			return err
		}
		a.log = logger
	}
	return nil
}

// requireConsole rejects a command that needs a console before it dials one.
func (a *app) requireConsole(*cobra.Command, []string) error {
	return a.cfg.Validate()
}

// connect logs in and returns a client holding the session.
func (a *app) connect(ctx context.Context) (*protect.Client, error) {
	client, err := protect.New(protect.Options{
		Host:               a.cfg.Host,
		InsecureSkipVerify: true,
		Logger:             a.log,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Login(ctx, a.cfg.User, a.cfg.Pass); err != nil {
		return nil, err
	}
	return client, nil
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if a.log != nil {
			_ = a.log.Sync()
		}
		stop()
		os.Exit(1)
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
