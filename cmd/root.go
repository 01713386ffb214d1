package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zoravur/bookstore/internal/config"
	"github.com/zoravur/bookstore/internal/logutil"
)

// cli carries state shared by every subcommand once PersistentPreRunE ran.
type cli struct {
	v   *viper.Viper
	cfg config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "bookstore",
		Short:         "Bookstore catalog service",
		Long:          "Serves the author and book catalog over HTTP and pushes change notifications to websocket clients.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.setup(); err != nil {
				// no logger yet: zap.L() is still the no-op global
				fmt.Fprintf(cmd.ErrOrStderr(), "bookstore: %v\n", err)
				return err
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log encoding (json or console)")
	flags.String("store-driver", "pgx", "store driver (pgx, postgres or memory)")
	flags.String("dsn", "", "PostgreSQL connection string")
	mustBind(c.v, "config", flags.Lookup("config"))
	mustBind(c.v, "log.level", flags.Lookup("log-level"))
	mustBind(c.v, "log.format", flags.Lookup("log-format"))
	mustBind(c.v, "store.driver", flags.Lookup("store-driver"))
	mustBind(c.v, "store.dsn", flags.Lookup("dsn"))

	serve := newServeCmd(c)
	root.RunE = serve.RunE
	root.AddCommand(serve, newMigrateCmd(c))
	return root
}

func (c *cli) setup() error {
	cfg, err := config.Load(c.v)
	if err != nil {
		return err
	}
	log, err := logutil.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)
	c.cfg, c.log = cfg, log
	return nil
}

func mustBind(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
	}
}
