// Command tmsctl seeds the layer store, renders layer configs offline and
// publishes change events.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/tms-layers/internal/cache/configcache"
	"github.com/mohammed-shakir/tms-layers/internal/core/config"
	"github.com/mohammed-shakir/tms-layers/internal/coverage"
	"github.com/mohammed-shakir/tms-layers/internal/logger"
	h3mapper "github.com/mohammed-shakir/tms-layers/internal/mapper/h3"
	"github.com/mohammed-shakir/tms-layers/internal/service"
	"github.com/mohammed-shakir/tms-layers/internal/store"
)

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds what the subcommands share once the root pre-run has opened the
// store.
type cli struct {
	cfg      config.Config
	dbPath   string
	logLevel string
	logOut   io.Writer
	brokers  []string
	topic    string

	log   *slog.Logger
	store *store.DB
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	c := &cli{cfg: config.FromEnv(), logOut: logOut}

	root := &cobra.Command{
		Use:   "tmsctl",
		Short: "tmsctl manages tile layer configs",
		Long: `tmsctl loads datasets and layers into the layer store and renders the
JSON documents map clients fetch, without running the HTTP service.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}
	root.PersistentFlags().StringVar(&c.dbPath, "db", c.cfg.DBPath, "sqlite database file (env DB_PATH)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level")
	root.PersistentFlags().StringSliceVar(&c.brokers, "brokers", c.cfg.Invalidation.Brokers, "kafka brokers (env KAFKA_BROKERS)")
	root.PersistentFlags().StringVar(&c.topic, "topic", c.cfg.Invalidation.Topic, "change event topic (env KAFKA_TOPIC)")

	root.AddCommand(c.seedCmd(), c.renderCmd(), c.listCmd(), c.publishCmd())
	return root
}

func (c *cli) open(cmd *cobra.Command, args []string) error {
	zl := logger.Build(logger.Config{
		Level:     c.logLevel,
		Console:   true,
		Service:   "tmsctl",
		Component: cmd.Name(),
	}, c.logOut)
	c.log = logger.NewSlog(&zl)

	st, err := store.Open(c.dbPath, c.log)
	if err != nil {
		return err
	}
	c.store = st
	return nil
}

func (c *cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}

// service builds a layer service with a local-only cache.
func (c *cli) service() *service.LayerService {
	docs := configcache.New(configcache.Config{}, nil, c.log)
	cov := coverage.New(h3mapper.New(), c.cfg.CoverageH3Res, c.log)
	return service.New(c.store, docs, cov, c.log)
}
