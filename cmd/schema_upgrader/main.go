package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/opst/modelfab/pkg/buildtime"
	"github.com/opst/modelfab/pkg/configs/server"
	kpool "github.com/opst/modelfab/pkg/conn/db/postgres/pool"
	"github.com/opst/modelfab/pkg/db/postgres/schema"
	"github.com/opst/modelfab/pkg/utils/try"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Config   string `flag:"config" help:"The path to the config file. The database in it is upgraded."`
	Database string `flag:"database" help:"The connection string of the database. It takes precedence over the config."`

	Schema  string `flag:"schema" help:"The path to the schema repository directory. The built-in schema is used when empty."`
	Check   bool   `flag:"check" help:"Show the schema version of the database, without upgrading."`
	Version bool   `flag:"version" help:"Print the version of this command."`
}

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	cmd := try.To(flarc.NewCommand(
		"database schema upgrader",
		Flag{
			Config:   os.Getenv("MODELFAB_CONFIG"),
			Database: os.Getenv("MODELFAB_DATABASE"),
			Schema:   os.Getenv("MODELFAB_SCHEMA"),
		},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[Flag], _ []any) error {
			flags := c.Flags()
			if flags.Version {
				_, err := fmt.Fprintln(c.Stdout(), buildtime.VersionString())
				return err
			}

			connstr, err := connectionString(flags)
			if err != nil {
				return err
			}
			pool, err := kpool.Connect(ctx, connstr)
			if err != nil {
				return err
			}
			defer pool.Close()

			sc := schema.Builtin(pool)
			if flags.Schema != "" {
				sc = schema.New(pool, flags.Schema)
			}

			before, err := sc.Version(ctx)
			if err != nil {
				return err
			}
			if flags.Check {
				_, err := fmt.Fprintf(c.Stdout(), "schema version: %d\n", before)
				return err
			}

			if err := sc.Upgrade(ctx); err != nil {
				return err
			}
			after, err := sc.Version(ctx)
			if err != nil {
				return err
			}
			logger.Printf("schema version: %d -> %d", before, after)
			return nil
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}

// connectionString picks the database from flags, or the config file.
func connectionString(flags Flag) (string, error) {
	if flags.Database != "" {
		return flags.Database, nil
	}
	if flags.Config == "" {
		return "", errors.New("-database or -config is required")
	}
	conf, err := server.Load(flags.Config)
	if err != nil {
		return "", err
	}
	if conf.Database() == "" {
		return "", fmt.Errorf("%s: database is not configured", flags.Config)
	}
	return conf.Database(), nil
}
