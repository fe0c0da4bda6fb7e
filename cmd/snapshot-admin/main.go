// Package main contains snapshot-admin, a maintenance tool for the
// snapshots stored in MongoDB GridFS buckets.
//
// The MongoDB connection is configured through SNAPSHOT_* environment
// variables (see mongodb.ConfigFromEnv).
//
// Usage:
//
//	snapshot-admin get <aggregate-type> <aggregate-id>
//	snapshot-admin prune <aggregate-type> <aggregate-id>
//	snapshot-admin delete <aggregate-type> [aggregate-id]
//	snapshot-admin create-indexes [bucket...]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/get-eventually/go-eventually-snapshot/logger/zaplogger"
	"github.com/get-eventually/go-eventually-snapshot/mongodb"
	"github.com/get-eventually/go-eventually-snapshot/serde"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
)

const envPrefix = "SNAPSHOT"

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("snapshot-admin", flag.ContinueOnError)
	verbose := flags.Bool("verbose", false, "enable debug logs")

	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("snapshot-admin: %w", err)
	}

	cmd, err := parseCommand(flags.Args())
	if err != nil {
		return err
	}

	config, err := mongodb.ConfigFromEnv(envPrefix)
	if err != nil {
		return fmt.Errorf("snapshot-admin: failed to parse config, %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	if *verbose {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	log, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("snapshot-admin: failed to initialize logger, %w", err)
	}

	//nolint:errcheck // No need for this error to come up if it happens.
	defer log.Sync()

	client, err := mongodb.Connect(ctx, config)
	if err != nil {
		return fmt.Errorf("snapshot-admin: %w", err)
	}

	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Error("failed to disconnect from mongodb", zap.Error(err))
		}
	}()

	store, err := mongodb.NewSnapshotStore(client, config, serde.Raw(),
		snapshot.WithLogger[[]byte](zaplogger.Wrap(log)),
	)
	if err != nil {
		return fmt.Errorf("snapshot-admin: %w", err)
	}

	return cmd.exec(ctx, environment{
		config: config,
		db:     client.Database(config.DatabaseName),
		store:  store,
		stdout: stdout,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
