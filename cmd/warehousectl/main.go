package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DQHuy2112/BE-QLKH-sub001/cmd/warehousectl/cli"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/app"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/movement"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/cache"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/db"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/sequence"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	root := cli.NewRootCommand(cli.Deps{
		Jobs: func(ctx context.Context) (cli.JobRunner, func() error, error) {
			c, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return nil, nil, err
			}
			return c, c.Close, nil
		},
		Codes: func(ctx context.Context) (cli.CodeIssuer, func() error, error) {
			pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 1})
			if err != nil {
				return nil, nil, err
			}
			if cfg.CodeSequenceBackend == "redis" {
				client, err := cache.New(ctx, cfg.RedisAddr)
				if err != nil {
					pool.Close()
					return nil, nil, err
				}
				gen := sequence.NewRedisGenerator(client).
					WithSeed(sequence.LedgerSeed(pool, movement.CodeTables()))
				return gen, func() error { pool.Close(); return client.Close() }, nil
			}
			return sequence.NewPostgresGenerator(pool), func() error { pool.Close(); return nil }, nil
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
