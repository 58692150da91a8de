package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/patrickwarner/adslotgate/internal/analytics"
	"github.com/patrickwarner/adslotgate/internal/config"
	"github.com/patrickwarner/adslotgate/internal/observability"
)

func main() {
	logger, err := observability.InitLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var id string
	var dsn string
	flag.StringVar(&id, "id", "", "request ID of a rendered page")
	flag.StringVar(&dsn, "dsn", "", "ClickHouse DSN")
	flag.Parse()

	if id == "" {
		fmt.Fprintln(os.Stderr, "id required")
		os.Exit(1)
	}
	if dsn == "" {
		dsn = config.Load().ClickHouseDSN
	}

	ctx := context.Background()
	a, err := analytics.InitClickHouse(ctx, dsn, 2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect clickhouse: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	rows, err := a.GetDecisionsByRequestID(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query decisions: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		fmt.Fprintf(os.Stderr, "encode decisions: %v\n", err)
		os.Exit(1)
	}
}
