// Command quotecli computes a quote for a request read from a file or stdin
// and prints the response as JSON. With -verify it checks a quote instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/database"
	"github.com/icodeforyou/bessquote/quote"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	configPath := flag.String("config", "", "path to config file, engine defaults when empty")
	dbPath := flag.String("db", "", "database used for rate and benchmark lookups")
	verify := flag.Bool("verify", false, "verify a quote instead of computing one")
	timeout := flag.Duration("timeout", 30*time.Second, "max time for the computation")
	flag.Parse()

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelWarn,
			TimeFormat: time.RFC3339Nano,
		}),
	))

	if err := run(*configPath, *dbPath, *verify, *timeout, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string, verify bool, timeout time.Duration, input string) error {
	_ = godotenv.Load()

	cnfg := config.DefaultEngine()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cnfg = c.Engine
	}
	if key := os.Getenv("ENGINE_AUTHENTICATOR_SIGNING_KEY"); key != "" && cnfg.Authenticator.SigningKey == "" {
		cnfg.Authenticator.SigningKey = key
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var opts []quote.Option
	if dbPath != "" {
		db, err := database.New(ctx, dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, quote.WithCollaborators(quote.Collaborators{
			Rates:      db.LookupRate,
			Benchmarks: db.LookupBenchmark,
		}))
	}

	engine, err := quote.New(cnfg, opts...)
	if err != nil {
		return err
	}

	data, err := readInput(input)
	if err != nil {
		return err
	}

	if verify {
		q, err := quote.ParseQuote(data)
		if err != nil {
			return err
		}
		if err := engine.Verify(q); err != nil {
			return fmt.Errorf("quote does not verify: %w", err)
		}
		fmt.Printf("quote verified, confidence %s, signed %s\n", q.Confidence(), q.Timestamp().Format(time.RFC3339))
		return nil
	}

	var req quote.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("reading request: %w", err)
	}

	resp := engine.ComputeQuote(ctx, req)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if resp.Rejection != nil {
		return fmt.Errorf("rejected: %s", resp.Rejection.Reason)
	}
	return nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
