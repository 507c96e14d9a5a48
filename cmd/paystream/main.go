// Command paystream ingests a CSV stream of per-client transactions and
// prints the final account balances to stdout. Diagnostics for skipped
// records and rejected transactions go to stderr; the run only aborts on
// environment failures such as an unusable spill store.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paystream/paystream/pkg/csvio"
	"github.com/paystream/paystream/pkg/engine"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <transactions.csv>\n", os.Args[0])
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if err := run(os.Args[1], os.Stdout, logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(path string, out io.Writer, logger *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	eng := engine.New(engine.WithLogger(logger))
	eng.Start()

	reader := csvio.NewReader(file)
	for {
		tx, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// malformed rows are skipped; the rest of the input still counts
			logger.Warn("skipping malformed record", "error", err)
			continue
		}
		eng.Dispatch(tx)
	}

	balances, err := eng.Shutdown()
	if err != nil {
		return err
	}

	return csvio.NewWriter(out).WriteBalances(balances)
}
