// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plan

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianPlan/bench"
	"github.com/AleutianAI/AleutianPlan/pkg/ux"
)

func runBench(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	problems, err := bench.LoadProblems(args[0])
	if err != nil {
		log.Fatalf("Error loading problems: %v", err)
	}

	configs := bench.DefaultConfigs()
	if suitePath != "" {
		configs, err = bench.LoadConfigs(suitePath)
		if err != nil {
			log.Fatalf("Error loading benchmark suite: %v", err)
		}
	}

	total := len(problems) * len(configs)
	spin := ux.NewProgressSpinner(fmt.Sprintf("Benchmarking %d problems under %d configs",
		len(problems), len(configs)), total)

	opts := []bench.RunnerOption{
		bench.WithLogger(logger.Slog()),
		bench.WithTimeout(benchTimeout),
		bench.WithWorkers(benchWorkers),
		bench.WithProgress(func(done, _ int) { spin.SetProgress(done) }),
	}
	if benchSeed != 0 {
		opts = append(opts, bench.WithSeed(benchSeed))
	}

	runner, err := bench.NewRunner(configs, opts...)
	if err != nil {
		log.Fatalf("Error building benchmark runner: %v", err)
	}

	spin.Start()
	report, err := runner.Run(ctx, problems)
	if err != nil {
		spin.StopWithError("Benchmark aborted")
		log.Fatalf("Benchmark failed: %v", err)
	}
	spin.StopWithSuccess(fmt.Sprintf("%d runs finished", total))

	report.PrintTable()

	if benchOut != "" {
		if err := report.WriteJSON(benchOut); err != nil {
			log.Fatalf("Error writing results: %v", err)
		}
		ux.Success("Results written to " + benchOut)
	}
}
