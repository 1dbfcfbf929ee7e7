// Command specialist-sim runs a set of simulated specialist services for
// local broker runs. The default profiles match the broker's default
// catalog (ports 9101-9103).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/quorumlabs/quorum/internal/simulator"
	"github.com/quorumlabs/quorum/pkg/logger"
)

// Default simulation constants.
const (
	defaultFailureRate = 0.1
	defaultOmitRate    = 0.05
	defaultMinLatency  = 50 * time.Millisecond
	defaultMaxLatency  = 400 * time.Millisecond
)

func main() {
	var (
		failureRate = flag.Float64("failure-rate", defaultFailureRate, "Probability of a simulated 500 per call")
		omitRate    = flag.Float64("omit-score-rate", defaultOmitRate, "Probability of omitting the score field per call")
		minLatency  = flag.Duration("min-latency", defaultMinLatency, "Minimum simulated processing latency")
		maxLatency  = flag.Duration("max-latency", defaultMaxLatency, "Maximum simulated processing latency")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profiles := []simulator.Profile{
		{
			ID:       "contract-analyzer",
			Addr:     ":9101",
			ScoreMin: 40,
			ScoreMax: 95,
			RiskWeights: map[string]float64{
				"LOW": 5, "MEDIUM": 3, "HIGH": 1.5, "CRITICAL": 0.5,
			},
			FailureRate:   *failureRate,
			OmitScoreRate: *omitRate,
			MinLatency:    *minLatency,
			MaxLatency:    *maxLatency,
		},
		{
			ID:       "sentiment-analyzer",
			Addr:     ":9102",
			ScoreMin: 20,
			ScoreMax: 90,
			RiskWeights: map[string]float64{
				"LOW": 4, "MEDIUM": 4, "HIGH": 2,
			},
			FailureRate:   *failureRate,
			OmitScoreRate: *omitRate,
			MinLatency:    *minLatency,
			MaxLatency:    *maxLatency,
		},
		{
			ID:       "market-analyzer",
			Addr:     ":9103",
			ScoreMin: 50,
			ScoreMax: 100,
			RiskWeights: map[string]float64{
				"LOW": 6, "MEDIUM": 3, "HIGH": 1,
			},
			FailureRate:   *failureRate,
			OmitScoreRate: *omitRate,
			MinLatency:    *minLatency,
			MaxLatency:    *maxLatency,
		},
	}

	var wg sync.WaitGroup
	for _, p := range profiles {
		wg.Add(1)
		go func(p simulator.Profile) {
			defer wg.Done()
			if err := simulator.New(p).Start(ctx); err != nil {
				log.Error(ctx, "simulated specialist stopped", logger.String("id", p.ID), logger.Error(err))
			}
		}(p)
	}

	wg.Wait()
	log.Info(ctx, "all simulated specialists stopped")
}
