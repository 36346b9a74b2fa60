// Command statcache-bench drives a statcache.Cache against the
// simulated backend and prints the resulting fragment coverage, so the
// gap-walk/coalescing behavior can be inspected without a real
// time-series store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/grafana/statcache"
	"github.com/grafana/statcache/backend"
	"github.com/grafana/statcache/fragment"
)

var (
	seriesUUID  string
	pwe         int
	start       int64
	end         int64
	hint        int64
	delay       time.Duration
	fillTimeout time.Duration
	generation  uint64
	requests    int
)

func init() {
	flag.StringVar(&seriesUUID, "uuid", "", "series uuid to query (random if empty)")
	flag.IntVar(&pwe, "pwe", 20, "pointwidth exponent")
	flag.Int64Var(&start, "start", 0, "query start time, nanoseconds")
	flag.Int64Var(&end, "end", int64(3600)*1e9, "query end time, nanoseconds")
	flag.Int64Var(&hint, "hint", 0, "request_hint minimum backend-request width")
	flag.DurationVar(&delay, "delay", 50*time.Millisecond, "simulated backend response delay")
	flag.DurationVar(&fillTimeout, "fill-timeout", 0, "placeholder fill timeout (0 disables)")
	flag.Uint64Var(&generation, "generation", 1, "simulated backend generation")
	flag.IntVar(&requests, "requests", 1, "number of concurrent overlapping RequestData calls to issue, to exercise coalescing")
}

func main() {
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = level.NewFilter(logger, level.AllowInfo())

	id := uuid.New()
	if seriesUUID != "" {
		parsed, err := uuid.Parse(seriesUUID)
		if err != nil {
			level.Error(logger).Log("msg", "invalid -uuid", "err", err)
			os.Exit(1)
		}
		id = parsed
	}

	ds := &backend.Simulated{Delay: delay, Generation: generation}
	cache := statcache.New(statcache.Config{FillTimeout: fillTimeout}, ds, logger)

	level.Info(logger).Log("msg", "issuing requests", "uuid", id, "pwe", pwe, "start", start, "end", end, "hint", hint, "count", requests)

	var wg sync.WaitGroup
	results := make([][]*fragment.Fragment, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		i := i
		cache.RequestData(context.Background(), id, start, end, uint8(pwe), hint, func(frags []*fragment.Fragment) {
			results[i] = frags
			wg.Done()
		})
	}
	wg.Wait()

	for i, frags := range results {
		level.Info(logger).Log("msg", "request complete", "index", i, "fragments", len(frags))
	}

	printCoverage(results[0])
}

func printCoverage(frags []*fragment.Fragment) {
	fmt.Println()
	fmt.Println("fragment coverage:")

	w := tablewriter.NewWriter(os.Stdout)
	w.SetHeader([]string{"start", "end", "pwe", "points", "generation", "joins_prev", "joins_next"})

	rows := make([][]string, 0, len(frags))
	totalPoints := 0
	for _, f := range frags {
		totalPoints += f.Len()
		rows = append(rows, []string{
			fmt.Sprintf("%d", f.Start),
			fmt.Sprintf("%d", f.End),
			fmt.Sprintf("%d", f.Pwe),
			fmt.Sprintf("%d", f.Len()),
			fmt.Sprintf("%d", f.Generation),
			fmt.Sprintf("%t", f.JoinsPrev),
			fmt.Sprintf("%t", f.JoinsNext),
		})
	}
	w.AppendBulk(rows)
	w.SetFooter([]string{"", "", "", fmt.Sprintf("%d", totalPoints), "", "", ""})
	w.Render()
}
