package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/krisalay/callcache"
)

// ================= BENCHMARK =================

func main() {
	ctx := context.Background()

	// ---------------- Wrapper Config ----------------
	const (
		capacity    = 200000
		preloadKeys = 100000
		goroutines  = 200
		opsPerG     = 5000
	)

	fmt.Println("\n================ CALL CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Capacity     :", capacity)
	fmt.Println("Preload Keys :", preloadKeys)
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", opsPerG)
	fmt.Println("---------------------------------")

	cfg := callcache.DefaultConfig()
	cfg.TTL = 60 * time.Second
	cfg.MaxSize = capacity

	square, err := callcache.Wrap("square", func(_ context.Context, x int) (int, error) {
		return x * x, nil
	}, cfg)
	if err != nil {
		fmt.Println("setup failed:", err)
		return
	}
	defer square.Close()

	// ---------------- Preload ----------------
	fmt.Println("Preloading cache...")
	for i := 0; i < preloadKeys; i++ {
		_, _ = square.Invoke(ctx, i)
	}
	fmt.Println("Preload complete.")

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")

	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerG; j++ {
				_, _ = square.Invoke(ctx, (id*opsPerG+j)%preloadKeys)
			}
		}(i)
	}

	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Stored Entries   : %d\n", square.Info().Size)
	fmt.Println("=========================================")
}
