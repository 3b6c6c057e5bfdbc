// load-test replays a shift for many employees against POST /api/v1/scans:
// every employee checks in and out, so each one ends with exactly one closed session.
package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	url := pflag.String("url", "http://localhost:8080/api/v1/scans", "scan endpoint")
	numEmployees := pflag.Int("employees", 5000, "number of simulated employees")
	concurrency := pflag.Int("concurrency", 50, "concurrent employees (limits local port use)")
	checkIn := pflag.String("in", "08:04", "check-in clock time")
	checkOut := pflag.String("out", "16:56", "check-out clock time")
	pflag.Parse()

	totalRequests := *numEmployees * 2
	fmt.Printf("Starting load test: %d employees (%d requests) to %s with concurrency %d\n", *numEmployees, totalRequests, *url, *concurrency)

	client := &http.Client{Timeout: 10 * time.Second}
	var successCount, failCount int64

	var g errgroup.Group
	g.SetLimit(*concurrency)

	startTime := time.Now()
	for i := 0; i < *numEmployees; i++ {
		employeeID := fmt.Sprintf("load-test-emp-%d", i)
		g.Go(func() error {
			// Check-out must follow check-in for the same employee.
			for _, at := range []string{*checkIn, *checkOut} {
				payload := []byte(fmt.Sprintf(`{"employeeId":%q,"at":%q}`, employeeID, at))
				resp, err := client.Post(*url, "application/json", bytes.NewReader(payload))
				if err != nil {
					atomic.AddInt64(&failCount, 1)
					continue
				}
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					atomic.AddInt64(&successCount, 1)
				} else {
					atomic.AddInt64(&failCount, 1)
				}
				resp.Body.Close()
			}
			return nil
		})
	}
	_ = g.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())

	if failCount > 0 {
		os.Exit(1)
	}
}
