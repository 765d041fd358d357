// Benchmark tool for load-testing a running Harrier instance.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -requests 1000
//   go run cmd/benchmark/main.go -csv /path/to/members.csv
//
// With -csv, each row describes one member:
//   member_code,total_consumption,recent_purchases
// where recent_purchases is a semicolon-separated product id list.
// Without -csv, synthetic member codes are generated.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Member is one benchmark subject.
type Member struct {
	MemberCode       string   `json:"memberCode"`
	TotalConsumption float64  `json:"totalConsumption"`
	RecentPurchases  []string `json:"recentPurchases,omitempty"`
}

// RecommendRequest is the Harrier API request format.
type RecommendRequest struct {
	Member   Member `json:"member"`
	N        int    `json:"n,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// RecommendResponse is the subset of the response the benchmark reads.
type RecommendResponse struct {
	RequestID           string `json:"requestId"`
	TotalCount          int    `json:"totalCount"`
	QualityLevel        string `json:"qualityLevel"`
	IsDegraded          bool   `json:"isDegraded"`
	ReferenceValueScore struct {
		OverallScore float64 `json:"overallScore"`
	} `json:"referenceValueScore"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TotalProcessed int64
	TotalErrors    int64
	TotalDegraded  int64

	SumOverallScore int64 // score * 100, for atomic accumulation

	mu          sync.Mutex
	latenciesMs []float64
	byQuality   map[string]int64
}

func (m *Metrics) record(latencyMs float64, resp *RecommendResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latenciesMs = append(m.latenciesMs, latencyMs)
	if m.byQuality == nil {
		m.byQuality = make(map[string]int64)
	}
	m.byQuality[resp.QualityLevel]++
}

func main() {
	csvPath := flag.String("csv", "", "Path to member CSV file (optional)")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	requests := flag.Int("requests", 1000, "Total requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	n := flag.Int("n", 5, "Recommendations per request")
	strategy := flag.String("strategy", "hybrid", "Strategy: hybrid, ml_only or cf_only")
	verbose := flag.Bool("verbose", false, "Print each request result")
	flag.Parse()

	fmt.Println("==============================================")
	fmt.Println("  HARRIER BENCHMARK - Recommendation Serving")
	fmt.Println("==============================================")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Requests:    %d\n", *requests)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Strategy:    %s (n=%d)\n", *strategy, *n)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("Harrier is healthy")

	var members []Member
	if *csvPath != "" {
		loaded, err := readMemberCSV(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
		members = loaded
		fmt.Printf("Loaded %d members from %s\n", len(members), *csvPath)
	} else {
		members = syntheticMembers(*requests)
		fmt.Printf("Generated %d synthetic members\n", len(members))
	}

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(members, *baseURL, *requests, *workers, *n, *strategy, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readMemberCSV(path string) ([]Member, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var members []Member
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		code := record[colIndex["member_code"]]
		if code == "" {
			continue
		}

		consumption, _ := strconv.ParseFloat(record[colIndex["total_consumption"]], 64)

		var purchases []string
		if idx, ok := colIndex["recent_purchases"]; ok && record[idx] != "" {
			purchases = strings.Split(record[idx], ";")
		}

		members = append(members, Member{
			MemberCode:       code,
			TotalConsumption: consumption,
			RecentPurchases:  purchases,
		})
	}

	return members, nil
}

func syntheticMembers(count int) []Member {
	if count > 1000 {
		count = 1000
	}
	members := make([]Member, count)
	for i := range members {
		members[i] = Member{
			MemberCode:       fmt.Sprintf("CU%06d", i+1),
			TotalConsumption: float64((i%50)+1) * 500,
		}
	}
	return members
}

func runBenchmark(members []Member, baseURL string, requests, numWorkers, n int, strategy string, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan Member, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for member := range work {
				start := time.Now()
				result, err := recommend(client, baseURL, member, n, strategy)
				elapsedMs := float64(time.Since(start).Microseconds()) / 1000

				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", member.MemberCode, err)
					}
					continue
				}

				if result.IsDegraded {
					atomic.AddInt64(&metrics.TotalDegraded, 1)
				}
				atomic.AddInt64(&metrics.SumOverallScore, int64(result.ReferenceValueScore.OverallScore*100))
				metrics.record(elapsedMs, result)

				if verbose {
					fmt.Printf("%-10s | count: %d | quality: %-10s | score: %6.2f | degraded: %-5v | %.1fms\n",
						member.MemberCode,
						result.TotalCount,
						result.QualityLevel,
						result.ReferenceValueScore.OverallScore,
						result.IsDegraded,
						elapsedMs,
					)
				}
			}
		}()
	}

	for i := 0; i < requests; i++ {
		work <- members[i%len(members)]
	}
	close(work)

	wg.Wait()

	return metrics
}

func recommend(client *http.Client, baseURL string, member Member, n int, strategy string) (*RecommendResponse, error) {
	req := RecommendRequest{
		Member:   member,
		N:        n,
		Strategy: strategy,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p / 100 * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n==============================================")
	fmt.Println("              BENCHMARK RESULTS")
	fmt.Println("==============================================")

	succeeded := m.TotalProcessed - m.TotalErrors

	fmt.Printf("\nVOLUME\n")
	fmt.Printf("   Total Requests:   %d\n", m.TotalProcessed)
	fmt.Printf("   Succeeded:        %d\n", succeeded)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Degraded:         %d", m.TotalDegraded)
	if succeeded > 0 {
		fmt.Printf("  (%.2f%%)", 100*float64(m.TotalDegraded)/float64(succeeded))
	}
	fmt.Println()

	fmt.Printf("\nQUALITY\n")
	if succeeded > 0 {
		avgScore := float64(m.SumOverallScore) / 100 / float64(succeeded)
		fmt.Printf("   Avg Overall Score: %.2f\n", avgScore)
	}
	for _, level := range []string{"excellent", "good", "acceptable", "poor"} {
		if count, ok := m.byQuality[level]; ok {
			fmt.Printf("   %-11s %6d  (%.2f%%)\n", level+":", count, 100*float64(count)/float64(succeeded))
		}
	}

	fmt.Printf("\nLATENCY\n")
	sorted := append([]float64(nil), m.latenciesMs...)
	sort.Float64s(sorted)
	if len(sorted) > 0 {
		var sum float64
		for _, v := range sorted {
			sum += v
		}
		fmt.Printf("   Avg:  %8.2f ms\n", sum/float64(len(sorted)))
		fmt.Printf("   P50:  %8.2f ms\n", percentile(sorted, 50))
		fmt.Printf("   P95:  %8.2f ms\n", percentile(sorted, 95))
		fmt.Printf("   P99:  %8.2f ms\n", percentile(sorted, 99))
	}

	fmt.Printf("\nTHROUGHPUT\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("   Requests/sec:     %.2f\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	fmt.Println()
}
