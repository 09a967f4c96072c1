// Command seed-scores posts randomized score submissions against a
// running scorekeep instance and prints the resulting top of the
// leaderboard. Useful for demos and smoke-testing a deployment.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Default configuration constants.
const (
	defaultNumScores = 1000
	defaultTopN      = 20
	defaultTimeout   = 30 * time.Second
	defaultRunLimit  = 10 * time.Minute
	defaultStage     = 1
	maxScore         = 100_000
	maxClearTime     = 600.0
	maxWave          = 50
)

var gameModes = []string{"Survivor", "TimeAttack", "Endless"}

type submission struct {
	UserID          string  `json:"user_id"`
	GameMode        string  `json:"game_mode"`
	StageID         int     `json:"stage_id"`
	Score           int64   `json:"score"`
	ClearTime       float64 `json:"clear_time"`
	WaveReached     int     `json:"wave_reached"`
	EnemiesDefeated int     `json:"enemies_defeated"`
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numScores = flag.Int("scores", defaultNumScores, "Number of submissions to post")
		users     = flag.Int("users", 100, "Number of distinct users to simulate")
		mode      = flag.String("mode", "", "Game mode to use (default: random known mode)")
		stage     = flag.Int("stage", defaultStage, "Stage id to submit against")
		topN      = flag.Int("top", defaultTopN, "Number of top entries to fetch afterwards")
		workers   = flag.Int("workers", runtime.NumCPU()*2, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	client := &http.Client{Timeout: *timeout}
	rng := rand.New(rand.NewSource(*seed))

	jobs := make(chan submission, *workers)
	var posted, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				if err := postScore(ctx, client, *baseURL, sub); err != nil {
					failed.Add(1)
					continue
				}
				posted.Add(1)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < *numScores; i++ {
		m := *mode
		if m == "" {
			m = gameModes[rng.Intn(len(gameModes))]
		}
		jobs <- submission{
			UserID:          fmt.Sprintf("user-%04d", rng.Intn(*users)),
			GameMode:        m,
			StageID:         *stage,
			Score:           rng.Int63n(maxScore),
			ClearTime:       rng.Float64() * maxClearTime,
			WaveReached:     rng.Intn(maxWave),
			EnemiesDefeated: rng.Intn(1000),
		}
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("posted %d submissions (%d failed) in %s\n",
		posted.Load(), failed.Load(), time.Since(start).Round(time.Millisecond))

	showMode := *mode
	if showMode == "" {
		showMode = gameModes[0]
	}
	if err := printTop(ctx, client, *baseURL, showMode, *stage, *topN); err != nil {
		os.Stderr.WriteString("failed to fetch leaderboard: " + err.Error() + "\n")
	}
}

func postScore(ctx context.Context, client *http.Client, baseURL string, sub submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/scores", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func printTop(ctx context.Context, client *http.Client, baseURL, mode string, stage, n int) error {
	url := fmt.Sprintf("%s/leaderboard?game_mode=%s&stage_id=%d&limit=%d", baseURL, mode, stage, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var entries []struct {
		Rank      int     `json:"rank"`
		UserID    string  `json:"user_id"`
		Score     int64   `json:"score"`
		ClearTime float64 `json:"clear_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return err
	}

	fmt.Printf("top %d on %s stage %d:\n", n, mode, stage)
	for _, e := range entries {
		fmt.Printf("  #%-4d %-12s score=%-8d clear=%.1fs\n", e.Rank, e.UserID, e.Score, e.ClearTime)
	}
	return nil
}
