// Command accountd-loadtest measures Verify and Refresh throughput of the
// session ledger against Redis or an embedded miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type userState struct {
	id     string
	access string
	claims *goAccount.Claims
	mu     sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (verify + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt:", "ledger key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goAccount.DefaultConfig()
	cfg.JWT.AccessKey = []byte("loadtest-access-key-0123456789ab")
	cfg.JWT.RefreshKey = []byte("loadtest-refresh-key-0123456789a")
	cfg.Store.Prefix = *prefix

	engine, err := goAccount.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(goAccount.PlatformAdmin, goAccount.NewMemoryUserStore()).
		WithRoleStore(permission.NewDefaultMemoryStore()).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build: %v\n", err)
		os.Exit(1)
	}

	states := make([]*userState, *users)
	fmt.Printf("seeding %d sessions...\n", *users)
	startSeed := time.Now()
	for i := range states {
		st := &userState{id: fmt.Sprintf("lt-user-%d", i)}
		if err := st.issue(ctx, engine); err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = st
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		st := states[r.Intn(len(states))]
		st.mu.Lock()
		token := st.access
		st.mu.Unlock()
		_, err := engine.Verify(ctx, token, goAccount.AccessToken)
		return err
	})
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		st := states[r.Intn(len(states))]
		st.mu.Lock()
		defer st.mu.Unlock()
		pair, err := engine.Refresh(ctx, st.claims)
		if err != nil {
			return err
		}
		return st.adopt(ctx, engine, pair)
	})

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: verify_success=%d verify_failure=%d refresh_success=%d refresh_race_lost=%d\n",
		snap.Counters[goAccount.MetricVerifySuccess],
		snap.Counters[goAccount.MetricVerifyFailure],
		snap.Counters[goAccount.MetricRefreshSuccess],
		snap.Counters[goAccount.MetricRefreshRaceLost],
	)
}

func (s *userState) issue(ctx context.Context, engine *goAccount.Engine) error {
	pair, err := engine.IssuePair(ctx, goAccount.Identity{
		UserID:   s.id,
		UserType: goAccount.UserTypeAdmin,
		RoleID:   permission.RoleAdmin,
		RoleName: permission.RoleAdmin,
		Enabled:  true,
		Verified: true,
	})
	if err != nil {
		return err
	}
	return s.adopt(ctx, engine, pair)
}

func (s *userState) adopt(ctx context.Context, engine *goAccount.Engine, pair goAccount.TokenPair) error {
	claims, err := engine.Verify(ctx, pair.RefreshToken, goAccount.RefreshToken)
	if err != nil {
		return err
	}
	s.access = pair.AccessToken
	s.claims = claims
	return nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
