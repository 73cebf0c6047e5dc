package collectors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// --- Registry ---

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewMockCollector("stock", time.Second)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := r.Get("stock")
	if !ok || got.Name() != "stock" {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get should miss an unregistered name")
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("dup", time.Second))
	if err := r.Register(NewMockCollector("dup", time.Second)); err == nil {
		t.Fatal("duplicate Register should fail")
	}
}

func TestRegistrySortedViews(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"volume", "k8s", "tailscale"} {
		_ = r.Register(NewMockCollector(n, time.Second))
	}

	want := []string{"k8s", "tailscale", "volume"}
	names := r.List()
	statuses := r.AllStatus()
	for i, n := range want {
		if names[i] != n {
			t.Errorf("List[%d] = %q, want %q", i, names[i], n)
		}
		if statuses[i].Name != n {
			t.Errorf("AllStatus[%d] = %q, want %q", i, statuses[i].Name, n)
		}
		if !statuses[i].Healthy || statuses[i].RunCount != 0 {
			t.Errorf("initial status %+v", statuses[i])
		}
	}
}

func TestRegistryLatestKeepsLastData(t *testing.T) {
	r := NewRegistry()
	m := NewMockCollector("stock", time.Hour, WithData("q1"))
	_ = r.Register(m)
	runner := NewRunner(r)

	if _, ok := r.Latest("stock"); ok {
		t.Fatal("Latest before any run")
	}

	runner.RunOnce(context.Background(), "stock")
	u, ok := r.Latest("stock")
	if !ok || u.Data != "q1" {
		t.Fatalf("Latest = %+v, %v", u, ok)
	}

	// A failed cycle without data keeps the previous value.
	m.SetData(nil)
	m.SetError(errors.New("rate limited"))
	runner.RunOnce(context.Background(), "stock")
	u, _ = r.Latest("stock")
	if u.Data != "q1" {
		t.Errorf("Latest.Data = %v, want q1", u.Data)
	}

	// A partial result is published alongside its error.
	m.SetData("q2")
	runner.RunOnce(context.Background(), "stock")
	u, _ = r.Latest("stock")
	if u.Data != "q2" || u.Error == nil {
		t.Errorf("Latest = %+v, want q2 with error", u)
	}
}

// --- MockCollector ---

func TestMockCollector(t *testing.T) {
	boom := errors.New("fail")
	m := NewMockCollector("opts", 5*time.Second, WithData("hello"), WithError(boom), WithHealthy(false))

	if m.Interval() != 5*time.Second || m.Healthy() {
		t.Errorf("Interval/Healthy = %v/%v", m.Interval(), m.Healthy())
	}
	data, err := m.Collect(context.Background())
	if data != "hello" || !errors.Is(err, boom) {
		t.Errorf("Collect = %v, %v", data, err)
	}

	m.SetInterval(time.Minute)
	m.SetHealthy(true)
	if m.Interval() != time.Minute || !m.Healthy() {
		t.Errorf("setters had no effect")
	}
	if m.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", m.CallCount())
	}
}

func TestMockCollectorCollectFunc(t *testing.T) {
	n := 0
	m := NewMockCollector("seq", time.Second, WithCollectFunc(func(context.Context) (any, error) {
		n++
		return fmt.Sprintf("call-%d", n), nil
	}))
	for i := 1; i <= 3; i++ {
		data, _ := m.Collect(context.Background())
		if want := fmt.Sprintf("call-%d", i); data != want {
			t.Errorf("Collect #%d = %v, want %s", i, data, want)
		}
	}
}

// --- Runner ---

func TestRunnerRecordsEveryCollector(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("alpha", 50*time.Millisecond, WithData("a")))
	_ = r.Register(NewMockCollector("beta", 50*time.Millisecond, WithError(errors.New("down"))))

	runner := NewRunner(r)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runner.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		a, _ := r.Status("alpha")
		b, _ := r.Status("beta")
		if a.RunCount > 0 && b.RunCount > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out; alpha %+v beta %+v", a, b)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if u, ok := r.Latest("alpha"); !ok || u.Data != "a" || u.Error != nil || u.Timestamp.IsZero() {
		t.Errorf("alpha latest = %+v, %v", u, ok)
	}
	if _, ok := r.Latest("beta"); ok {
		t.Error("beta published without data")
	}
	if b, _ := r.Status("beta"); b.Healthy || b.LastError == nil || b.ErrorCount == 0 {
		t.Errorf("beta status = %+v, want the error recorded", b)
	}
}

func TestRunnerCollectsImmediately(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("slow", time.Hour, WithData("first")))

	runner := NewRunner(r)
	_ = runner.Start(context.Background())
	defer runner.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if u, ok := r.Latest("slow"); ok && u.Data == "first" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("collector did not run on Start")
}

func TestRunnerStartTwice(t *testing.T) {
	runner := NewRunner(NewRegistry())
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer runner.Stop()
	if err := runner.Start(context.Background()); !errors.Is(err, ErrStarted) {
		t.Errorf("second Start = %v, want ErrStarted", err)
	}
}

func TestRunnerStopHaltsCollection(t *testing.T) {
	r := NewRegistry()
	calls := &callCounter{}
	_ = r.Register(NewMockCollector("tracked", 10*time.Millisecond,
		WithCollectFunc(func(context.Context) (any, error) {
			calls.inc()
			return nil, nil
		}),
	))

	runner := NewRunner(r)
	_ = runner.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	runner.Stop()
	runner.Stop()

	before := calls.get()
	time.Sleep(50 * time.Millisecond)
	if after := calls.get(); after != before {
		t.Errorf("collections continued after Stop: %d -> %d", before, after)
	}
}

func TestRunnerStopUnblocksCollector(t *testing.T) {
	r := NewRegistry()
	entered := make(chan struct{}, 1)
	_ = r.Register(NewMockCollector("blocking", time.Second,
		WithCollectFunc(func(ctx context.Context) (any, error) {
			entered <- struct{}{}
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	))

	runner := NewRunner(r)
	_ = runner.Start(context.Background())
	<-entered

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on an in-flight collection")
	}
}

func TestRunnerFollowsIntervalChanges(t *testing.T) {
	r := NewRegistry()
	m := NewMockCollector("backoff", time.Hour, WithData(1))
	_ = r.Register(m)
	m.SetInterval(10 * time.Millisecond)

	runner := NewRunner(r)
	_ = runner.Start(context.Background())
	time.Sleep(80 * time.Millisecond)
	runner.Stop()

	if m.CallCount() < 3 {
		t.Errorf("CallCount = %d, want >= 3", m.CallCount())
	}
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name        string
		collector   *MockCollector
		lookup      string
		wantData    any
		wantErr     bool
		wantHealthy bool
		wantErrors  int64
	}{
		{
			name:        "success",
			collector:   NewMockCollector("ok", time.Hour, WithData("val")),
			lookup:      "ok",
			wantData:    "val",
			wantHealthy: true,
		},
		{
			name:       "collector error",
			collector:  NewMockCollector("bad", time.Hour, WithError(errors.New("fail"))),
			lookup:     "bad",
			wantErr:    true,
			wantErrors: 1,
		},
		{
			name:      "unknown collector",
			collector: NewMockCollector("present", time.Hour),
			lookup:    "ghost",
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			_ = r.Register(tt.collector)
			runner := NewRunner(r)

			data, err := runner.RunOnce(context.Background(), tt.lookup)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if data != tt.wantData {
				t.Errorf("data = %v, want %v", data, tt.wantData)
			}
			if tt.lookup != tt.collector.Name() {
				return
			}

			s, _ := r.Status(tt.lookup)
			if s.RunCount != 1 || s.LastRun.IsZero() || s.LastLatency <= 0 {
				t.Errorf("status not updated: %+v", s)
			}
			if s.Healthy != tt.wantHealthy || s.ErrorCount != tt.wantErrors {
				t.Errorf("Healthy/ErrorCount = %v/%d, want %v/%d", s.Healthy, s.ErrorCount, tt.wantHealthy, tt.wantErrors)
			}
		})
	}
}

func TestRunnerHealth(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewMockCollector("good", time.Hour, WithData("ok")))
	_ = r.Register(NewMockCollector("bad", time.Hour, WithError(errors.New("fail"))))
	_ = r.Register(NewMockCollector("sick", time.Hour, WithHealthy(false)))
	runner := NewRunner(r)

	health := runner.Health()
	if !health["good"] || !health["bad"] || health["sick"] {
		t.Errorf("initial health = %v", health)
	}

	runner.RunOnce(context.Background(), "bad")
	if health = runner.Health(); health["bad"] || !health["good"] {
		t.Errorf("health after failure = %v", health)
	}

	if n := len(NewRunner(NewRegistry()).Health()); n != 0 {
		t.Errorf("empty registry health has %d entries", n)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = r.Register(NewMockCollector(fmt.Sprintf("c-%d", n), time.Second))
		}(i)
		go func() {
			defer wg.Done()
			_ = r.AllStatus()
			_, _ = r.Latest("c-0")
		}()
	}
	wg.Wait()

	if n := len(r.List()); n != 10 {
		t.Errorf("List has %d names, want 10", n)
	}
}

// --- helpers ---

type callCounter struct {
	mu    sync.Mutex
	count int64
}

func (c *callCounter) inc() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *callCounter) get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
