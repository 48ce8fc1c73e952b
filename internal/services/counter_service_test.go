package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/snapedits/api/internal/repositories"
)

type stubCounterRepository struct {
	mu             sync.Mutex
	values         map[string]int64
	nextFn         func(context.Context, string, int64) (int64, error)
	configureFn    func(context.Context, string, repositories.CounterConfig) error
	nextCalls      []counterCall
	configureCalls []configureCall
}

type counterCall struct {
	ID   string
	Step int64
}

type configureCall struct {
	ID  string
	Cfg repositories.CounterConfig
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.mu.Lock()
	s.nextCalls = append(s.nextCalls, counterCall{ID: counterID, Step: step})
	s.mu.Unlock()
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 0, nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.mu.Lock()
	s.configureCalls = append(s.configureCalls, configureCall{ID: counterID, Cfg: cfg})
	s.mu.Unlock()
	if s.configureFn != nil {
		return s.configureFn(ctx, counterID, cfg)
	}
	return nil
}

// increment simulates the repository's atomic counter for concurrency tests.
func (s *stubCounterRepository) increment(counterID string, step int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]int64)
	}
	if _, ok := s.values[counterID]; !ok {
		s.values[counterID] = 1000
	}
	if step <= 0 {
		step = 1
	}
	s.values[counterID] += step
	return s.values[counterID]
}

func TestCounterServiceNextFormatsAndConfigures(t *testing.T) {
	repo := &stubCounterRepository{}
	repo.nextFn = func(context.Context, string, int64) (int64, error) {
		return 42, nil
	}

	svc, err := NewCounterService(CounterServiceDeps{Repository: repo, Clock: func() time.Time {
		return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	}})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	ctx := context.Background()
	value, err := svc.Next(ctx, "jobs", "global", CounterGenerationOptions{
		Step:      5,
		Prefix:    "JOB-",
		PadLength: 4,
	})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if value.Value != 42 {
		t.Fatalf("expected raw value 42, got %d", value.Value)
	}
	if value.Formatted != "JOB-0042" {
		t.Fatalf("expected formatted JOB-0042, got %s", value.Formatted)
	}

	repo.mu.Lock()
	if len(repo.configureCalls) != 1 {
		t.Fatalf("expected configure called once, got %d", len(repo.configureCalls))
	}
	if repo.configureCalls[0].Cfg.Step != 5 {
		t.Fatalf("expected configure step 5, got %d", repo.configureCalls[0].Cfg.Step)
	}
	repo.mu.Unlock()
}

func TestCounterServiceMapsRepositoryErrors(t *testing.T) {
	repo := &stubCounterRepository{}
	repo.nextFn = func(context.Context, string, int64) (int64, error) {
		return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, "limit", nil)
	}

	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	_, err = svc.Next(context.Background(), "test", "limit", CounterGenerationOptions{})
	if !errors.Is(err, ErrCounterExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
}

func TestCounterServiceNextOrderNumber(t *testing.T) {
	repo := &stubCounterRepository{}
	repo.nextFn = func(_ context.Context, counterID string, step int64) (int64, error) {
		return repo.increment(counterID, step), nil
	}

	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	first, err := svc.NextOrderNumber(context.Background())
	if err != nil {
		t.Fatalf("next order number: %v", err)
	}
	if first != "SNP-1001" {
		t.Fatalf("expected first order number SNP-1001, got %s", first)
	}

	second, err := svc.NextOrderNumber(context.Background())
	if err != nil {
		t.Fatalf("next order number: %v", err)
	}
	if second != "SNP-1002" {
		t.Fatalf("expected second order number SNP-1002, got %s", second)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.nextCalls[0].ID != "orders:global" {
		t.Fatalf("expected counter id orders:global, got %s", repo.nextCalls[0].ID)
	}
	if repo.configureCalls[0].Cfg.InitialValue == nil || *repo.configureCalls[0].Cfg.InitialValue != 1000 {
		t.Fatalf("expected initial value 1000, got %+v", repo.configureCalls[0].Cfg)
	}
}

func TestCounterServiceNextInvoiceNumberScopedByYear(t *testing.T) {
	repo := &stubCounterRepository{}
	repo.nextFn = func(_ context.Context, counterID string, step int64) (int64, error) {
		return repo.increment(counterID, step), nil
	}

	current := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, err := NewCounterService(CounterServiceDeps{Repository: repo, Clock: func() time.Time {
		return current
	}})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	number, err := svc.NextInvoiceNumber(context.Background())
	if err != nil {
		t.Fatalf("next invoice number: %v", err)
	}
	if number != "SE-2026-1001" {
		t.Fatalf("expected first invoice number SE-2026-1001, got %s", number)
	}

	current = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	number, err = svc.NextInvoiceNumber(context.Background())
	if err != nil {
		t.Fatalf("next invoice number: %v", err)
	}
	if number != "SE-2027-1001" {
		t.Fatalf("expected new year to restart sequence, got %s", number)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.nextCalls[0].ID != "invoices:2026" {
		t.Fatalf("expected counter id invoices:2026, got %s", repo.nextCalls[0].ID)
	}
	if repo.nextCalls[1].ID != "invoices:2027" {
		t.Fatalf("expected counter id invoices:2027, got %s", repo.nextCalls[1].ID)
	}
}

func TestCounterServiceConcurrentOrderNumbersAreDistinct(t *testing.T) {
	repo := &stubCounterRepository{}
	repo.nextFn = func(_ context.Context, counterID string, step int64) (int64, error) {
		return repo.increment(counterID, step), nil
	}

	svc, err := NewCounterService(CounterServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}

	const workers = 20
	results := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := svc.NextOrderNumber(context.Background())
			if err != nil {
				t.Errorf("next order number: %v", err)
				return
			}
			results <- number
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, workers)
	for number := range results {
		if seen[number] {
			t.Fatalf("order number %s issued twice", number)
		}
		seen[number] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct numbers, got %d", workers, len(seen))
	}
}
