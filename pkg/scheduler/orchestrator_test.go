package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
	"github.com/iye-ms/msec-feedback/pkg/feedback"
)

type fakeRunner struct {
	name  string
	calls []models.Product
	err   error
}

func (f *fakeRunner) Name() string { return f.name }

func (f *fakeRunner) Run(_ context.Context, product models.Product) (models.IngestResult, error) {
	f.calls = append(f.calls, product)
	if f.err != nil {
		return models.IngestResult{Success: false, Message: f.err.Error()}, f.err
	}
	return models.IngestResult{Success: true, NewPosts: 1}, nil
}

type fakeRunStore struct {
	lastRuns map[models.Product]*feedback.IngestionRun
}

func (f *fakeRunStore) LastRun(_ context.Context, product models.Product) (*feedback.IngestionRun, error) {
	run, ok := f.lastRuns[product]
	if !ok {
		return nil, feedback.ErrNotFound
	}
	return run, nil
}

func newTestOrchestrator(runners []IngestRunner, runs RunStore, cooldown time.Duration) (*Orchestrator, *int) {
	o := NewOrchestrator(runners, runs, 2*time.Second, 2*time.Second, cooldown)
	sleeps := 0
	o.sleep = func(time.Duration) { sleeps++ }
	o.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return o, &sleeps
}

func TestRunAllCoversEveryProductAndSource(t *testing.T) {
	redditRunner := &fakeRunner{name: "reddit"}
	msqaRunner := &fakeRunner{name: "tech_community"}
	o, sleeps := newTestOrchestrator([]IngestRunner{redditRunner, msqaRunner}, &fakeRunStore{}, 0)

	results := o.RunAll(context.Background())

	if len(results) != len(models.Products) {
		t.Fatalf("expected %d product results, got %d", len(models.Products), len(results))
	}
	if len(redditRunner.calls) != len(models.Products) || len(msqaRunner.calls) != len(models.Products) {
		t.Errorf("runner calls = %d/%d, want %d each", len(redditRunner.calls), len(msqaRunner.calls), len(models.Products))
	}
	// One adapter delay per product plus a product delay between products.
	wantSleeps := len(models.Products) + len(models.Products) - 1
	if *sleeps != wantSleeps {
		t.Errorf("sleeps = %d, want %d", *sleeps, wantSleeps)
	}
	for product, result := range results {
		if result.Skipped {
			t.Errorf("product %s unexpectedly skipped", product)
		}
		if len(result.Sources) != 2 {
			t.Errorf("product %s has %d source results", product, len(result.Sources))
		}
	}
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	failing := &fakeRunner{name: "reddit", err: errors.New("upstream down")}
	healthy := &fakeRunner{name: "tech_community"}
	o, _ := newTestOrchestrator([]IngestRunner{failing, healthy}, &fakeRunStore{}, 0)

	results := o.RunAll(context.Background())

	for product, result := range results {
		if result.Failures["reddit"] == "" {
			t.Errorf("product %s missing reddit failure", product)
		}
		if _, ok := result.Sources["tech_community"]; !ok {
			t.Errorf("product %s missing healthy source result", product)
		}
	}
	if len(healthy.calls) != len(models.Products) {
		t.Errorf("healthy runner should still run for every product")
	}
}

func TestCooldownSkipsRecentlyIngestedProducts(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeRunStore{lastRuns: map[models.Product]*feedback.IngestionRun{
		models.ProductIntune: {Product: models.ProductIntune, LastIngestionTime: now.Add(-10 * time.Minute)},
		models.ProductEntra:  {Product: models.ProductEntra, LastIngestionTime: now.Add(-2 * time.Hour)},
	}}
	runner := &fakeRunner{name: "reddit"}
	o, _ := newTestOrchestrator([]IngestRunner{runner}, store, time.Hour)

	results := o.RunAll(context.Background())

	if !results[models.ProductIntune].Skipped {
		t.Error("intune should be skipped, last run 10m ago")
	}
	if results[models.ProductEntra].Skipped {
		t.Error("entra should run, last run 2h ago")
	}
	if results[models.ProductDefender].Skipped {
		t.Error("products with no run history should run")
	}
	for _, product := range runner.calls {
		if product == models.ProductIntune {
			t.Error("runner invoked for a product in cooldown")
		}
	}
}
