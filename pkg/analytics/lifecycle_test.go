package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/models"
)

type fakeLifecycleStore struct {
	records []IssueRecord
}

func (s *fakeLifecycleStore) ActiveIssues(_ context.Context, product models.Product) ([]IssueRecord, error) {
	var out []IssueRecord
	for _, r := range s.records {
		if r.Product == product && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeLifecycleStore) ResolvedIssues(_ context.Context, product models.Product) ([]IssueRecord, error) {
	var out []IssueRecord
	for _, r := range s.records {
		if r.Product == product && !r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeLifecycleStore) Open(_ context.Context, record IssueRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *fakeLifecycleStore) Resolve(_ context.Context, id string, at time.Time) error {
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].IsActive = false
			resolved := at
			s.records[i].ResolvedAt = &resolved
		}
	}
	return nil
}

func newTestTracker(store LifecycleStore, now time.Time) *Tracker {
	t := NewTracker(store)
	t.now = func() time.Time { return now }
	return t
}

func TestReconcileOpensAndResolves(t *testing.T) {
	ctx := context.Background()
	store := &fakeLifecycleStore{}
	day1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tracker := newTestTracker(store, day1)
	opened, resolved, err := tracker.Reconcile(ctx, models.ProductIntune, []string{"Sync Issues", "Enrollment"})
	if err != nil {
		t.Fatal(err)
	}
	if len(opened) != 2 || len(resolved) != 0 {
		t.Fatalf("first cycle: opened %v, resolved %v", opened, resolved)
	}

	// Next cycle: Enrollment no longer emerging, Policy appears.
	day5 := day1.AddDate(0, 0, 4)
	tracker = newTestTracker(store, day5)
	opened, resolved, err = tracker.Reconcile(ctx, models.ProductIntune, []string{"Sync Issues", "Policy"})
	if err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || opened[0] != "Policy" {
		t.Errorf("expected Policy opened, got %v", opened)
	}
	if len(resolved) != 1 || resolved[0] != "Enrollment" {
		t.Errorf("expected Enrollment resolved, got %v", resolved)
	}

	active, _ := store.ActiveIssues(ctx, models.ProductIntune)
	if len(active) != 2 {
		t.Errorf("expected 2 active records, got %d", len(active))
	}
}

func TestReconcileIsNoOpWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &fakeLifecycleStore{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tracker := newTestTracker(store, now)
	if _, _, err := tracker.Reconcile(ctx, models.ProductDefender, []string{"Alerts"}); err != nil {
		t.Fatal(err)
	}

	opened, resolved, err := tracker.Reconcile(ctx, models.ProductDefender, []string{"Alerts"})
	if err != nil {
		t.Fatal(err)
	}
	if len(opened) != 0 || len(resolved) != 0 {
		t.Errorf("expected no-op, got opened %v resolved %v", opened, resolved)
	}
	if len(store.records) != 1 {
		t.Errorf("expected a single record, got %d", len(store.records))
	}
}

func TestReconcileIsolatesProducts(t *testing.T) {
	ctx := context.Background()
	store := &fakeLifecycleStore{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tracker := newTestTracker(store, now)
	if _, _, err := tracker.Reconcile(ctx, models.ProductIntune, []string{"Sync Issues"}); err != nil {
		t.Fatal(err)
	}

	// Same topic for a different product opens its own record and does not
	// resolve Intune's.
	opened, resolved, err := tracker.Reconcile(ctx, models.ProductDefender, []string{"Sync Issues"})
	if err != nil {
		t.Fatal(err)
	}
	if len(opened) != 1 || len(resolved) != 0 {
		t.Errorf("expected one open, no resolves, got %v / %v", opened, resolved)
	}
	intuneActive, _ := store.ActiveIssues(ctx, models.ProductIntune)
	if len(intuneActive) != 1 {
		t.Errorf("Intune record affected by Defender reconcile")
	}
}

func TestLifespanDaysFloorsAtOne(t *testing.T) {
	opened := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sameDay := opened.Add(3 * time.Hour)
	record := IssueRecord{BecameEmergingAt: opened, ResolvedAt: &sameDay}
	if got := record.LifespanDays(); got != 1 {
		t.Errorf("same-day lifespan = %d, want 1", got)
	}

	later := opened.AddDate(0, 0, 5)
	record.ResolvedAt = &later
	if got := record.LifespanDays(); got != 5 {
		t.Errorf("5-day lifespan = %d, want 5", got)
	}
}

func TestAverageLifespanDays(t *testing.T) {
	ctx := context.Background()
	store := &fakeLifecycleStore{}
	opened := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	day2 := opened.AddDate(0, 0, 2)
	day5 := opened.AddDate(0, 0, 5)
	store.records = []IssueRecord{
		{ID: "1", Product: models.ProductIntune, Topic: "A", BecameEmergingAt: opened, ResolvedAt: &day2},
		{ID: "2", Product: models.ProductIntune, Topic: "B", BecameEmergingAt: opened, ResolvedAt: &day5},
		{ID: "3", Product: models.ProductIntune, Topic: "C", BecameEmergingAt: opened, IsActive: true},
	}

	tracker := NewTracker(store)
	mean, err := tracker.AverageLifespanDays(ctx, models.ProductIntune)
	if err != nil {
		t.Fatal(err)
	}
	if mean != 3.5 {
		t.Errorf("average lifespan = %v, want 3.5", mean)
	}

	empty, err := tracker.AverageLifespanDays(ctx, models.ProductEntra)
	if err != nil {
		t.Fatal(err)
	}
	if empty != 0 {
		t.Errorf("expected 0 for product with no resolved issues, got %v", empty)
	}
}
