package challenge

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"timed-quiz-service/internal/catalog"
	"timed-quiz-service/internal/domain"
)

type fakeSource struct {
	mu        sync.Mutex
	marker    domain.Millis
	markerErr error
	questions []domain.Question
	fetchErr  error
	fetches   int
}

func (f *fakeSource) QuestionsUpdatedAt(context.Context) (domain.Millis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marker, f.markerErr
}

func (f *fakeSource) ListQuestions(context.Context) ([]domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]domain.Question(nil), f.questions...), nil
}

func question(id string, section domain.Section, order int) domain.Question {
	return domain.Question{ID: id, Section: section, Order: order, Points: 10, Body: domain.MCQBody{Options: []string{"a", "b"}, CorrectOptionIndex: 1}}
}

func newTestCache(source QuestionSource, snapshots SnapshotStore, now time.Time) *QuestionCache {
	cache := NewQuestionCache(source, snapshots, nil)
	cache.now = func() time.Time { return now }
	return cache
}

func ids(questions []domain.Question) []string {
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		out = append(out, q.ID)
	}
	return out
}

func TestLoadIsIdempotentWithoutMarkerChange(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	source := &fakeSource{marker: domain.MillisOf(now) - 1000, questions: []domain.Question{question("p1", domain.SectionPython, 1)}}
	cache := newTestCache(source, NewMemorySnapshots(), now)

	first, err := cache.Load(context.Background(), domain.SectionPython, false)
	if err != nil || first.Source != SourceRemote {
		t.Fatalf("first load: %+v (%v)", first, err)
	}
	second, _ := cache.Load(context.Background(), domain.SectionPython, false)
	if second.Source != SourceCache {
		t.Fatalf("expected cache hit, got %s", second.Source)
	}
	if source.fetches != 1 {
		t.Fatalf("expected one fetch, got %d", source.fetches)
	}
}

func TestLoadRefetchesWhenMarkerIsNewer(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	snapshots := NewMemorySnapshots()
	_ = snapshots.SaveSnapshot(domain.Snapshot{Data: []domain.Question{question("old", domain.SectionC, 1)}, Timestamp: domain.MillisOf(now) - 5000})
	source := &fakeSource{marker: domain.MillisOf(now) - 1000, questions: []domain.Question{question("new", domain.SectionC, 1)}}

	res, _ := newTestCache(source, snapshots, now).Load(context.Background(), domain.SectionC, false)
	if res.Source != SourceRemote || ids(res.Questions)[0] != "new" {
		t.Fatalf("expected fresh fetch, got %+v", res)
	}
	stored, ok, _ := snapshots.LoadSnapshot()
	if !ok || stored.Timestamp != domain.MillisOf(now) || stored.Data[0].ID != "new" {
		t.Fatalf("snapshot not overwritten: %+v", stored)
	}
}

func TestUnknownMarkerTrustsSnapshot(t *testing.T) {
	snapshots := NewMemorySnapshots()
	_ = snapshots.SaveSnapshot(domain.Snapshot{Data: []domain.Question{question("cached", domain.SectionC, 1)}, Timestamp: 1})
	source := &fakeSource{markerErr: errors.New("offline")}

	res, _ := newTestCache(source, snapshots, time.Now()).Load(context.Background(), domain.SectionC, false)
	if res.Source != SourceCache || source.fetches != 0 {
		t.Fatalf("expected snapshot without fetch, got %s after %d fetches", res.Source, source.fetches)
	}
}

func TestFetchFailureFallsBack(t *testing.T) {
	snapshots := NewMemorySnapshots()
	_ = snapshots.SaveSnapshot(domain.Snapshot{Data: []domain.Question{
		question("c1", domain.SectionC, 2),
		question("common", domain.SectionCommon, 1),
		question("py", domain.SectionPython, 1),
	}, Timestamp: 1})
	source := &fakeSource{fetchErr: errors.New("503")}
	cache := newTestCache(source, snapshots, time.Now())

	res, _ := cache.Load(context.Background(), domain.SectionC, true)
	if res.Source != SourceSnapshotFallback || res.Warning == nil {
		t.Fatalf("expected snapshot fallback with warning, got %+v", res)
	}
	if got := ids(res.Questions); len(got) != 2 || got[0] != "common" || got[1] != "c1" {
		t.Fatalf("unexpected fallback questions %v", got)
	}

	empty := newTestCache(source, NewMemorySnapshots(), time.Now())
	res, _ = empty.Load(context.Background(), domain.SectionPython, false)
	if res.Source != SourceDefaults || res.Warning != nil || len(res.Questions) == 0 {
		t.Fatalf("expected silent defaults, got %+v", res)
	}
}

func TestEmptyRemoteUsesDefaults(t *testing.T) {
	source := &fakeSource{marker: 10}
	res, _ := newTestCache(source, NewMemorySnapshots(), time.UnixMilli(100)).Load(context.Background(), domain.SectionPython, false)
	if res.Source != SourceDefaults {
		t.Fatalf("expected defaults, got %s", res.Source)
	}
	want := len(FilterSection(catalog.Defaults(), domain.SectionPython))
	if len(res.Questions) != want {
		t.Fatalf("expected %d default Python questions, got %d", want, len(res.Questions))
	}
	for i, q := range res.Questions {
		if q.Order != i+1 {
			t.Fatalf("defaults not renumbered: %d at %d", q.Order, i)
		}
	}
}

func TestEmptySnapshotServesDefaults(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	snapshots := NewMemorySnapshots()
	source := &fakeSource{marker: domain.MillisOf(now) - 1000}
	cache := newTestCache(source, snapshots, now)

	if res, _ := cache.Load(context.Background(), domain.SectionC, false); res.Source != SourceDefaults {
		t.Fatalf("expected defaults on empty fetch, got %s", res.Source)
	}
	res, _ := cache.Load(context.Background(), domain.SectionC, false)
	if res.Source != SourceDefaults || len(res.Questions) == 0 {
		t.Fatalf("empty snapshot must serve defaults, got %+v", res)
	}
	if source.fetches != 1 {
		t.Fatalf("fresh empty snapshot should not refetch, got %d fetches", source.fetches)
	}

	source.marker = domain.MillisOf(now) + 1000
	source.fetchErr = errors.New("offline")
	res, _ = cache.Load(context.Background(), domain.SectionC, false)
	if res.Source != SourceDefaults || len(res.Questions) == 0 {
		t.Fatalf("empty snapshot fallback must serve defaults, got %+v", res)
	}
}

func TestRenumberIsDenseAndScopedToFilter(t *testing.T) {
	all := []domain.Question{
		question("five", domain.SectionC, 5),
		question("three", domain.SectionPython, 3),
		question("one", domain.SectionC, 1),
	}
	got := Renumber(FilterSection(all, domain.SectionC))
	if len(got) != 2 || got[0].ID != "one" || got[0].Order != 1 || got[1].ID != "five" || got[1].Order != 2 {
		t.Fatalf("unexpected renumbering %+v", got)
	}
	if all[0].Order != 5 {
		t.Fatalf("renumbering must not mutate the source set")
	}
}

func TestFileSnapshots(t *testing.T) {
	store, err := NewFileSnapshots(filepath.Join(t.TempDir(), "nested", SnapshotKey+".json"))
	if err != nil {
		t.Fatalf("new file snapshots: %v", err)
	}
	if _, ok, err := store.LoadSnapshot(); ok || err != nil {
		t.Fatalf("expected no snapshot, ok=%v err=%v", ok, err)
	}

	want := domain.Snapshot{Data: []domain.Question{question("q1", domain.SectionC, 1)}, Timestamp: 42}
	if err := store.SaveSnapshot(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.LoadSnapshot()
	if err != nil || !ok || got.Timestamp != 42 || len(got.Data) != 1 || got.Data[0].Type() != domain.TypeMCQ {
		t.Fatalf("unexpected snapshot %+v ok=%v err=%v", got, ok, err)
	}
}
