package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
	"github.com/gompdf/examsheet/internal/scoring"
)

// countingLayouter puts every item on its own page and counts calls
type countingLayouter struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLayouter) Layout(ctx context.Context, sheet model.Sheet) (*pagination.Plan, error) {
	l.calls.Add(1)
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	plan := &pagination.Plan{}
	for i := range sheet.Items {
		plan.Pages = append(plan.Pages, pagination.Page{Number: i + 1, Columns: [][]int{{i}}})
	}
	return plan, nil
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Settle(ctx); err != nil {
		t.Fatalf("Settle: %v", err)
	}
}

func images(names ...string) []model.Image {
	out := make([]model.Image, len(names))
	for i, n := range names {
		out[i] = model.Image{Ref: n + ".png", Name: n}
	}
	return out
}

func TestBurstLaysOutOnce(t *testing.T) {
	l := &countingLayouter{}
	s := New(l, model.Sheet{Title: "draft"}, WithDebounce(50*time.Millisecond))
	defer s.Close()

	s.SetTitle("Quiz 1")
	s.AddImages(images("a", "b", "c")...)
	s.SetConfig(model.LayoutConfig{Layout: model.LayoutTwoColumn, Spacing: 10})
	settle(t, s)

	if got := l.calls.Load(); got != 1 {
		t.Fatalf("layout ran %d times, want 1", got)
	}
	res, ok := s.Result()
	if !ok {
		t.Fatal("no current result after settle")
	}
	if res.Revision != s.Revision() || res.Sheet.Title != "Quiz 1" || len(res.Plan.Pages) != 3 {
		t.Fatalf("result = %+v", res)
	}
	if res.Sheet.Config.Layout != model.LayoutTwoColumn || res.Sheet.Config.ImageSize != model.DefaultScale {
		t.Fatalf("config = %+v", res.Sheet.Config)
	}
}

func TestChangeDuringLayoutSupersedes(t *testing.T) {
	l := &countingLayouter{gate: make(chan struct{})}
	var mu sync.Mutex
	var published []uint64
	s := New(l, model.Sheet{Title: "t"},
		WithDebounce(time.Millisecond),
		OnLayout(func(r Result) {
			mu.Lock()
			published = append(published, r.Revision)
			mu.Unlock()
		}))
	defer s.Close()

	// wait for the first layout to block inside the layouter
	deadline := time.Now().Add(5 * time.Second)
	for l.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("layout never started")
		}
		time.Sleep(time.Millisecond)
	}
	if s.Plan() != nil {
		t.Fatal("plan published before layout finished")
	}

	s.AddImages(images("x")...)
	close(l.gate)
	settle(t, s)

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 1 || published[0] != s.Revision() {
		t.Fatalf("published revisions %v, current %d", published, s.Revision())
	}
	if p := s.Plan(); p == nil || len(p.Pages) != 1 {
		t.Fatalf("plan = %+v", p)
	}
}

func TestItemEdits(t *testing.T) {
	s := New(&countingLayouter{}, model.Sheet{Title: "t", Config: model.LayoutConfig{ImageSize: 70}},
		WithDebounce(time.Millisecond))
	defer s.Close()

	s.AddImages(images("c", "a", "b")...)
	items := s.Sheet().Items
	if len(items) != 3 || items[0].Scale != 70 {
		t.Fatalf("items = %+v", items)
	}

	if err := s.MoveItem(items[2].ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.SetScale(items[1].ID, 5); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAnswer(items[0].ID, "B"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetScore(items[0].ID, -3); err != nil {
		t.Fatal(err)
	}

	got := s.Sheet().Items
	if got[0].ID != items[2].ID || got[1].ID != items[0].ID {
		t.Fatalf("order after move = %v", []string{got[0].Name, got[1].Name, got[2].Name})
	}
	for i, it := range got {
		if it.Order != i {
			t.Fatalf("item %d has order %d", i, it.Order)
		}
	}
	if got[2].Scale != model.MinScale {
		t.Fatalf("scale = %d, want clamp to %d", got[2].Scale, model.MinScale)
	}
	if got[1].Answer != "B" || got[1].Score != 0 {
		t.Fatalf("edited item = %+v", got[1])
	}

	s.SortItems(model.SortByName, false)
	got = s.Sheet().Items
	if got[0].Name != "a" || got[2].Name != "c" {
		t.Fatalf("sorted = %v", []string{got[0].Name, got[1].Name, got[2].Name})
	}

	rev := s.Revision()
	if err := s.RemoveItem("nope"); !errors.Is(err, model.ErrItemNotFound) {
		t.Fatalf("RemoveItem err = %v", err)
	}
	if s.Revision() != rev {
		t.Fatal("failed edit bumped the revision")
	}
	if err := s.RemoveItem(got[0].ID); err != nil {
		t.Fatal(err)
	}
	if len(s.Sheet().Items) != 2 {
		t.Fatal("item not removed")
	}

	s.AutoDistribute()
	if total := scoring.Total(s.Sheet().Items); total != model.TotalScore {
		t.Fatalf("total after distribute = %d", total)
	}
	settle(t, s)
}

type examSaver struct {
	saved []model.Exam
}

func (f *examSaver) SaveExam(_ context.Context, e model.Exam) (model.Exam, error) {
	f.saved = append(f.saved, e)
	return e, nil
}

type noteSaver struct{ got model.WrongNote }

func (f *noteSaver) SaveWrongNote(_ context.Context, n model.WrongNote) (model.WrongNote, error) {
	f.got = n
	return n, nil
}

func TestSaveExam(t *testing.T) {
	s := New(&countingLayouter{}, model.Sheet{Title: "Final"}, WithDebounce(time.Millisecond))
	defer s.Close()
	s.AddImages(images("a", "b", "c")...)
	if err := s.SetScore(s.Sheet().Items[0].ID, 40); err != nil {
		t.Fatal(err)
	}

	saver := &examSaver{}
	ctx := context.Background()
	if _, err := s.SaveExam(ctx, saver, model.Exam{ID: "e1"}, true); !errors.Is(err, model.ErrNoClass) {
		t.Fatalf("save without class err = %v", err)
	}

	got, err := s.SaveExam(ctx, saver, model.Exam{ID: "e1", ClassID: "c1"}, true)
	if err != nil {
		t.Fatalf("SaveExam: %v", err)
	}
	scores := []int{got.Items[0].Score, got.Items[1].Score, got.Items[2].Score}
	if scores[0] != 40 || scores[1] != 30 || scores[2] != 30 {
		t.Fatalf("scores = %v", scores)
	}
	if got.Title != "Final" || got.ClassID != "c1" {
		t.Fatalf("saved = %+v", got)
	}
	if scoring.Total(s.Sheet().Items) != model.TotalScore {
		t.Fatal("distributed scores not written back to the session")
	}

	notes := &noteSaver{}
	if _, err := s.SaveWrongNote(ctx, notes, model.WrongNote{ID: "n1", StudentID: "s1"}, false); err != nil {
		t.Fatalf("SaveWrongNote: %v", err)
	}
	if notes.got.Title != "Final" || len(notes.got.Items) != 3 {
		t.Fatalf("note = %+v", notes.got)
	}
	settle(t, s)
}

func TestCloseStopsLayout(t *testing.T) {
	l := &countingLayouter{}
	s := New(l, model.Sheet{Title: "t"}, WithDebounce(time.Hour))
	s.Close()
	s.SetTitle("after close")
	settle(t, s)
	if l.calls.Load() != 0 {
		t.Fatal("layout ran after Close")
	}
	if s.Sheet().Title != "after close" {
		t.Fatal("sheet not readable after Close")
	}
}
