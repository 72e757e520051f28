package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/storage"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := Open(context.Background(), DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := NewSQLStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleExam(classID string) model.Exam {
	return model.Exam{
		Title:   "Midterm",
		ClassID: classID,
		Config:  model.LayoutConfig{Layout: model.LayoutTwoColumn, Spacing: 40, ImageSize: 80},
		Items: []model.QuestionItem{
			{ID: "q1", ImageRef: "blob:images/q1.png", Order: 5, Scale: 80, Answer: "3", Score: 60},
			{ID: "q2", ImageRef: "scans/q2.png", Order: 2, Scale: 500},
			{ImageRef: "scans/q3.png"},
		},
	}
}

func TestExamRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.SaveExam(ctx, sampleExam("c1"))
	if err != nil {
		t.Fatalf("SaveExam: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("saved = %+v", saved)
	}
	for i, it := range saved.Items {
		if it.Order != i || it.ID == "" {
			t.Fatalf("item %d not normalized: %+v", i, it)
		}
	}
	if saved.Items[1].Scale != model.MaxScale || saved.Items[2].Scale != 80 {
		t.Fatalf("scales = %d, %d", saved.Items[1].Scale, saved.Items[2].Scale)
	}

	got, err := s.GetExam(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if got.Title != "Midterm" || got.ClassID != "c1" || len(got.Items) != 3 {
		t.Fatalf("got = %+v", got)
	}
	if got.Config != saved.Config || got.Items[0].Answer != "3" || got.Items[0].Score != 60 {
		t.Fatalf("content mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("created = %v, want %v", got.CreatedAt, saved.CreatedAt)
	}

	created := saved.CreatedAt
	s.now = func() time.Time { return created.Add(time.Hour) }
	got.Title = "Final"
	updated, err := s.SaveExam(ctx, got)
	if err != nil {
		t.Fatalf("SaveExam update: %v", err)
	}
	again, _ := s.GetExam(ctx, saved.ID)
	if again.Title != "Final" || !again.CreatedAt.Equal(created) || !again.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Fatalf("after update = %+v", again)
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.GetExam(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetExam: %v", err)
	}
	if _, err := s.GetWrongNote(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetWrongNote: %v", err)
	}
	if err := s.DeleteExam(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteExam: %v", err)
	}
	if err := s.DeleteWrongNote(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteWrongNote: %v", err)
	}
	if err := s.DeleteClass(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteClass: %v", err)
	}
}

func TestDeleteExamCascadesToWrongNotes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	exam, _ := s.SaveExam(ctx, sampleExam("c1"))
	other, _ := s.SaveExam(ctx, sampleExam("c1"))

	note, err := model.NewWrongNote(exam, "s1", []string{"q2"}, "")
	if err != nil {
		t.Fatalf("NewWrongNote: %v", err)
	}
	note, err = s.SaveWrongNote(ctx, note)
	if err != nil {
		t.Fatalf("SaveWrongNote: %v", err)
	}
	keep, _ := model.NewWrongNote(other, "s1", []string{"q1"}, "")
	keep, _ = s.SaveWrongNote(ctx, keep)

	if err := s.DeleteExam(ctx, exam.ID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, err := s.GetWrongNote(ctx, note.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong note survived: %v", err)
	}
	if _, err := s.GetWrongNote(ctx, keep.ID); err != nil {
		t.Fatalf("unrelated note removed: %v", err)
	}
}

func TestListsAndUsedItems(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, _ := s.SaveExam(ctx, sampleExam("c1"))
	b, _ := s.SaveExam(ctx, sampleExam("c2"))

	exams, err := s.ListExams(ctx, "c1")
	if err != nil || len(exams) != 1 || exams[0].ID != a.ID {
		t.Fatalf("ListExams(c1) = %v, %v", exams, err)
	}
	if all, _ := s.ListExams(ctx, ""); len(all) != 2 {
		t.Fatalf("ListExams() = %d exams", len(all))
	}

	n1, _ := model.NewWrongNote(a, "s1", []string{"q1"}, "")
	n2, _ := model.NewWrongNote(a, "s1", []string{"q2"}, "")
	n3, _ := model.NewWrongNote(b, "s2", []string{"q1", "q2"}, "")
	for _, n := range []model.WrongNote{n1, n2, n3} {
		if _, err := s.SaveWrongNote(ctx, n); err != nil {
			t.Fatalf("SaveWrongNote: %v", err)
		}
	}

	notes, _ := s.ListWrongNotes(ctx, "s1", a.ID)
	if len(notes) != 2 {
		t.Fatalf("ListWrongNotes(s1, a) = %d", len(notes))
	}
	if byStudent, _ := s.ListWrongNotes(ctx, "s2", ""); len(byStudent) != 1 {
		t.Fatalf("ListWrongNotes(s2) = %d", len(byStudent))
	}

	used, err := s.UsedItemIDs(ctx, "s1", a.ID)
	if err != nil {
		t.Fatalf("UsedItemIDs: %v", err)
	}
	if !used["q1"] || !used["q2"] || len(used) != 2 {
		t.Fatalf("used = %v", used)
	}
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c1, err := s.SaveClass(ctx, model.Class{Name: "Math A"})
	if err != nil {
		t.Fatalf("SaveClass: %v", err)
	}
	c2, _ := s.SaveClass(ctx, model.Class{Name: "Math B"})
	if _, err := s.SaveClass(ctx, model.Class{}); err == nil {
		t.Fatal("expected error for unnamed class")
	}

	kim, err := s.SaveStudent(ctx, model.Student{Name: "Kim", ClassIDs: []string{c1.ID, c2.ID, c1.ID}})
	if err != nil {
		t.Fatalf("SaveStudent: %v", err)
	}
	if len(kim.ClassIDs) != 2 {
		t.Fatalf("class ids not deduplicated: %v", kim.ClassIDs)
	}
	if _, err := s.SaveStudent(ctx, model.Student{Name: "Lee", ClassIDs: []string{c2.ID}}); err != nil {
		t.Fatalf("SaveStudent: %v", err)
	}

	inA, _ := s.ListStudents(ctx, c1.ID)
	if len(inA) != 1 || inA[0].Name != "Kim" {
		t.Fatalf("ListStudents(c1) = %v", inA)
	}
	inB, _ := s.ListStudents(ctx, c2.ID)
	if len(inB) != 2 {
		t.Fatalf("ListStudents(c2) = %v", inB)
	}

	if err := s.DeleteClass(ctx, c2.ID); err != nil {
		t.Fatalf("DeleteClass: %v", err)
	}
	got, _ := s.GetStudent(ctx, kim.ID)
	if len(got.ClassIDs) != 1 || got.ClassIDs[0] != c1.ID {
		t.Fatalf("memberships after class delete = %v", got.ClassIDs)
	}
	classes, _ := s.ListClasses(ctx)
	if len(classes) != 1 {
		t.Fatalf("ListClasses = %v", classes)
	}

	exam, _ := s.SaveExam(ctx, sampleExam(c1.ID))
	note, _ := model.NewWrongNote(exam, kim.ID, []string{"q1"}, "")
	note, _ = s.SaveWrongNote(ctx, note)
	if err := s.DeleteStudent(ctx, kim.ID); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
	if _, err := s.GetWrongNote(ctx, note.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("student's note survived: %v", err)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	srcBlobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srcBlobs.Put(ctx, "images/q1.png", strings.NewReader("png-bytes")); err != nil {
		t.Fatal(err)
	}

	c, _ := src.SaveClass(ctx, model.Class{Name: "Math"})
	st, _ := src.SaveStudent(ctx, model.Student{Name: "Kim", ClassIDs: []string{c.ID}})
	exam, _ := src.SaveExam(ctx, sampleExam(c.ID))
	note, _ := model.NewWrongNote(exam, st.ID, []string{"q1"}, "")
	note, _ = src.SaveWrongNote(ctx, note)

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf, srcBlobs); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestStore(t)
	stale, _ := dst.SaveExam(ctx, sampleExam("old"))
	dstBlobs, _ := storage.NewFSStore(t.TempDir())
	if err := dst.Import(ctx, bytes.NewReader(buf.Bytes()), dstBlobs); err != nil {
		t.Fatalf("Import: %v", err)
	}

	if _, err := dst.GetExam(ctx, stale.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("import must overwrite existing data: %v", err)
	}
	got, err := dst.GetExam(ctx, exam.ID)
	if err != nil || got.Title != exam.Title || len(got.Items) != len(exam.Items) {
		t.Fatalf("imported exam = %+v, %v", got, err)
	}
	if !got.CreatedAt.Equal(exam.CreatedAt) {
		t.Fatalf("created = %v, want %v", got.CreatedAt, exam.CreatedAt)
	}
	if _, err := dst.GetWrongNote(ctx, note.ID); err != nil {
		t.Fatalf("imported note: %v", err)
	}
	students, _ := dst.ListStudents(ctx, c.ID)
	if len(students) != 1 || students[0].ID != st.ID {
		t.Fatalf("imported students = %v", students)
	}

	rc, err := dstBlobs.Get(ctx, "images/q1.png")
	if err != nil {
		t.Fatalf("imported blob: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "png-bytes" {
		t.Fatalf("blob = %q", data)
	}

	if err := dst.Import(ctx, strings.NewReader(`{"version":99}`), nil); err == nil {
		t.Fatal("expected error for unknown version")
	}
}
