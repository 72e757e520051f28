package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gompdf/examsheet/internal/model"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore persists exams, wrong-notes and the class roster
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// DB exposes the underlying handle
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error { return s.db.Close() }

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func encodeSheet(items []model.QuestionItem, cfg model.LayoutConfig) (string, string, error) {
	if items == nil {
		items = []model.QuestionItem{}
	}
	ij, err := json.Marshal(items)
	if err != nil {
		return "", "", err
	}
	cj, err := json.Marshal(cfg)
	if err != nil {
		return "", "", err
	}
	return string(ij), string(cj), nil
}

func decodeSheet(ij, cj string, items *[]model.QuestionItem, cfg *model.LayoutConfig) error {
	if err := json.Unmarshal([]byte(ij), items); err != nil {
		return fmt.Errorf("failed to decode items: %w", err)
	}
	if err := json.Unmarshal([]byte(cj), cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// SaveExam inserts or replaces the exam. Items are normalized and the
// timestamps maintained; the stored document is returned.
func (s *SQLStore) SaveExam(ctx context.Context, e model.Exam) (model.Exam, error) {
	if e.ID == "" {
		e.ID = model.NewID()
	}
	e.Config = e.Config.Normalized()
	e.Items = model.Normalize(e.Items, e.Config.ImageSize)
	now := s.now().UTC().Truncate(time.Millisecond)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
	e.UpdatedAt = now
	if err := putExam(ctx, s.db, e); err != nil {
		return model.Exam{}, fmt.Errorf("failed to save exam %s: %w", e.ID, err)
	}
	return e, nil
}

func putExam(ctx context.Context, q querier, e model.Exam) error {
	ij, cj, err := encodeSheet(e.Items, e.Config)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO exams (id,title,class_id,items_json,config_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, class_id=EXCLUDED.class_id,
			items_json=EXCLUDED.items_json, config_json=EXCLUDED.config_json, updated_at=EXCLUDED.updated_at`,
		e.ID, e.Title, e.ClassID, ij, cj, millis(e.CreatedAt), millis(e.UpdatedAt))
	return err
}

const examColumns = `id,title,class_id,items_json,config_json,created_at,updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanExam(row scanner) (model.Exam, error) {
	var (
		e            model.Exam
		ij, cj       string
		created, upd int64
	)
	if err := row.Scan(&e.ID, &e.Title, &e.ClassID, &ij, &cj, &created, &upd); err != nil {
		return model.Exam{}, err
	}
	if err := decodeSheet(ij, cj, &e.Items, &e.Config); err != nil {
		return model.Exam{}, err
	}
	e.CreatedAt, e.UpdatedAt = fromMillis(created), fromMillis(upd)
	return e, nil
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (model.Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Exam{}, fmt.Errorf("exam %s: %w", id, ErrNotFound)
		}
		return model.Exam{}, fmt.Errorf("failed to load exam %s: %w", id, err)
	}
	return e, nil
}

// ListExams returns the exams of a class, or every exam when classID is empty
func (s *SQLStore) ListExams(ctx context.Context, classID string) ([]model.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams`
	var args []any
	if classID != "" {
		query += ` WHERE class_id=$1`
		args = append(args, classID)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	defer rows.Close()
	out := []model.Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExam removes the exam and every wrong-note made from it
func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM wrong_notes WHERE exam_id=$1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
		if err != nil {
			return err
		}
		return affected(res, "exam", id)
	})
}

// SaveWrongNote inserts or replaces the wrong-note
func (s *SQLStore) SaveWrongNote(ctx context.Context, n model.WrongNote) (model.WrongNote, error) {
	if n.ID == "" {
		n.ID = model.NewID()
	}
	n.Config = n.Config.Normalized()
	n.Items = model.Normalize(n.Items, n.Config.ImageSize)
	now := s.now().UTC().Truncate(time.Millisecond)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.CreatedAt = n.CreatedAt.UTC().Truncate(time.Millisecond)
	n.UpdatedAt = now
	if err := putWrongNote(ctx, s.db, n); err != nil {
		return model.WrongNote{}, fmt.Errorf("failed to save wrong note %s: %w", n.ID, err)
	}
	return n, nil
}

func putWrongNote(ctx context.Context, q querier, n model.WrongNote) error {
	ij, cj, err := encodeSheet(n.Items, n.Config)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO wrong_notes (id,title,student_id,exam_id,items_json,config_json,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, student_id=EXCLUDED.student_id, exam_id=EXCLUDED.exam_id,
			items_json=EXCLUDED.items_json, config_json=EXCLUDED.config_json, updated_at=EXCLUDED.updated_at`,
		n.ID, n.Title, n.StudentID, n.ExamID, ij, cj, millis(n.CreatedAt), millis(n.UpdatedAt))
	return err
}

const noteColumns = `id,title,student_id,exam_id,items_json,config_json,created_at,updated_at`

func scanWrongNote(row scanner) (model.WrongNote, error) {
	var (
		n            model.WrongNote
		ij, cj       string
		created, upd int64
	)
	if err := row.Scan(&n.ID, &n.Title, &n.StudentID, &n.ExamID, &ij, &cj, &created, &upd); err != nil {
		return model.WrongNote{}, err
	}
	if err := decodeSheet(ij, cj, &n.Items, &n.Config); err != nil {
		return model.WrongNote{}, err
	}
	n.CreatedAt, n.UpdatedAt = fromMillis(created), fromMillis(upd)
	return n, nil
}

func (s *SQLStore) GetWrongNote(ctx context.Context, id string) (model.WrongNote, error) {
	n, err := scanWrongNote(s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM wrong_notes WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.WrongNote{}, fmt.Errorf("wrong note %s: %w", id, ErrNotFound)
		}
		return model.WrongNote{}, fmt.Errorf("failed to load wrong note %s: %w", id, err)
	}
	return n, nil
}

// ListWrongNotes filters by student and exam; empty arguments match all
func (s *SQLStore) ListWrongNotes(ctx context.Context, studentID, examID string) ([]model.WrongNote, error) {
	query := `SELECT ` + noteColumns + ` FROM wrong_notes WHERE 1=1`
	var args []any
	if studentID != "" {
		args = append(args, studentID)
		query += fmt.Sprintf(` AND student_id=$%d`, len(args))
	}
	if examID != "" {
		args = append(args, examID)
		query += fmt.Sprintf(` AND exam_id=$%d`, len(args))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wrong notes: %w", err)
	}
	defer rows.Close()
	out := []model.WrongNote{}
	for rows.Next() {
		n, err := scanWrongNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UsedItemIDs returns the exam item ids already placed in one of the
// student's wrong-notes for that exam
func (s *SQLStore) UsedItemIDs(ctx context.Context, studentID, examID string) (map[string]bool, error) {
	notes, err := s.ListWrongNotes(ctx, studentID, examID)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool)
	for _, n := range notes {
		for _, it := range n.Items {
			used[it.ID] = true
		}
	}
	return used, nil
}

func (s *SQLStore) DeleteWrongNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wrong_notes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wrong note %s: %w", id, err)
	}
	return affected(res, "wrong note", id)
}

func affected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
