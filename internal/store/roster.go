package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/gompdf/examsheet/internal/model"
)

func (s *SQLStore) SaveClass(ctx context.Context, c model.Class) (model.Class, error) {
	if c.ID == "" {
		c.ID = model.NewID()
	}
	if c.Name == "" {
		return model.Class{}, model.ErrEmptyTitle
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO classes (id,name) VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`, c.ID, c.Name)
	if err != nil {
		return model.Class{}, fmt.Errorf("failed to save class %s: %w", c.ID, err)
	}
	return c, nil
}

func (s *SQLStore) GetClass(ctx context.Context, id string) (model.Class, error) {
	var c model.Class
	err := s.db.QueryRowContext(ctx, `SELECT id,name FROM classes WHERE id=$1`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Class{}, fmt.Errorf("class %s: %w", id, ErrNotFound)
	}
	return c, err
}

func (s *SQLStore) ListClasses(ctx context.Context) ([]model.Class, error) {
	return listClasses(ctx, s.db)
}

func listClasses(ctx context.Context, q querier) ([]model.Class, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,name FROM classes ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()
	out := []model.Class{}
	for rows.Next() {
		var c model.Class
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteClass removes the class and its enrollments. Exams keep their
// class id so they stay reachable through ListExams("").
func (s *SQLStore) DeleteClass(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM student_classes WHERE class_id=$1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE id=$1`, id)
		if err != nil {
			return err
		}
		return affected(res, "class", id)
	})
}

// SaveStudent upserts the student and replaces its class memberships
func (s *SQLStore) SaveStudent(ctx context.Context, st model.Student) (model.Student, error) {
	if st.ID == "" {
		st.ID = model.NewID()
	}
	if st.Name == "" {
		return model.Student{}, model.ErrEmptyTitle
	}
	st.ClassIDs = dedupe(st.ClassIDs)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return putStudent(ctx, tx, st)
	})
	if err != nil {
		return model.Student{}, fmt.Errorf("failed to save student %s: %w", st.ID, err)
	}
	return st, nil
}

func putStudent(ctx context.Context, q querier, st model.Student) error {
	if _, err := q.ExecContext(ctx, `INSERT INTO students (id,name) VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`, st.ID, st.Name); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM student_classes WHERE student_id=$1`, st.ID); err != nil {
		return err
	}
	for _, cid := range st.ClassIDs {
		if _, err := q.ExecContext(ctx, `INSERT INTO student_classes (student_id,class_id) VALUES ($1,$2)`, st.ID, cid); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) GetStudent(ctx context.Context, id string) (model.Student, error) {
	var st model.Student
	err := s.db.QueryRowContext(ctx, `SELECT id,name FROM students WHERE id=$1`, id).Scan(&st.ID, &st.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Student{}, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Student{}, err
	}
	all, err := memberships(ctx, s.db)
	if err != nil {
		return model.Student{}, err
	}
	st.ClassIDs = append([]string{}, all[st.ID]...)
	return st, nil
}

// ListStudents returns the students enrolled in classID, or every student
// when classID is empty
func (s *SQLStore) ListStudents(ctx context.Context, classID string) ([]model.Student, error) {
	all, err := listStudents(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if classID == "" {
		return all, nil
	}
	out := []model.Student{}
	for _, st := range all {
		if st.InClass(classID) {
			out = append(out, st)
		}
	}
	return out, nil
}

func listStudents(ctx context.Context, q querier) ([]model.Student, error) {
	members, err := memberships(ctx, q)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT id,name FROM students ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()
	out := []model.Student{}
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			return nil, err
		}
		st.ClassIDs = members[st.ID]
		if st.ClassIDs == nil {
			st.ClassIDs = []string{}
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeleteStudent removes the student together with their wrong-notes
func (s *SQLStore) DeleteStudent(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM wrong_notes WHERE student_id=$1`,
			`DELETE FROM student_classes WHERE student_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id=$1`, id)
		if err != nil {
			return err
		}
		return affected(res, "student", id)
	})
}

func memberships(ctx context.Context, q querier) (map[string][]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT student_id,class_id FROM student_classes ORDER BY student_id, class_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var sid, cid string
		if err := rows.Scan(&sid, &cid); err != nil {
			return nil, err
		}
		out[sid] = append(out[sid], cid)
	}
	return out, rows.Err()
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
