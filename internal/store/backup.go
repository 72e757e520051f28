package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/storage"
)

// BackupVersion is written into every export
const BackupVersion = 1

// Backup is the whole-database export format. Blob contents are keyed by
// blob key and base64 encoded by encoding/json.
type Backup struct {
	Version    int               `json:"version"`
	ExportedAt time.Time         `json:"exportedAt"`
	Classes    []model.Class     `json:"classes"`
	Students   []model.Student   `json:"students"`
	Exams      []model.Exam      `json:"exams"`
	WrongNotes []model.WrongNote `json:"wrongNotes"`
	Blobs      map[string][]byte `json:"blobs,omitempty"`
}

// Export writes every document and, when blobs is non-nil, every blob the
// documents reference.
func (s *SQLStore) Export(ctx context.Context, w io.Writer, blobs storage.BlobStore) error {
	b := Backup{Version: BackupVersion, ExportedAt: s.now().UTC()}
	var err error
	if b.Classes, err = s.ListClasses(ctx); err != nil {
		return err
	}
	if b.Students, err = s.ListStudents(ctx, ""); err != nil {
		return err
	}
	if b.Exams, err = s.ListExams(ctx, ""); err != nil {
		return err
	}
	if b.WrongNotes, err = s.ListWrongNotes(ctx, "", ""); err != nil {
		return err
	}

	if blobs != nil {
		b.Blobs = make(map[string][]byte)
		for _, key := range referencedBlobs(b) {
			data, err := readBlob(ctx, blobs, key)
			if err != nil {
				return fmt.Errorf("failed to export blob %s: %w", key, err)
			}
			b.Blobs[key] = data
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Import replaces the whole database with the backup in one transaction,
// then writes its blobs.
func (s *SQLStore) Import(ctx context.Context, r io.Reader, blobs storage.BlobStore) error {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	if b.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %d", b.Version)
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"wrong_notes", "exams", "student_classes", "students", "classes"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return err
			}
		}
		for _, c := range b.Classes {
			if _, err := tx.ExecContext(ctx, `INSERT INTO classes (id,name) VALUES ($1,$2)`, c.ID, c.Name); err != nil {
				return err
			}
		}
		for _, st := range b.Students {
			st.ClassIDs = dedupe(st.ClassIDs)
			if err := putStudent(ctx, tx, st); err != nil {
				return err
			}
		}
		for _, e := range b.Exams {
			if err := putExam(ctx, tx, e); err != nil {
				return err
			}
		}
		for _, n := range b.WrongNotes {
			if err := putWrongNote(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to import backup: %w", err)
	}

	if blobs == nil {
		return nil
	}
	for key, data := range b.Blobs {
		if _, err := blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to import blob %s: %w", key, err)
		}
	}
	return nil
}

func referencedBlobs(b Backup) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(items []model.QuestionItem) {
		for _, it := range items {
			if key, ok := storage.KeyFromRef(it.ImageRef); ok && !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	for _, e := range b.Exams {
		add(e.Items)
	}
	for _, n := range b.WrongNotes {
		add(n.Items)
	}
	return keys
}

func readBlob(ctx context.Context, blobs storage.BlobStore, key string) ([]byte, error) {
	rc, err := blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
