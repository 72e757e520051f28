package session

import (
	"context"

	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/scoring"
)

// ExamSaver persists exams
type ExamSaver interface {
	SaveExam(ctx context.Context, e model.Exam) (model.Exam, error)
}

// WrongNoteSaver persists wrong-notes
type WrongNoteSaver interface {
	SaveWrongNote(ctx context.Context, n model.WrongNote) (model.WrongNote, error)
}

// prepareSave returns the items as they are persisted: order re-derived and,
// when distribute is set, unscored items given their share of the total.
// A change in scores is written back to the session.
func (s *Session) prepareSave(distribute bool) model.Sheet {
	sheet := s.Sheet()
	sheet.Items = model.Normalize(sheet.Items, sheet.Config.ImageSize)
	if !distribute {
		return sheet
	}
	distributed := scoring.Distribute(sheet.Items)
	if scoring.Total(distributed) != scoring.Total(sheet.Items) {
		_ = s.mutate("save", func(sh *model.Sheet) error {
			sh.Items = scoring.Distribute(sh.Items)
			return nil
		})
	}
	sheet.Items = distributed
	return sheet
}

// SaveExam writes the session's sheet into exam and persists it. exam
// supplies the id, class and creation time.
func (s *Session) SaveExam(ctx context.Context, saver ExamSaver, exam model.Exam, distribute bool) (model.Exam, error) {
	sheet := s.prepareSave(distribute)
	exam.Title = sheet.Title
	exam.Items = sheet.Items
	exam.Config = sheet.Config
	if err := exam.Validate(); err != nil {
		return model.Exam{}, err
	}
	return saver.SaveExam(ctx, exam)
}

// SaveWrongNote writes the session's sheet into note and persists it
func (s *Session) SaveWrongNote(ctx context.Context, saver WrongNoteSaver, note model.WrongNote, distribute bool) (model.WrongNote, error) {
	sheet := s.prepareSave(distribute)
	note.Title = sheet.Title
	note.Items = sheet.Items
	note.Config = sheet.Config
	if err := note.Validate(); err != nil {
		return model.WrongNote{}, err
	}
	return saver.SaveWrongNote(ctx, note)
}
