package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gompdf/examsheet/internal/docfile"
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
	"github.com/gompdf/examsheet/internal/session"
	"github.com/gompdf/examsheet/internal/storage"
	"github.com/gompdf/examsheet/pkg/api"
)

// nopLayouter stands in for the composer when a session is only used to save
type nopLayouter struct{}

func (nopLayouter) Layout(context.Context, model.Sheet) (*pagination.Plan, error) {
	return &pagination.Plan{}, nil
}

// uploadImages moves every local image of doc into the blob store
func uploadImages(ctx context.Context, a *app, doc *docfile.Document) error {
	var blobs storage.BlobStore
	for i, it := range doc.Items {
		if !storage.IsLocal(it.ImageRef) {
			continue
		}
		if blobs == nil {
			var err error
			if blobs, err = a.blobStore(ctx); err != nil {
				return err
			}
		}
		ref, err := storage.PutFile(ctx, blobs, it.ImageRef)
		if err != nil {
			return err
		}
		a.log.Debug("image uploaded", zap.String("file", it.ImageRef), zap.String("ref", ref))
		doc.Items[i].ImageRef = ref
	}
	return nil
}

func runSave(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	var (
		input      string
		distribute bool
		update     bool
	)
	fs.StringVar(&input, "input", "", "Input document file (YAML or JSON)")
	fs.BoolVar(&distribute, "distribute", true, "Give unscored items their share of the total")
	fs.BoolVar(&update, "update", true, "Write the stored id and blob references back to the document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("input file is required")
	}

	doc, err := docfile.Load(input)
	if err != nil {
		return err
	}
	if err := uploadImages(ctx, a, &doc); err != nil {
		return err
	}
	db, err := a.store(ctx)
	if err != nil {
		return err
	}

	// the session normalizes and distributes exactly as the editor does
	sess := session.New(nopLayouter{}, doc.Sheet)
	sess.Close()

	if doc.StudentID != "" {
		note, err := sess.SaveWrongNote(ctx, db, doc.WrongNote(), distribute)
		if err != nil {
			return err
		}
		doc.ID, doc.Sheet = note.ID, note.Sheet()
		fmt.Fprintf(a.out, "saved wrong-note %s\n", note.ID)
	} else {
		exam, err := sess.SaveExam(ctx, db, doc.Exam(), distribute)
		if err != nil {
			return err
		}
		doc.ID, doc.Sheet = exam.ID, exam.Sheet()
		fmt.Fprintf(a.out, "saved exam %s\n", exam.ID)
	}

	if update {
		return docfile.Save(input, doc)
	}
	return nil
}

func runPrint(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("print", flag.ContinueOnError)
	var (
		examID string
		noteID string
		doc    string
		out    outputFlags
	)
	fs.StringVar(&examID, "exam", "", "Exam id")
	fs.StringVar(&noteID, "note", "", "Wrong-note id")
	fs.StringVar(&doc, "doc", "", "Also write the sheet as a document file")
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (examID == "") == (noteID == "") {
		return errors.New("exactly one of -exam or -note is required")
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	var d docfile.Document
	if examID != "" {
		e, err := db.GetExam(ctx, examID)
		if err != nil {
			return err
		}
		d = docfile.FromExam(e)
	} else {
		n, err := db.GetWrongNote(ctx, noteID)
		if err != nil {
			return err
		}
		d = docfile.Document{ID: n.ID, StudentID: n.StudentID, ExamID: n.ExamID, Sheet: n.Sheet()}
	}
	out.defaults(d.ID + ".pdf")

	c := a.composer(ctx, api.WithAnswerKey(!out.noAnswers))
	plan, err := c.Layout(ctx, d.Sheet)
	if err != nil {
		return err
	}
	if err := out.write(ctx, c, d.Sheet, plan); err != nil {
		return err
	}
	if doc != "" {
		if err := docfile.Save(doc, d); err != nil {
			return err
		}
	}
	a.log.Info("sheet printed", zap.String("id", d.ID), zap.Int("pages", len(plan.Pages)))
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	var (
		kind      string
		classID   string
		studentID string
		examID    string
	)
	fs.StringVar(&kind, "kind", "exams", "One of exams, notes, classes, students")
	fs.StringVar(&classID, "class", "", "Filter exams and students by class")
	fs.StringVar(&studentID, "student", "", "Filter wrong-notes by student")
	fs.StringVar(&examID, "exam", "", "Filter wrong-notes by exam")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	switch kind {
	case "exams":
		exams, err := db.ListExams(ctx, classID)
		if err != nil {
			return err
		}
		for _, e := range exams {
			fmt.Fprintf(a.out, "%s\t%s\t%s\t%d items\t%s\n",
				e.ID, e.ClassID, e.Title, len(e.Items), e.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
	case "notes":
		notes, err := db.ListWrongNotes(ctx, studentID, examID)
		if err != nil {
			return err
		}
		for _, n := range notes {
			fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\t%d items\n", n.ID, n.StudentID, n.ExamID, n.Title, len(n.Items))
		}
	case "classes":
		classes, err := db.ListClasses(ctx)
		if err != nil {
			return err
		}
		for _, c := range classes {
			fmt.Fprintf(a.out, "%s\t%s\n", c.ID, c.Name)
		}
	case "students":
		students, err := db.ListStudents(ctx, classID)
		if err != nil {
			return err
		}
		for _, s := range students {
			fmt.Fprintf(a.out, "%s\t%s\t%s\n", s.ID, s.Name, strings.Join(s.ClassIDs, ","))
		}
	default:
		return fmt.Errorf("unknown kind %q", kind)
	}
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	var examID, noteID, classID, studentID string
	fs.StringVar(&examID, "exam", "", "Exam id; its wrong-notes are deleted too")
	fs.StringVar(&noteID, "note", "", "Wrong-note id")
	fs.StringVar(&classID, "class", "", "Class id")
	fs.StringVar(&studentID, "student", "", "Student id; their wrong-notes are deleted too")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	switch {
	case examID != "":
		err = db.DeleteExam(ctx, examID)
	case noteID != "":
		err = db.DeleteWrongNote(ctx, noteID)
	case classID != "":
		err = db.DeleteClass(ctx, classID)
	case studentID != "":
		err = db.DeleteStudent(ctx, studentID)
	default:
		return errors.New("one of -exam, -note, -class or -student is required")
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "deleted")
	return nil
}

func runClass(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("class", flag.ContinueOnError)
	var id, name string
	fs.StringVar(&id, "id", "", "Class id (empty creates a new class)")
	fs.StringVar(&name, "name", "", "Class name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	c, err := db.SaveClass(ctx, model.Class{ID: id, Name: name})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\n", c.ID, c.Name)
	return nil
}

func runStudent(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("student", flag.ContinueOnError)
	var id, name, classes string
	fs.StringVar(&id, "id", "", "Student id (empty creates a new student)")
	fs.StringVar(&name, "name", "", "Student name")
	fs.StringVar(&classes, "classes", "", "Comma separated class ids")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	st, err := db.SaveStudent(ctx, model.Student{ID: id, Name: name, ClassIDs: splitList(classes)})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\t%s\t%s\n", st.ID, st.Name, strings.Join(st.ClassIDs, ","))
	return nil
}

func runWrongNote(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("wrongnote", flag.ContinueOnError)
	var examID, studentID, items, title string
	var unused bool
	fs.StringVar(&examID, "exam", "", "Exam id")
	fs.StringVar(&studentID, "student", "", "Student id")
	fs.StringVar(&items, "items", "", "Comma separated item ids or 1-based numbers")
	fs.StringVar(&title, "title", "", "Wrong-note title (default: exam title + \" Wrong Note\")")
	fs.BoolVar(&unused, "unused", false, "List the exam items no wrong-note of the student uses yet")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if examID == "" || studentID == "" {
		return errors.New("-exam and -student are required")
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	exam, err := db.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	if _, err := db.GetStudent(ctx, studentID); err != nil {
		return err
	}

	if unused {
		used, err := db.UsedItemIDs(ctx, studentID, examID)
		if err != nil {
			return err
		}
		for i, it := range exam.Items {
			if !used[it.ID] {
				fmt.Fprintf(a.out, "%d.\t%s\t%s\n", i+1, it.ID, it.Name)
			}
		}
		return nil
	}

	note, err := model.NewWrongNote(exam, studentID, itemIDs(exam, splitList(items)), title)
	if err != nil {
		return err
	}
	if note, err = db.SaveWrongNote(ctx, note); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved wrong-note %s with %d items\n", note.ID, len(note.Items))
	return nil
}

// itemIDs maps 1-based item numbers to ids; anything else is taken as an id
func itemIDs(exam model.Exam, sel []string) []string {
	out := make([]string, 0, len(sel))
	for _, s := range sel {
		var n int
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil && fmt.Sprint(n) == s && n >= 1 && n <= len(exam.Items) {
			out = append(out, exam.Items[n-1].ID)
			continue
		}
		out = append(out, s)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var output string
	var skipBlobs bool
	fs.StringVar(&output, "output", "", "Backup file path")
	fs.BoolVar(&skipBlobs, "no-blobs", false, "Leave image contents out of the backup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if output == "" {
		return errors.New("output file is required")
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	var blobs storage.BlobStore
	if !skipBlobs {
		if blobs, err = a.blobStore(ctx); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	if err := db.Export(ctx, f, blobs); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.log.Info("backup written", zap.String("file", output))
	return nil
}

func runImport(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	var input string
	fs.StringVar(&input, "input", "", "Backup file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("input file is required")
	}

	db, err := a.store(ctx)
	if err != nil {
		return err
	}
	blobs, err := a.blobStore(ctx)
	if err != nil {
		return err
	}
	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	if err := db.Import(ctx, f, blobs); err != nil {
		return err
	}
	a.log.Info("backup imported, previous data replaced", zap.String("file", input))
	return nil
}
