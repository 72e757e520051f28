// Package docfile reads and writes exam sheet documents on disk.
//
// A document is YAML (or JSON for a .json file):
//
//	title: Unit 3 Quiz
//	class: 3-2
//	config:
//	  layout: 2column
//	  spacing: 20
//	  imageSize: 90
//	items:
//	  - image: images/q1.png
//	    answer: "3"
//	    score: 10
//	  - image: blob:images/0b6f....png
//	    scale: 60
package docfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gompdf/examsheet/internal/model"
)

// ErrNoItems is returned for documents without any question item
var ErrNoItems = errors.New("document has no items")

// Format selects the encoding of a document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Document is a sheet together with the ids it is saved under
type Document struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	ClassID     string `json:"classId,omitempty" yaml:"class,omitempty"`
	StudentID   string `json:"studentId,omitempty" yaml:"student,omitempty"`
	ExamID      string `json:"examId,omitempty" yaml:"exam,omitempty"`
	model.Sheet `yaml:",inline"`
}

// FormatOf picks the format from a file extension
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads the document at path. Relative image references are resolved
// against the document's directory.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := Parse(bytes.NewReader(data), FormatOf(path), filepath.Dir(path))
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a document. baseDir anchors relative image paths; an empty
// baseDir leaves them untouched.
func Parse(r io.Reader, format Format, baseDir string) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("failed to decode JSON: %w", err)
		}
	default:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return Document{}, fmt.Errorf("failed to decode YAML: %w", err)
		}
	}
	if len(doc.Items) == 0 {
		return Document{}, ErrNoItems
	}

	doc.Config = doc.Config.Normalized()
	for i := range doc.Items {
		doc.Items[i].ImageRef = resolve(baseDir, doc.Items[i].ImageRef)
		if doc.Items[i].Name == "" {
			doc.Items[i].Name = filepath.Base(doc.Items[i].ImageRef)
		}
	}
	doc.Items = model.Normalize(doc.Items, doc.Config.ImageSize)
	return doc, nil
}

func resolve(baseDir, ref string) string {
	switch {
	case ref == "", baseDir == "":
		return ref
	case strings.HasPrefix(ref, "blob:"), strings.HasPrefix(ref, "data:"),
		strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case filepath.IsAbs(ref):
		return ref
	}
	return filepath.Join(baseDir, ref)
}

// Encode writes doc in the given format
func Encode(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
}

// Save writes doc to path, choosing the format from the extension
func Save(path string, doc Document) error {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, FormatOf(path)); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create document directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// FromExam converts a stored exam into a document
func FromExam(e model.Exam) Document {
	return Document{ID: e.ID, ClassID: e.ClassID, Sheet: e.Sheet()}
}

// Exam converts the document into an exam record
func (d Document) Exam() model.Exam {
	return model.Exam{ID: d.ID, Title: d.Title, ClassID: d.ClassID, Items: d.Items, Config: d.Config}
}

// WrongNote converts the document into a wrong-note record
func (d Document) WrongNote() model.WrongNote {
	return model.WrongNote{ID: d.ID, Title: d.Title, StudentID: d.StudentID, ExamID: d.ExamID, Items: d.Items, Config: d.Config}
}
