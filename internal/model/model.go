package model

import (
	"errors"
	"time"
)

// Layout represents the column arrangement of a sheet
type Layout string

const (
	// LayoutOneColumn places every item in a single full-width column
	LayoutOneColumn Layout = "1column"
	// LayoutTwoColumn splits each page into two columns
	LayoutTwoColumn Layout = "2column"
)

// Limits applied by Normalize
const (
	MinScale       = 20
	MaxScale       = 100
	DefaultScale   = 100
	MaxSpacing     = 300
	DefaultSpacing = 20
	TotalScore     = 100
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrEmptyTitle   = errors.New("title is required")
	ErrNoItems      = errors.New("at least one item is required")
	ErrNoClass      = errors.New("class is required")
)

// QuestionItem is one image-backed question block
type QuestionItem struct {
	ID         string    `json:"id" yaml:"id"`
	ImageRef   string    `json:"imageRef" yaml:"image"`
	Name       string    `json:"name,omitempty" yaml:"name,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt,omitempty" yaml:"modifiedAt,omitempty"`
	Order      int       `json:"order" yaml:"order"`
	Scale      int       `json:"scale" yaml:"scale"`
	Answer     string    `json:"answer,omitempty" yaml:"answer,omitempty"`
	Score      int       `json:"score,omitempty" yaml:"score,omitempty"`
}

// Scored reports whether the item carries a manual score
func (q QuestionItem) Scored() bool { return q.Score > 0 }

// LayoutConfig holds the per-document layout settings
type LayoutConfig struct {
	Layout    Layout `json:"layout" yaml:"layout"`
	Spacing   int    `json:"spacing" yaml:"spacing"`
	ImageSize int    `json:"imageSize" yaml:"imageSize"`
}

// DefaultLayoutConfig returns the settings of a freshly created exam
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Layout:    LayoutOneColumn,
		Spacing:   DefaultSpacing,
		ImageSize: DefaultScale,
	}
}

// Columns returns the number of columns the layout uses
func (c LayoutConfig) Columns() int {
	if c.Layout == LayoutTwoColumn {
		return 2
	}
	return 1
}

// Normalized returns the config with every field inside its valid range
func (c LayoutConfig) Normalized() LayoutConfig {
	if c.Layout != LayoutTwoColumn {
		c.Layout = LayoutOneColumn
	}
	c.Spacing = clamp(c.Spacing, 0, MaxSpacing)
	if c.ImageSize == 0 {
		c.ImageSize = DefaultScale
	}
	c.ImageSize = clamp(c.ImageSize, MinScale, MaxScale)
	return c
}

// Sheet is the renderable part of an exam or wrong-note
type Sheet struct {
	Title  string         `json:"title" yaml:"title"`
	Items  []QuestionItem `json:"items" yaml:"items"`
	Config LayoutConfig   `json:"config" yaml:"config"`
}

// Clone returns a deep copy of the sheet
func (s Sheet) Clone() Sheet {
	out := s
	out.Items = append([]QuestionItem(nil), s.Items...)
	return out
}

// Exam is a persisted exam document
type Exam struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	ClassID   string         `json:"classId"`
	Items     []QuestionItem `json:"items"`
	Config    LayoutConfig   `json:"config"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Sheet returns the renderable view of the exam
func (e Exam) Sheet() Sheet {
	return Sheet{Title: e.Title, Items: e.Items, Config: e.Config}
}

// Validate checks the fields required before an exam is saved
func (e Exam) Validate() error {
	if e.Title == "" {
		return ErrEmptyTitle
	}
	if e.ClassID == "" {
		return ErrNoClass
	}
	if len(e.Items) == 0 {
		return ErrNoItems
	}
	return nil
}

// WrongNote is a per-student selection of an exam's items
type WrongNote struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	StudentID string         `json:"studentId"`
	ExamID    string         `json:"examId"`
	Items     []QuestionItem `json:"items"`
	Config    LayoutConfig   `json:"config"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Sheet returns the renderable view of the wrong-note
func (n WrongNote) Sheet() Sheet {
	return Sheet{Title: n.Title, Items: n.Items, Config: n.Config}
}

// Validate checks the fields required before a wrong-note is saved
func (n WrongNote) Validate() error {
	if n.Title == "" {
		return ErrEmptyTitle
	}
	if len(n.Items) == 0 {
		return ErrNoItems
	}
	return nil
}

type Class struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Student struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ClassIDs []string `json:"classIds"`
}

// InClass reports whether the student is enrolled in the class
func (s Student) InClass(classID string) bool {
	for _, id := range s.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
