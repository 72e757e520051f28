package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh opaque identifier
func NewID() string {
	return uuid.NewString()
}

// Image describes an uploaded image before it becomes an item
type Image struct {
	Ref        string
	Name       string
	ModifiedAt time.Time
}

// Normalize re-derives order and clamps scale for every item. Items without
// an id get one. A zero scale takes defaultScale.
func Normalize(items []QuestionItem, defaultScale int) []QuestionItem {
	if defaultScale == 0 {
		defaultScale = DefaultScale
	}
	defaultScale = clamp(defaultScale, MinScale, MaxScale)

	out := make([]QuestionItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = NewID()
		}
		it.Order = i
		if it.Scale == 0 {
			it.Scale = defaultScale
		}
		it.Scale = clamp(it.Scale, MinScale, MaxScale)
		if it.Score < 0 {
			it.Score = 0
		}
		out[i] = it
	}
	return out
}

// Append adds new items for the given images, using scale for each
func Append(items []QuestionItem, scale int, images ...Image) []QuestionItem {
	out := append([]QuestionItem(nil), items...)
	for _, img := range images {
		out = append(out, QuestionItem{
			ID:         NewID(),
			ImageRef:   img.Ref,
			Name:       img.Name,
			ModifiedAt: img.ModifiedAt,
			Scale:      scale,
		})
	}
	return Normalize(out, scale)
}

// IndexOf returns the position of the item with the given id, or -1
func IndexOf(items []QuestionItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Remove drops the item with the given id
func Remove(items []QuestionItem, id string) ([]QuestionItem, error) {
	idx := IndexOf(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("remove %q: %w", id, ErrItemNotFound)
	}
	out := make([]QuestionItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)
	return Normalize(out, DefaultScale), nil
}

// Move relocates the item with the given id to position to. Positions past
// the end move the item last.
func Move(items []QuestionItem, id string, to int) ([]QuestionItem, error) {
	from := IndexOf(items, id)
	if from < 0 {
		return nil, fmt.Errorf("move %q: %w", id, ErrItemNotFound)
	}
	if to < 0 {
		to = 0
	}
	if to >= len(items) {
		to = len(items) - 1
	}
	out := append([]QuestionItem(nil), items...)
	moved := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = moved
	return Normalize(out, DefaultScale), nil
}

// Update applies fn to the item with the given id
func Update(items []QuestionItem, id string, fn func(*QuestionItem)) ([]QuestionItem, error) {
	idx := IndexOf(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("update %q: %w", id, ErrItemNotFound)
	}
	out := append([]QuestionItem(nil), items...)
	fn(&out[idx])
	return Normalize(out, DefaultScale), nil
}

// SortKey selects the field SortItems orders by
type SortKey string

const (
	SortByName SortKey = "name"
	SortByDate SortKey = "date"
)

// SortItems reorders items by name or modification time. The sort is stable
// so equal keys keep their current relative order.
func SortItems(items []QuestionItem, key SortKey, descending bool) []QuestionItem {
	out := append([]QuestionItem(nil), items...)
	less := func(a, b QuestionItem) bool {
		switch key {
		case SortByDate:
			return a.ModifiedAt.Before(b.ModifiedAt)
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return Normalize(out, DefaultScale)
}

// NewWrongNote builds a wrong-note for a student from the selected exam items.
// Selected items keep the exam's order; the layout config is copied.
func NewWrongNote(exam Exam, studentID string, selected []string, title string) (WrongNote, error) {
	want := make(map[string]bool, len(selected))
	for _, id := range selected {
		want[id] = true
	}
	var items []QuestionItem
	for _, it := range exam.Items {
		if want[it.ID] {
			items = append(items, it)
			delete(want, it.ID)
		}
	}
	for id := range want {
		return WrongNote{}, fmt.Errorf("wrong-note item %q: %w", id, ErrItemNotFound)
	}
	if len(items) == 0 {
		return WrongNote{}, ErrNoItems
	}
	if title == "" {
		title = exam.Title + " Wrong Note"
	}
	now := time.Now()
	return WrongNote{
		ID:        NewID(),
		Title:     title,
		StudentID: studentID,
		ExamID:    exam.ID,
		Items:     Normalize(items, exam.Config.ImageSize),
		Config:    exam.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
