// Package scoring splits exam points across unscored items.
package scoring

import "github.com/gompdf/examsheet/internal/model"

// Distribute fills in scores for unscored items so the total reaches
// model.TotalScore. Manually scored items are never changed. The remainder of
// the even split goes one point at a time to the earliest unscored items.
// The input slice is not modified.
func Distribute(items []model.QuestionItem) []model.QuestionItem {
	out := append([]model.QuestionItem(nil), items...)

	assigned := 0
	unscored := 0
	for _, it := range out {
		if it.Scored() {
			assigned += it.Score
		} else {
			unscored++
		}
	}
	if unscored == 0 {
		return out
	}

	remaining := model.TotalScore - assigned
	if remaining <= 0 {
		for i := range out {
			if !out[i].Scored() {
				out[i].Score = 0
			}
		}
		return out
	}

	base := remaining / unscored
	extra := remaining % unscored
	for i := range out {
		if out[i].Scored() {
			continue
		}
		out[i].Score = base
		if extra > 0 {
			out[i].Score++
			extra--
		}
	}
	return out
}

// Redistribute clears every score and splits the total evenly
func Redistribute(items []model.QuestionItem) []model.QuestionItem {
	cleared := append([]model.QuestionItem(nil), items...)
	for i := range cleared {
		cleared[i].Score = 0
	}
	return Distribute(cleared)
}

// Total sums the scores of all items
func Total(items []model.QuestionItem) int {
	sum := 0
	for _, it := range items {
		sum += it.Score
	}
	return sum
}
