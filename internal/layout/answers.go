package layout

import (
	"strconv"
	"strings"

	"github.com/gompdf/examsheet/internal/model"
)

// Missing is printed for an absent answer or score
const Missing = "-"

// AnswerCell is one No./Answer/Score triple of the answer key
type AnswerCell struct {
	Number string
	Answer string
	Score  string
}

// AnswerRow holds the left and right halves of one answer-key row. Right is
// nil when the item count is odd and the row is the last one.
type AnswerRow struct {
	Left  AnswerCell
	Right *AnswerCell
}

// AnswerKey splits items into ceil(n/2) rows: the first half fills the left
// cells in order and the second half the right cells.
func AnswerKey(items []model.QuestionItem) []AnswerRow {
	n := len(items)
	rows := (n + 1) / 2
	out := make([]AnswerRow, rows)
	for i := 0; i < rows; i++ {
		out[i].Left = answerCell(i, items[i])
		if j := i + rows; j < n {
			c := answerCell(j, items[j])
			out[i].Right = &c
		}
	}
	return out
}

func answerCell(idx int, it model.QuestionItem) AnswerCell {
	c := AnswerCell{Number: strconv.Itoa(idx + 1), Answer: Missing, Score: Missing}
	if a := strings.TrimSpace(it.Answer); a != "" {
		c.Answer = a
	}
	if it.Score > 0 {
		c.Score = strconv.Itoa(it.Score)
	}
	return c
}
