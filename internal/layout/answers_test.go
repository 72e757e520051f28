package layout

import (
	"testing"

	"github.com/gompdf/examsheet/internal/model"
)

func TestAnswerKey(t *testing.T) {
	items := []model.QuestionItem{
		{Answer: "3", Score: 10},
		{Answer: "  "},
		{Score: 5},
		{Answer: "x=2", Score: 20},
		{Answer: "B"},
	}
	rows := AnswerKey(items)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	want := []struct {
		left, right string
	}{
		{"1:3:10", "4:x=2:20"},
		{"2:-:-", "5:B:-"},
		{"3:-:5", ""},
	}
	for i, w := range want {
		got := rows[i].Left.Number + ":" + rows[i].Left.Answer + ":" + rows[i].Left.Score
		if got != w.left {
			t.Errorf("row %d left = %s, want %s", i, got, w.left)
		}
		right := ""
		if r := rows[i].Right; r != nil {
			right = r.Number + ":" + r.Answer + ":" + r.Score
		}
		if right != w.right {
			t.Errorf("row %d right = %q, want %q", i, right, w.right)
		}
	}

	if len(AnswerKey(nil)) != 0 {
		t.Fatal("no items must give no rows")
	}
}
