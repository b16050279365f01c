package exam

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		answers Answers
		want    model.ExamResult
	}{
		{name: "empty submission", answers: Answers{}, want: model.ExamResult{Total: 5, Unanswered: 5}},
		{name: "all correct", answers: Answers{1: 2, 2: 1, 3: 0, 4: 3, 5: 1}, want: model.ExamResult{Total: 5, Correct: 5, Score: 5}},
		{name: "three correct one wrong one omitted", answers: Answers{1: 2, 2: 1, 3: 0, 4: 0}, want: model.ExamResult{Total: 5, Correct: 3, Wrong: 1, Unanswered: 1, Score: 3}},
		{name: "unknown ids ignored", answers: Answers{1: 2, 99: 0, 100: 1, -4: 2}, want: model.ExamResult{Total: 5, Correct: 1, Unanswered: 4, Score: 1}},
		{name: "invalid option is wrong", answers: Answers{1: InvalidOption, 2: 17}, want: model.ExamResult{Total: 5, Wrong: 2, Unanswered: 3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Grade(testBank, tc.answers)
			if got != tc.want {
				t.Fatalf("Grade() = %+v, want %+v", got, tc.want)
			}
			if got.Total != got.Correct+got.Wrong+got.Unanswered {
				t.Errorf("total %d != %d+%d+%d", got.Total, got.Correct, got.Wrong, got.Unanswered)
			}
			if got.Total != len(testBank) {
				t.Errorf("total %d, want bank size %d", got.Total, len(testBank))
			}
		})
	}
}

func TestGradeDeterministic(t *testing.T) {
	answers := Answers{1: 2, 2: 0, 5: 1}
	first := Grade(testBank, answers)
	second := Grade(testBank, answers)
	if first != second {
		t.Fatalf("grading differs between runs: %+v vs %+v", first, second)
	}
}

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want Answers
	}{
		{
			name: "mixed fields",
			form: url.Values{
				"q_1":      {"2"},
				"2":        {"1"},
				"q_3":      {""},
				"q_4":      {"abc"},
				"q_5":      {"-3"},
				"csrf":     {"token"},
				"q_zero":   {"1"},
				"q_0":      {"1"},
				"username": {"student1"},
			},
			want: Answers{1: 2, 2: 1, 4: InvalidOption, 5: InvalidOption},
		},
		{
			name: "prefixed field wins over bare id",
			form: url.Values{"q_1": {"2"}, "1": {"0"}},
			want: Answers{1: 2},
		},
		{
			name: "blank prefixed field still wins",
			form: url.Values{"q_1": {""}, "1": {"0"}},
			want: Answers{},
		},
		{
			name: "non-canonical ids are ignored",
			form: url.Values{"q_1": {"2"}, "q_01": {"0"}, "+1": {"3"}, "01": {"1"}},
			want: Answers{1: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Map iteration order varies; repeat to catch order-dependent results.
			for i := 0; i < 100; i++ {
				got := ParseAnswers(tt.form)
				if !reflect.DeepEqual(got, tt.want) {
					t.Fatalf("ParseAnswers() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
