package exam

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// InvalidOption marks a submitted value that is present but not an option index.
// It never matches a correct index, so it grades as wrong.
const InvalidOption = -1

// Answers maps question id to the selected option index.
type Answers map[int]int

// ParseAnswers reads a submitted exam form. Fields are named "q_<id>" or
// "<id>"; any other field is ignored. When both spellings carry the same id
// the "q_<id>" field wins. Blank values count as unanswered.
func ParseAnswers(form url.Values) Answers {
	answers := make(Answers, len(form))
	for key, values := range form {
		id, prefixed, ok := questionKey(key)
		if !ok || len(values) == 0 {
			continue
		}
		if !prefixed {
			if _, shadowed := form[answerPrefix+key]; shadowed {
				continue
			}
		}
		raw := strings.TrimSpace(values[0])
		if raw == "" {
			continue
		}
		opt, err := strconv.Atoi(raw)
		if err != nil || opt < 0 {
			opt = InvalidOption
		}
		answers[id] = opt
	}
	return answers
}

const answerPrefix = "q_"

// questionKey accepts only the canonical decimal spelling of an id, so two
// fields can never name the same question by accident ("q_01", "+1").
func questionKey(key string) (id int, prefixed bool, ok bool) {
	digits, prefixed := strings.CutPrefix(key, answerPrefix)
	id, err := strconv.Atoi(digits)
	if err != nil || id <= 0 || strconv.Itoa(id) != digits {
		return 0, false, false
	}
	return id, prefixed, true
}

// Grade scores answers against the bank. It walks the bank, not the answers,
// so unknown ids in the submission never count. One point per correct answer,
// no negative marking.
func Grade(bank []model.Question, answers Answers) model.ExamResult {
	res := model.ExamResult{Total: len(bank)}
	for _, q := range bank {
		selected, ok := answers[q.ID]
		switch {
		case !ok:
			res.Unanswered++
		case selected == q.CorrectIndex:
			res.Correct++
		default:
			res.Wrong++
		}
	}
	res.Score = res.Correct
	return res
}
