package exam

import (
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var testBank = []model.Question{
	{ID: 1, Prompt: "What is the capital of France?", Options: []string{"Berlin", "London", "Paris", "Madrid"}, CorrectIndex: 2},
	{ID: 2, Prompt: "Which planet is known as the Red Planet?", Options: []string{"Earth", "Mars", "Jupiter", "Saturn"}, CorrectIndex: 1},
	{ID: 3, Prompt: "Who wrote 'To Kill a Mockingbird'?", Options: []string{"Harper Lee", "Mark Twain", "Jane Austen", "Ernest Hemingway"}, CorrectIndex: 0},
	{ID: 4, Prompt: "What is the largest ocean on Earth?", Options: []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean", "Pacific Ocean"}, CorrectIndex: 3},
	{ID: 5, Prompt: "Which element has the chemical symbol 'O'?", Options: []string{"Gold", "Oxygen", "Silver", "Iron"}, CorrectIndex: 1},
}

var testPolicy = Policy{Duration: 45 * time.Minute, SubmitGrace: 10 * time.Second, AutoSubmit: true}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var allPresent = model.CapabilityReport{Camera: true, Microphone: true, Fullscreen: true, Network: true}

func startedSession() model.ExamSession {
	s, err := CheckEnvironment(NewSession("sess-1", "student1", t0), allPresent, t0, testPolicy)
	if err != nil {
		panic(err)
	}
	return s
}
