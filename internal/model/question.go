package model

// Question is a single multiple-choice item of the question bank.
// CorrectIndex never leaves the server; clients only see SafeQuestion.
type Question struct {
	ID           int      `json:"id" validate:"required,gt=0"`
	Prompt       string   `json:"question" validate:"required"`
	Options      []string `json:"options" validate:"required,min=2,dive,required"`
	CorrectIndex int      `json:"correct" validate:"gte=0"`
}

// SafeQuestion is the client-visible projection of a Question.
type SafeQuestion struct {
	ID      int      `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// Safe strips the answer key from q.
func (q Question) Safe() SafeQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return SafeQuestion{ID: q.ID, Prompt: q.Prompt, Options: opts}
}

// AutosaveRequest stores one selected option while the exam is running.
type AutosaveRequest struct {
	QuestionID int  `json:"question_id" binding:"required,gt=0"`
	Option     *int `json:"option" binding:"required,gte=0"`
}
