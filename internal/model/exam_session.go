package model

import "time"

// ExamResult is the score breakdown computed once at submission.
// Total always equals Correct + Wrong + Unanswered.
type ExamResult struct {
	Total      int `json:"total"`
	Correct    int `json:"correct"`
	Wrong      int `json:"wrong"`
	Unanswered int `json:"unanswered"`
	Score      int `json:"score"`
}

// ExamSession is the server-side record of one authenticated browser session.
type ExamSession struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`

	EnvironmentCheckPassed bool `json:"environment_check_passed"`
	CheckAttempts          int  `json:"check_attempts"`

	ExamStarted   bool       `json:"exam_started"`
	ExamStartTime *time.Time `json:"exam_start_time,omitempty"`
	ExamEndTime   *time.Time `json:"exam_end_time,omitempty"`

	ExamSubmitted bool        `json:"exam_submitted"`
	AutoSubmitted bool        `json:"auto_submitted"`
	SubmittedAt   *time.Time  `json:"submitted_at,omitempty"`
	Result        *ExamResult `json:"exam_result,omitempty"`

	// Answers holds autosaved selections, question id -> option index.
	Answers map[int]int `json:"answers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CapabilityReport is the body of the environment check submission.
type CapabilityReport struct {
	Camera     bool `json:"camera"`
	Microphone bool `json:"microphone"`
	Fullscreen bool `json:"fullscreen"`
	Network    bool `json:"network"`
}

// ResultRecord is the persisted form of a graded submission.
type ResultRecord struct {
	SessionID     string    `json:"session_id"`
	Username      string    `json:"username"`
	Total         int       `json:"total"`
	Correct       int       `json:"correct"`
	Wrong         int       `json:"wrong"`
	Unanswered    int       `json:"unanswered"`
	Score         int       `json:"score"`
	AutoSubmitted bool      `json:"auto_submitted"`
	StartedAt     time.Time `json:"started_at"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
