package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionTime     Action = "time"
	ActionPing     Action = "ping"
)

// Request is one client message. QuestionID and Option are only read for autosave.
type Request struct {
	Action     Action `json:"action"`
	QuestionID int    `json:"question_id"`
	Option     *int   `json:"option"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSaved   Event = "saved"
	EventTimer   Event = "timer"
	EventExpired Event = "expired"
	EventPong    Event = "pong"
	EventError   Event = "error"
)

type SavedResponse struct {
	Event      Event `json:"event"`
	QuestionID int   `json:"question_id"`
	Option     int   `json:"option"`
}

type TimerResponse struct {
	Event            Event `json:"event"`
	Active           bool  `json:"active"`
	RemainingSeconds *int  `json:"remaining_seconds,omitempty"`
}

// ExpiredResponse tells the client the exam was closed and where the result lives.
type ExpiredResponse struct {
	Event    Event  `json:"event"`
	Redirect string `json:"redirect"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
