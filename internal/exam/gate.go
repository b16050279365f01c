package exam

import "github.com/stemsi/exstem-proctor/internal/model"

// Page names a gated page of the workflow.
type Page string

const (
	PageLogin        Page = "login"
	PageInstructions Page = "instructions"
	PageChecking     Page = "checking"
	PageExam         Page = "exam"
	PageResult       Page = "result"
)

// Path is the URL path serving the page.
func (p Page) Path() string {
	return "/" + string(p)
}

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Render     bool
	RedirectTo Page
}

func render() Decision         { return Decision{Render: true} }
func redirect(p Page) Decision { return Decision{RedirectTo: p} }

// Gate decides whether page may be shown for s. Checks run in a fixed order
// and the first unmet precondition wins.
func Gate(page Page, s *model.ExamSession) Decision {
	if s == nil || !s.Authenticated {
		if page == PageLogin {
			return render()
		}
		return redirect(PageLogin)
	}

	switch page {
	case PageLogin:
		return redirect(PageInstructions)

	case PageInstructions:
		if s.ExamSubmitted {
			return redirect(PageResult)
		}
		if s.ExamStarted {
			return redirect(PageExam)
		}
		return render()

	case PageChecking:
		return render()

	case PageExam:
		if s.ExamSubmitted {
			return redirect(PageResult)
		}
		if !s.ExamStarted {
			return redirect(PageInstructions)
		}
		if !s.EnvironmentCheckPassed {
			return redirect(PageChecking)
		}
		return render()

	case PageResult:
		if !s.ExamSubmitted {
			return redirect(PageInstructions)
		}
		return render()
	}

	return redirect(PageInstructions)
}
