// internal/domain/models/action.go
package models

// ActionRequest is created when an operator triggers a row action and is
// discarded once the POST it produces has completed.
type ActionRequest struct {
	ID        string            // correlation id (uuid), logged and audited
	Screen    string            // screen name
	Verb      string            // action verb
	Target    Record            // the row the action applies to
	Form      map[string]string // inline form input
	Confirmed bool              // operator answered the confirmation prompt
	Origin    Origin
}

// Origin identifies who triggered an action and from where.
type Origin struct {
	SessionID string
	Actor     string // operator name, or the CLI user
	IP        string
	UserAgent string
}

// Notice levels.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

// Notice is the user-visible notification raised after a fetch or action.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
