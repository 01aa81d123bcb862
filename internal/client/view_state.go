package client

import "github.com/noah-isme/quizzy-go-api/internal/models"

// ViewKind tags the active ViewState variant.
type ViewKind int

const (
	ViewLoading ViewKind = iota
	ViewLoaded
	ViewFailed
)

func (k ViewKind) String() string {
	switch k {
	case ViewLoading:
		return "loading"
	case ViewLoaded:
		return "loaded"
	case ViewFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ViewState is the dashboard screen state. Snapshot is set only for ViewLoaded and
// Message only for ViewFailed.
type ViewState struct {
	Kind     ViewKind
	Snapshot models.DashboardSnapshot
	Message  string
}

// LoadingView is the state while a fetch is in flight.
func LoadingView() ViewState {
	return ViewState{Kind: ViewLoading}
}

// LoadedView wraps a fetched snapshot.
func LoadedView(snapshot models.DashboardSnapshot) ViewState {
	return ViewState{Kind: ViewLoaded, Snapshot: snapshot}
}

// FailedView carries the failure message shown to the student.
func FailedView(message string) ViewState {
	return ViewState{Kind: ViewFailed, Message: message}
}
