package bridge

import "github.com/and161185/pto-keeper/internal/model"

// Outbound request channel names (UI → Bridge).
const (
	OpSignOut    = "signOut"
	OpCreateSelf = "createSelf"
	OpRequestPto = "requestPto"
	OpUpdatePto  = "updatePto"
	OpSetName    = "setName"
	OpRemoveName = "removeName"
)

// Inbound event channel names (Bridge → UI).
const (
	EventLoggedIn  = "loggedIn"
	EventLoggedOut = "loggedOut"
	EventPtoData   = "ptoData"
	EventPtoError  = "ptoError"
)

// Request is one message received on an outbound channel.
type Request interface {
	Op() string
}

// SignOut ends the current session.
type SignOut struct{}

// CreateSelf seeds the record of UID for the configured year.
type CreateSelf struct {
	UID string `json:"uid"`
}

// RequestPto asks for the whole collection.
type RequestPto struct{}

// UpdatePto replaces the years of UID.
type UpdatePto struct {
	UID   string      `json:"uid"`
	Years model.Years `json:"years"`
}

// SetName replaces the name of UID.
type SetName struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// RemoveName sets the name of UID to null.
type RemoveName struct {
	UID string `json:"uid"`
}

func (SignOut) Op() string    { return OpSignOut }
func (CreateSelf) Op() string { return OpCreateSelf }
func (RequestPto) Op() string { return OpRequestPto }
func (UpdatePto) Op() string  { return OpUpdatePto }
func (SetName) Op() string    { return OpSetName }
func (RemoveName) Op() string { return OpRemoveName }

// Call is a request plus the transport's correlation id, echoed in PtoError.
type Call struct {
	RequestID string
	Request   Request
}

// Event is one message pushed on an inbound channel.
type Event interface {
	Name() string
}

// LoggedIn carries the signed-in user.
type LoggedIn struct {
	User model.AuthUser
}

// LoggedOut has no payload.
type LoggedOut struct{}

// PtoData carries the full uid → record mapping.
type PtoData struct {
	Records model.PtoCollection
}

// PtoError reports a failed request.
type PtoError struct {
	RequestID string `json:"requestId,omitempty"`
	Op        string `json:"op"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (LoggedIn) Name() string  { return EventLoggedIn }
func (LoggedOut) Name() string { return EventLoggedOut }
func (PtoData) Name() string   { return EventPtoData }
func (PtoError) Name() string  { return EventPtoError }
