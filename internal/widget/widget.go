// Package widget renders the sign-in widget mount and the popup completion page.
package widget

import (
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/and161185/pto-keeper/internal/model"
)

// DefaultChildID is the container id used when the host element has none.
const DefaultChildID = "auth-widget"

// FlowPopup is the only supported sign-in flow.
const FlowPopup = "popup"

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Options is the widget configuration served at /widget/config.
type Options struct {
	SignInFlow       string   `json:"signInFlow"`
	SignInOptions    []string `json:"signInOptions"`
	SuppressRedirect bool     `json:"suppressRedirect"`
	ProjectID        string   `json:"projectId,omitempty"`
	APIKey           string   `json:"apiKey,omitempty"`
	AuthDomain       string   `json:"authDomain,omitempty"`
	TosURL           string   `json:"tosUrl,omitempty"`
	PrivacyPolicyURL string   `json:"privacyPolicyUrl,omitempty"`
}

// NewOptions returns the popup, no-redirect configuration with email sign-in and,
// when enabled, Google.
func NewOptions(projectID, apiKey, authDomain string, googleEnabled bool) Options {
	providers := []string{model.ProviderPassword}
	if googleEnabled {
		providers = append(providers, model.ProviderGoogle)
	}
	return Options{
		SignInFlow:       FlowPopup,
		SignInOptions:    providers,
		SuppressRedirect: true,
		ProjectID:        projectID,
		APIKey:           apiKey,
		AuthDomain:       authDomain,
	}
}

// ChildID returns the id of the container created for a host element.
func ChildID(elementID string) string {
	if id := strings.TrimSpace(elementID); id != "" {
		return id
	}
	return DefaultChildID
}

// Has reports whether provider is offered.
func (o Options) Has(provider string) bool {
	for _, p := range o.SignInOptions {
		if p == provider {
			return true
		}
	}
	return false
}

type mountView struct {
	ChildID string
	Options Options
	Google  bool
}

// RenderMount writes the HTML fragment mounted under the host element.
func RenderMount(w io.Writer, elementID string, opts Options) error {
	return templates.ExecuteTemplate(w, "mount.html", mountView{
		ChildID: ChildID(elementID),
		Options: opts,
		Google:  opts.Has(model.ProviderGoogle),
	})
}

// PopupResult is reported by the popup to its opener.
type PopupResult struct {
	OK           bool
	Error        string
	OpenerOrigin string
}

// RenderPopupResult writes the page that ends a popup sign-in: it notifies the
// opener and closes itself without navigating anywhere.
func RenderPopupResult(w io.Writer, res PopupResult) error {
	if res.OpenerOrigin == "" {
		res.OpenerOrigin = "*"
	}
	return templates.ExecuteTemplate(w, "popup_result.html", res)
}
