package widget

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "signin", ChildID("signin"))
	assert.Equal(t, DefaultChildID, ChildID(""))
	assert.Equal(t, DefaultChildID, ChildID("   "))
}

func TestNewOptions(t *testing.T) {
	t.Parallel()
	o := NewOptions("proj", "key", "auth.example.com", true)
	assert.Equal(t, FlowPopup, o.SignInFlow)
	assert.True(t, o.SuppressRedirect)
	assert.Equal(t, []string{"password", "google.com"}, o.SignInOptions)

	o = NewOptions("", "", "", false)
	assert.Equal(t, []string{"password"}, o.SignInOptions)
	assert.False(t, o.Has("google.com"))
}

func TestRenderMount(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, RenderMount(&buf, "host", NewOptions("p", "k", "d", true)))
	html := buf.String()
	assert.Contains(t, html, `<div id="host"`)
	assert.Contains(t, html, `data-flow="popup"`)
	assert.Contains(t, html, `data-provider="google.com"`)
	assert.Contains(t, html, `/auth/google/start`)

	buf.Reset()
	require.NoError(t, RenderMount(&buf, "", NewOptions("", "", "", false)))
	assert.Contains(t, buf.String(), `<div id="auth-widget"`)
	assert.NotContains(t, buf.String(), `data-provider="google.com"`)
}

func TestRenderMount_EscapesElementID(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, RenderMount(&buf, `x"><script>alert(1)</script>`, NewOptions("", "", "", false)))
	assert.NotContains(t, buf.String(), `<script>alert(1)</script>`)
}

func TestRenderPopupResult_NoRedirect(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, RenderPopupResult(&buf, PopupResult{OK: true, OpenerOrigin: "https://app.example.com"}))
	html := buf.String()
	assert.Contains(t, html, "window.opener.postMessage")
	assert.Contains(t, html, "window.close()")
	assert.Contains(t, html, "app.example.com")
	assert.False(t, strings.Contains(html, "location.href") || strings.Contains(html, "location.replace"))

	buf.Reset()
	require.NoError(t, RenderPopupResult(&buf, PopupResult{Error: "denied"}))
	assert.Contains(t, buf.String(), "Sign-in failed: denied")
	assert.Contains(t, buf.String(), `"*"`)
}
