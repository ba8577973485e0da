package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine("inkpress")
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStringInjectsSharedValues(t *testing.T) {
	engine, err := NewEngine("inkpress")
	require.NoError(t, err)
	engine.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	body, err := engine.RenderString(TemplatePasswordOTP, map[string]any{
		"user_name":   "jane",
		"otp":         "123456",
		"ttl_minutes": 10,
	})
	require.NoError(t, err)
	assert.Contains(t, body, "123456")
	assert.Contains(t, body, "Hello jane")
	assert.Contains(t, body, "2026 inkpress")
}

func TestRenderStringEscapesInput(t *testing.T) {
	engine, err := NewEngine("inkpress")
	require.NoError(t, err)

	body, err := engine.RenderString(TemplatePostStatusChanged, map[string]any{
		"user_name":  "jane",
		"post_title": "<script>alert(1)</script>",
		"old_status": "pending_review",
		"new_status": "published",
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestRenderAllTemplates(t *testing.T) {
	engine, err := NewEngine("inkpress")
	require.NoError(t, err)
	for _, name := range []string{TemplateRegister, TemplatePasswordOTP, TemplatePasswordConfirmation, TemplateAccountVerified, TemplatePostStatusChanged} {
		_, err := engine.RenderString(name, map[string]any{"user_name": "jane"})
		assert.NoError(t, err, name)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	engine, err := NewEngine("inkpress")
	require.NoError(t, err)
	_, err = engine.RenderString("missing.html", nil)
	assert.Error(t, err)
}
