// Package view renders the embedded email templates.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/inkpress/inkpress/web"
)

// Template names shipped in web/templates/email.
const (
	TemplateRegister             = "register.html"
	TemplatePasswordOTP          = "password_change_otp.html"
	TemplatePasswordConfirmation = "password_change_confirmation.html"
	TemplateAccountVerified      = "account_verified.html"
	TemplatePostStatusChanged    = "post_status_changed.html"
)

// Engine renders HTML email templates.
type Engine struct {
	templates *template.Template
	appName   string
	now       func() time.Time
}

// NewEngine parses the embedded templates. appName is injected into every
// render as app_name, together with the current year.
func NewEngine(appName string) (*Engine, error) {
	tpl, err := template.New("root").ParseFS(web.EmailTemplates, "templates/email/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, appName: appName, now: time.Now}, nil
}

// RenderString executes the named template with data plus the shared
// app_name and year values.
func (e *Engine) RenderString(name string, data map[string]any) (string, error) {
	if e == nil {
		return "", fmt.Errorf("template engine not initialised")
	}
	ctx := make(map[string]any, len(data)+2)
	for k, v := range data {
		ctx[k] = v
	}
	ctx["app_name"] = e.appName
	ctx["year"] = e.now().UTC().Year()

	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, ctx); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
