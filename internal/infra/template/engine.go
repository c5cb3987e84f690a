package template

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"medinotify/internal/domain/notification"
)

var _ notification.Renderer = (*Engine)(nil)

// templateMeta holds the subject and template name mapping for each notification kind.
type templateMeta struct {
	Subject      string
	TemplateName string
}

// registry maps notification kinds to their metadata.
var registry = map[notification.Kind]templateMeta{
	notification.KindDoctorApproved: {Subject: "Your Application Has Been Approved", TemplateName: "doctor_approved"},
	notification.KindDoctorRejected: {Subject: "Update on Your Application", TemplateName: "doctor_rejected"},
	notification.KindWelcome:        {Subject: "Welcome Aboard", TemplateName: "welcome"},
	notification.KindCampaign:       {Subject: "News From Your Care Team", TemplateName: "campaign"},
	notification.KindHealthTip:      {Subject: "Your Health Tip", TemplateName: "health_tip"},
	notification.KindTest:           {Subject: "Notification Service Test", TemplateName: "test"},
}

// Engine renders notification templates using Go's html/template package.
type Engine struct {
	templates *template.Template
}

// NewEngine creates a new template engine by loading all templates from the given directory.
func NewEngine(templatesDir string) (*Engine, error) {
	tmpl, err := template.ParseGlob(templatesDir + "/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates from %s: %w", templatesDir, err)
	}

	return &Engine{templates: tmpl}, nil
}

// Render produces a subject line, HTML body, and plain-text fallback for the given notification kind.
func (e *Engine) Render(kind notification.Kind, data map[string]any) (subject, html, text string, err error) {
	meta, ok := registry[kind]
	if !ok {
		return "", "", "", fmt.Errorf("no template registered for kind: %s", kind)
	}

	// Allow subject override via data
	subject = meta.Subject
	if customSubject, ok := data["Subject"].(string); ok && customSubject != "" {
		subject = customSubject
	}

	// Render the HTML template
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, meta.TemplateName+".html", data); err != nil {
		return "", "", "", fmt.Errorf("executing template %s: %w", meta.TemplateName, err)
	}
	html = buf.String()

	// Generate plain-text fallback by stripping HTML tags
	text = stripHTML(html)

	return subject, html, text, nil
}

// stripHTML removes HTML tags and collapses whitespace to produce a plain-text version.
func stripHTML(s string) string {
	// Remove HTML tags
	re := regexp.MustCompile(`<[^>]*>`)
	text := re.ReplaceAllString(s, "")

	// Decode common HTML entities
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")

	// Collapse whitespace
	wsRe := regexp.MustCompile(`\s+`)
	text = wsRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
