package web

import "embed"

// EmailTemplates embeds the HTML email bodies.
//
//go:embed templates/email/*.html
var EmailTemplates embed.FS
