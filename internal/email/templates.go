package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// linkCodeTemplate is the base layout with the link code content block.
var linkCodeTemplate = template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/link_code.html"))

type layoutData struct {
	Title      string
	Heading    string
	Subheading string
}

type linkCodeEmailData struct {
	layoutData
	Code      string
	ExpiresIn string
}

func renderLinkCode(code string) (string, error) {
	var buf bytes.Buffer
	err := linkCodeTemplate.ExecuteTemplate(&buf, "email", linkCodeEmailData{
		layoutData: layoutData{
			Title:   subjectLinkCode,
			Heading: "Link your WhatsApp number",
		},
		Code:      code,
		ExpiresIn: linkCodeExpiry,
	})
	if err != nil {
		return "", fmt.Errorf("render link code email: %w", err)
	}
	return buf.String(), nil
}
