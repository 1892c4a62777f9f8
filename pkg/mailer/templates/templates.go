package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
)

//go:embed *.tmpl
var fs embed.FS

// ActionLink is the single transactional template: a greeting, a short
// message, and a button pointing at a token-carrying link.
const ActionLink = "action_link"

// ActionLinkData feeds the action_link template.
type ActionLinkData struct {
	AppName   string
	Nickname  string
	Message   string
	ActionURL string
	Label     string
}

var parsed = htmpl.Must(htmpl.ParseFS(fs, "*.tmpl"))

// RenderHTML renders the named template with data.
func RenderHTML(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := parsed.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
