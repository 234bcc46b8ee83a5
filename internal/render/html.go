// ABOUTME: HTML adapter that renders a widget tree to markup
// ABOUTME: System replies are rendered from markdown with goldmark

package render

import (
	"bytes"
	"html/template"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/2389/coven-widget/internal/session"
)

const nodeTemplate = `{{define "attrs"}} id="cw-{{.ID}}" class="cw-{{.Kind}}"{{if .Style}} style="{{.Style}}"{{end}}{{range .Attrs}} {{.}}{{end}}{{if .Hidden}} hidden{{end}}{{end}}` +
	`{{define "inner"}}{{if .Markup}}{{.Markup}}{{else}}{{.Text}}{{end}}{{range .Children}}{{template "node" .}}{{end}}{{end}}` +
	`{{define "node"}}` +
	`{{if eq .Tag "input"}}<input{{template "attrs" .}} placeholder="{{.Placeholder}}" value="{{.Value}}">` +
	`{{else if eq .Tag "img"}}<figure{{template "attrs" .}}><img src="{{.Src}}" alt="{{.Text}}"><figcaption>{{.Text}}</figcaption></figure>` +
	`{{else if eq .Tag "button"}}<button type="button"{{template "attrs" .}}>{{template "inner" .}}</button>` +
	`{{else if eq .Tag "span"}}<span{{template "attrs" .}}>{{template "inner" .}}</span>` +
	`{{else}}<div{{template "attrs" .}}>{{template "inner" .}}</div>{{end}}` +
	`{{end}}{{template "node" .}}`

var htmlTemplate = template.Must(template.New("widget").Parse(nodeTemplate))

type htmlNode struct {
	ID          string
	Kind        Kind
	Tag         string
	Text        string
	Markup      template.HTML
	Hidden      bool
	Style       template.CSS
	Attrs       []template.HTMLAttr
	Placeholder string
	Value       string
	Src         template.URL
	Children    []*htmlNode
}

// HTML renders t as an HTML fragment.
func HTML(t *Tree) (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, toHTMLNode(t.Root)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func toHTMLNode(n *Node) *htmlNode {
	h := &htmlNode{
		ID:     n.ID,
		Kind:   n.Kind,
		Tag:    tagFor(n.Kind),
		Text:   n.Text,
		Hidden: n.Hidden,
		Style:  styleString(n.Style),
	}

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		switch k {
		case AttrSrc, AttrValue, AttrPlaceholder:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Attrs = append(h.Attrs, dataAttr(k, n.Attrs[k]))
	}

	switch n.Kind {
	case KindInput:
		h.Placeholder = n.Attrs[AttrPlaceholder]
		h.Value = n.Attrs[AttrValue]
	case KindImage:
		if strings.HasPrefix(n.Attrs[AttrSrc], "data:image/") {
			h.Src = template.URL(n.Attrs[AttrSrc])
		}
	case KindBubble:
		if n.Attrs[AttrSender] == string(session.SenderSystem) {
			h.Markup = markdown(n.Text)
		}
	}

	for _, c := range n.Children {
		h.Children = append(h.Children, toHTMLNode(c))
	}
	return h
}

func tagFor(k Kind) string {
	switch k {
	case KindButton:
		return "button"
	case KindText:
		return "span"
	case KindInput:
		return "input"
	case KindImage:
		return "img"
	default:
		return "div"
	}
}

// styleString joins style tokens in a stable order. Values come from Build,
// which only emits validated tokens.
func styleString(style map[string]string) template.CSS {
	if len(style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(":")
		b.WriteString(style[k])
		b.WriteString(";")
	}
	return template.CSS(b.String())
}

// markdown converts reply text to HTML. Raw HTML in the source is dropped
// by goldmark's default renderer.
func markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// dataAttr renders one data-* attribute. Keys are the Attr constants.
func dataAttr(key, value string) template.HTMLAttr {
	return template.HTMLAttr(`data-` + key + `="` + template.HTMLEscapeString(value) + `"`)
}
