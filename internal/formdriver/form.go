package formdriver

import (
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindSelect
	kindCheckbox
	kindSubmit
)

type field struct {
	name    string
	kind    fieldKind
	value   string
	options []string
	// enabled is the checked state of a checkbox; other kinds are always sent
	enabled bool
}

type form struct {
	action  string
	method  string
	enctype string
	fields  []*field
}

// values returns the name/value pairs a browser would submit. button is the
// name of the clicked submit control, if any.
func (f *form) values(button string) [][2]string {
	var out [][2]string
	for _, fl := range f.fields {
		switch fl.kind {
		case kindCheckbox:
			if !fl.enabled {
				continue
			}
		case kindSubmit:
			if fl.name != button {
				continue
			}
		}
		out = append(out, [2]string{fl.name, fl.value})
	}
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func scrapeForm(doc *html.Node) *form {
	fn := find(doc, func(n *html.Node) bool { return n.Type == html.ElementNode && n.Data == "form" })
	if fn == nil {
		return nil
	}
	f := &form{method: http.MethodGet}
	f.action, _ = attr(fn, "action")
	if m, ok := attr(fn, "method"); ok && strings.EqualFold(m, "post") {
		f.method = http.MethodPost
	}
	f.enctype, _ = attr(fn, "enctype")
	f.enctype = strings.ToLower(f.enctype)
	walk(fn, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		name, ok := attr(n, "name")
		if !ok || name == "" {
			return
		}
		switch n.Data {
		case "input":
			typ, _ := attr(n, "type")
			val, _ := attr(n, "value")
			switch strings.ToLower(typ) {
			case "checkbox", "radio":
				if val == "" {
					val = "on"
				}
				_, checked := attr(n, "checked")
				f.fields = append(f.fields, &field{name: name, kind: kindCheckbox, value: val, enabled: checked})
			case "submit", "button", "image", "reset", "file":
				if strings.EqualFold(typ, "submit") {
					f.fields = append(f.fields, &field{name: name, kind: kindSubmit, value: val})
				}
			default:
				f.fields = append(f.fields, &field{name: name, kind: kindText, value: val, enabled: true})
			}
		case "textarea":
			f.fields = append(f.fields, &field{name: name, kind: kindText, value: text(n), enabled: true})
		case "select":
			sel := &field{name: name, kind: kindSelect, enabled: true}
			first := true
			walk(n, func(o *html.Node) {
				if o.Type != html.ElementNode || o.Data != "option" {
					return
				}
				v, ok := attr(o, "value")
				if !ok {
					v = strings.TrimSpace(text(o))
				}
				sel.options = append(sel.options, v)
				if _, selected := attr(o, "selected"); selected || first {
					sel.value = v
				}
				first = false
			})
			f.fields = append(f.fields, sel)
		}
	})
	return f
}

func metaRefresh(doc *html.Node) string {
	m := find(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "meta" {
			return false
		}
		v, _ := attr(n, "http-equiv")
		return strings.EqualFold(v, "refresh")
	})
	if m == nil {
		return ""
	}
	content, _ := attr(m, "content")
	i := strings.Index(strings.ToLower(content), "url=")
	if i < 0 {
		return ""
	}
	return strings.Trim(strings.TrimSpace(content[i+len("url="):]), `'"`)
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, match); f != nil {
			return f
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fn(c)
		walk(c, fn)
	}
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}
