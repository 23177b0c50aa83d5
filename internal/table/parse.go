package table

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"netmhc/internal/schema"
)

// Mode selects how data lines are told apart from decoration.
type Mode int

const (
	// ModeStrict keeps lines whose first non-space character is a digit and
	// that do not start with '-' or '#'.
	ModeStrict Mode = iota
	// ModeIndented keeps lines that start with at least three spaces.
	ModeIndented
)

// ParseMode accepts "strict" or "indented"; anything else is strict.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "indented") {
		return ModeIndented
	}
	return ModeStrict
}

func (m Mode) String() string {
	if m == ModeIndented {
		return "indented"
	}
	return "strict"
}

var decimalRe = regexp.MustCompile(`^[0-9]*\.?[0-9]*$`)

// Parse extracts the result table from a results page. It returns false
// when the page carries no <pre> block, which means the job is not done yet.
func Parse(body string, s schema.Schema, mode Mode) (*Table, bool) {
	pre, ok := PreText(body)
	if !ok {
		return nil, false
	}
	t := New(s)
	for _, rec := range ParseRows(pre, s.Len(), mode) {
		t.Append(rec)
	}
	return t, true
}

// PreText returns the text content of the first <pre> element in an HTML
// document.
func PreText(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	pre := findElement(doc, "pre")
	if pre == nil {
		return "", false
	}
	var b strings.Builder
	collectText(pre, &b)
	return b.String(), true
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findElement(c, tag); f != nil {
			return f
		}
	}
	return nil
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// ParseRows returns the normalised data rows of a plaintext table. Every
// returned row has exactly width fields: short rows are padded with
// NullMarker and long rows are cut.
func ParseRows(text string, width int, mode Mode) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if !isDataLine(line, mode) {
			continue
		}
		rows = append(rows, normalise(tokens(line), width))
	}
	return rows
}

func isDataLine(line string, mode Mode) bool {
	if mode == ModeIndented {
		return strings.HasPrefix(line, "   ")
	}
	if line == "" || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "#") {
		return false
	}
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && trimmed[0] >= '0' && trimmed[0] <= '9'
}

func tokens(line string) []string {
	fields := strings.Fields(line)
	out := fields[:0]
	for _, f := range fields {
		if keepToken(f) {
			out = append(out, f)
		}
	}
	return out
}

// keepToken drops tokens made only of symbols, such as the "<=" before a
// bind level.
func keepToken(tok string) bool {
	if isAlpha(tok) || decimalRe.MatchString(tok) {
		return true
	}
	return strings.IndexFunc(tok, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func normalise(row []string, width int) []string {
	out := make([]string, width)
	for i := range out {
		if i < len(row) {
			out[i] = row[i]
		} else {
			out[i] = NullMarker
		}
	}
	return out
}
