package memory

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// recentBullets is how many of the newest memory bullets always accompany
// an excerpt.
const recentBullets = 2

// MemoryExcerpt returns the k bullets of MEMORY.md that share the most
// words with query, followed by the newest bullets, without duplicates.
// With an empty query or a file without bullets the whole file is
// returned.
func (w *Workspace) MemoryExcerpt(query string, k int) string {
	content := w.Memory()
	if content == "" {
		return ""
	}
	if strings.TrimSpace(query) == "" {
		return content
	}
	bullets := Bullets(content)
	if len(bullets) == 0 {
		return content
	}
	return strings.Join(selectBullets(bullets, query, k), "\n")
}

// Bullets returns every top-level item of the unordered lists in a
// Markdown document, each rendered as "- text".
func Bullets(markdown string) []string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		if list, ok := n.Parent().(*ast.List); ok && list.IsOrdered() {
			return ast.WalkSkipChildren, nil
		}
		if item := itemText(n, src); item != "" {
			out = append(out, "- "+item)
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}

// itemText joins the lines of a list item's own blocks, ignoring nested
// lists.
func itemText(item ast.Node, src []byte) string {
	var parts []string
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Kind() == ast.KindList || c.Type() != ast.TypeBlock {
			continue
		}
		lines := c.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			if line := strings.TrimSpace(string(seg.Value(src))); line != "" {
				parts = append(parts, line)
			}
		}
	}
	return strings.Join(parts, " ")
}

func selectBullets(bullets []string, query string, k int) []string {
	queryWords := wordSet(query)
	score := func(b string) int {
		n := 0
		for w := range wordSet(b) {
			if queryWords[w] {
				n++
			}
		}
		return n
	}

	ranked := make([]string, len(bullets))
	copy(ranked, bullets)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i]) > score(ranked[j])
	})
	if k < len(ranked) {
		ranked = ranked[:max(k, 0)]
	}

	recent := bullets
	if len(recent) > recentBullets {
		recent = recent[len(recent)-recentBullets:]
	}

	seen := make(map[string]bool)
	var out []string
	for _, b := range append(ranked, recent...) {
		if seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}
