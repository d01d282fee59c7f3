package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/webxcore/webx/pkg/hashutil"
	"golang.org/x/net/html"
)

const maxActionScanNodes = 150
const maxActions = 80

// synthesizeActions implements spec.md §4.4: scan the first 150 of
// {a[href], button, input[type=submit], form, input, textarea, select} in
// document order, compute a stable selector for each, and build the
// corresponding Action. Results are deduplicated by id and capped at 80.
func synthesizeActions(doc *html.Node, baseURL *url.URL) []Action {
	candidates := collectActionCandidates(doc)

	actions := make([]Action, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		selector, ok := computeSelector(c.node, c.index)
		if !ok {
			continue
		}
		action, ok := synthesizeOne(c.node, selector, baseURL)
		if !ok {
			continue
		}
		if seen[action.ID] {
			continue
		}
		seen[action.ID] = true
		actions = append(actions, action)
		if len(actions) >= maxActions {
			break
		}
	}

	return actions
}

type actionCandidate struct {
	node *html.Node
	// index is this node's 1-based position among same-tag siblings under
	// its parent, used by the nth-of-type selector fallback.
	index int
}

func isActionTag(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "a":
		_, hasHref := attr(n, "href")
		return hasHref
	case "button", "form", "input", "textarea", "select":
		return true
	default:
		return false
	}
}

func collectActionCandidates(doc *html.Node) []actionCandidate {
	var out []actionCandidate
	nthOfType := make(map[*html.Node]int)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil || len(out) >= maxActionScanNodes {
			return
		}
		if n.Type == html.ElementNode {
			nthOfType[n] = siblingTagIndex(n)
		}
		if isActionTag(n) {
			out = append(out, actionCandidate{node: n, index: nthOfType[n]})
			if len(out) >= maxActionScanNodes {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if len(out) >= maxActionScanNodes {
				return
			}
		}
	}
	walk(doc)
	return out
}

// siblingTagIndex returns n's 1-based position among its parent's children
// sharing the same tag name.
func siblingTagIndex(n *html.Node) int {
	if n.Parent == nil {
		return 1
	}
	index := 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == n.Data {
			index++
			if c == n {
				return index
			}
		}
	}
	return 1
}

// computeSelector builds a strict CSS selector for n following the priority
// chain: #{id} -> {tag}[name] -> {tag}[aria-label] -> {tag}.{classes} ->
// {tag}:nth-of-type(index). Returns ok=false only if n has no tag name.
func computeSelector(n *html.Node, index int) (string, bool) {
	tag := n.Data
	if tag == "" {
		return "", false
	}

	if id, ok := attr(n, "id"); ok && id != "" {
		return "#" + escapeIdent(id), true
	}
	if name, ok := attr(n, "name"); ok && name != "" {
		return fmt.Sprintf(`%s[name="%s"]`, tag, escapeAttrValue(name)), true
	}
	if label, ok := attr(n, "aria-label"); ok && label != "" {
		return fmt.Sprintf(`%s[aria-label="%s"]`, tag, escapeAttrValue(label)), true
	}
	if class, ok := attr(n, "class"); ok && strings.TrimSpace(class) != "" {
		classes := strings.Fields(class)
		if len(classes) > 2 {
			classes = classes[:2]
		}
		var escaped []string
		for _, c := range classes {
			escaped = append(escaped, escapeIdent(c))
		}
		return tag + "." + strings.Join(escaped, "."), true
	}

	if index < 1 {
		index = 1
	}
	return fmt.Sprintf("%s:nth-of-type(%d)", tag, index), true
}

// escapeIdent backslash-escapes characters outside [A-Za-z0-9_-], for use in
// an id selector or class name.
func escapeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isIdentChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isIdentChar(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// escapeAttrValue escapes double-quotes for use inside a `[attr="..."]`
// selector.
func escapeAttrValue(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func synthesizeOne(n *html.Node, selector string, baseURL *url.URL) (Action, bool) {
	switch n.Data {
	case "a":
		href, _ := attr(n, "href")
		resolved, ok := resolveURL(baseURL, href)
		if !ok {
			return Action{}, false
		}
		label := normalizeWhitespace(textContent(n))
		if label == "" {
			label = href
		}
		return Action{
			ID:       hashutil.Sha256_16("nav:" + selector + ":" + resolved),
			Type:     ActionNavigate,
			Label:    label,
			Selector: selector,
			Params:   map[string]any{},
		}, true

	case "form":
		return Action{
			ID:       hashutil.Sha256_16("submit:" + selector),
			Type:     ActionSubmit,
			Label:    submitLabel(n),
			Selector: selector,
			Params:   map[string]any{},
		}, true

	case "button":
		return Action{
			ID:       hashutil.Sha256_16("submit:" + selector),
			Type:     ActionSubmit,
			Label:    submitLabel(n),
			Selector: selector,
			Params:   map[string]any{},
		}, true

	case "input":
		inputType := strings.ToLower(firstAttr(n, "type", "text"))
		if inputType == "submit" {
			return Action{
				ID:       hashutil.Sha256_16("submit:" + selector),
				Type:     ActionSubmit,
				Label:    submitLabel(n),
				Selector: selector,
				Params:   map[string]any{},
			}, true
		}
		_, required := attr(n, "required")
		return Action{
			ID:       hashutil.Sha256_16("fill:" + selector),
			Type:     ActionFill,
			Label:    fillLabel(n),
			Selector: selector,
			Params:   map[string]any{"value": "string", "required": required},
		}, true

	case "textarea":
		_, required := attr(n, "required")
		return Action{
			ID:       hashutil.Sha256_16("fill:" + selector),
			Type:     ActionFill,
			Label:    fillLabel(n),
			Selector: selector,
			Params:   map[string]any{"value": "string", "required": required},
		}, true

	case "select":
		_, required := attr(n, "required")
		return Action{
			ID:       hashutil.Sha256_16("select:" + selector),
			Type:     ActionSelect,
			Label:    fillLabel(n),
			Selector: selector,
			Params:   map[string]any{"value": "string", "required": required},
		}, true
	}

	return Action{}, false
}

func submitLabel(n *html.Node) string {
	if label := normalizeWhitespace(textContent(n)); label != "" {
		return label
	}
	if val, ok := attr(n, "value"); ok && normalizeWhitespace(val) != "" {
		return normalizeWhitespace(val)
	}
	return "Submit"
}

func fillLabel(n *html.Node) string {
	if label, ok := attr(n, "aria-label"); ok && label != "" {
		return label
	}
	if name, ok := attr(n, "name"); ok && name != "" {
		return name
	}
	if ph, ok := attr(n, "placeholder"); ok && ph != "" {
		return ph
	}
	return n.Data
}

func firstAttr(n *html.Node, key, fallback string) string {
	if v, ok := attr(n, key); ok && v != "" {
		return v
	}
	return fallback
}

// resolveURL resolves href against base, mirroring the link-collection
// resolution rule: only http(s) results are considered resolvable.
func resolveURL(base *url.URL, href string) (string, bool) {
	if strings.TrimSpace(href) == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := ref
	if base != nil {
		resolved = base.ResolveReference(ref)
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}
