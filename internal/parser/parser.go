// Package parser handles YAML frontmatter and wikilink reference tokens.
package parser

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var wikilinkRe = regexp.MustCompile(`^\s*\[\[(.+?)\]\]\s*$`)

// MarkdownExt is the extension appended to wikilink targets to form a
// canonical document identifier.
const MarkdownExt = ".md"

// frontmatterBlock locates the YAML block between the leading ---
// delimiters. Reports false when there is no complete block.
func frontmatterBlock(data []byte) ([]byte, string, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter, treat everything as body.
		return nil, "", false
	}

	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return rest[:idx], body, true
}

// Split separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found, or the YAML block
// is invalid, the frontmatter map is nil and the entire content is body.
func Split(data []byte) (map[string]any, string) {
	block, body, ok := frontmatterBlock(data)
	if !ok {
		return nil, string(data)
	}
	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// SplitOrdered is Split plus the frontmatter keys in document order,
// for rewrites that must keep the author's key layout.
func SplitOrdered(data []byte) (map[string]any, []string, string) {
	block, body, ok := frontmatterBlock(data)
	if !ok {
		return nil, nil, string(data)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(block, &doc); err != nil {
		return nil, nil, string(data)
	}
	if len(doc.Content) == 0 {
		return nil, nil, body
	}
	var fm map[string]any
	if err := doc.Decode(&fm); err != nil {
		return nil, nil, string(data)
	}
	var order []string
	if mapping := doc.Content[0]; mapping.Kind == yaml.MappingNode {
		for k := 0; k+1 < len(mapping.Content); k += 2 {
			order = append(order, mapping.Content[k].Value)
		}
	}
	return fm, order, body
}

// Serialize renders a frontmatter map and body back into file content.
// Keys named in order come first, in that order; any remaining keys
// follow sorted. Untouched frontmatter keeps the author's layout that
// way, instead of being re-sorted on every rewrite. A nil map produces
// the bare body with no frontmatter block.
func Serialize(fm map[string]any, order []string, body string) ([]byte, error) {
	if fm == nil {
		return []byte(body), nil
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	emitted := make(map[string]struct{}, len(fm))
	emit := func(key string) error {
		value, ok := fm[key]
		if !ok {
			return nil
		}
		if _, dup := emitted[key]; dup {
			return nil
		}
		emitted[key] = struct{}{}
		var keyNode, valNode yaml.Node
		if err := keyNode.Encode(key); err != nil {
			return fmt.Errorf("parser: marshal frontmatter key %q: %w", key, err)
		}
		if err := valNode.Encode(value); err != nil {
			return fmt.Errorf("parser: marshal frontmatter %q: %w", key, err)
		}
		root.Content = append(root.Content, &keyNode, &valNode)
		return nil
	}

	for _, key := range order {
		if err := emit(key); err != nil {
			return nil, err
		}
	}
	rest := make([]string, 0, len(fm))
	for key := range fm {
		if _, done := emitted[key]; !done {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := emit(key); err != nil {
			return nil, err
		}
	}

	yamlBlock, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBlock)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// ParseLinks extracts canonical document identifiers from a frontmatter
// value. The value may be a single wikilink token, a list of tokens, or
// anything else (which yields no links, not an error). Tokens have the
// shape [[target]] or [[target|alias]]; the alias is discarded and the
// Markdown extension is appended to the target. Malformed tokens are
// skipped. Results are deduplicated, preserving first occurrence order.
func ParseLinks(value any) []string {
	var tokens []string
	switch v := value.(type) {
	case string:
		tokens = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				tokens = append(tokens, s)
			}
		}
	case []string:
		tokens = v
	default:
		return nil
	}

	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, tok := range tokens {
		target, ok := LinkTarget(tok)
		if !ok {
			continue
		}
		id := CanonicalID(target)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// LinkTarget extracts the target from a single wikilink token,
// discarding any alias. Returns false for anything that is not a
// well-formed token with a non-empty target.
func LinkTarget(token string) (string, bool) {
	m := wikilinkRe.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	target := m[1]
	if i := strings.Index(target, "|"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	return target, true
}

// CanonicalID turns a wikilink target into a canonical document
// identifier by appending the Markdown extension when absent.
func CanonicalID(target string) string {
	if strings.HasSuffix(target, MarkdownExt) {
		return target
	}
	return target + MarkdownExt
}

// EnsureAlias normalises a wikilink token so that a target containing a
// path segment always carries an explicit alias: [[a/b]] becomes
// [[a/b|b]]. Tokens without a path segment, tokens that already carry
// an alias, and non-token values are returned unchanged.
func EnsureAlias(token string) string {
	m := wikilinkRe.FindStringSubmatch(token)
	if m == nil {
		return token
	}
	inner := m[1]
	if strings.Contains(inner, "|") {
		return token
	}
	if !strings.Contains(inner, "/") {
		return token
	}
	alias := strings.TrimSuffix(path.Base(inner), MarkdownExt)
	return "[[" + inner + "|" + alias + "]]"
}

// EnsureAliasValue applies EnsureAlias to a scalar string value or to
// every string member of a list value. Other values pass through.
func EnsureAliasValue(value any) any {
	switch v := value.(type) {
	case string:
		return EnsureAlias(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				out[i] = EnsureAlias(s)
			} else {
				out[i] = item
			}
		}
		return out
	default:
		return value
	}
}
