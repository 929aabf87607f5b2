package parser

import (
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/continuity-tools/artifact-index/internal/artifact"
	"github.com/continuity-tools/artifact-index/internal/errors"
)

// Matches a line that starts with --- and holds nothing else but trailing
// blanks. An indented --- inside a block scalar stays content.
var yamlSeparator = regexp.MustCompile(`(?m)^---[ \t]*$`)

// YAMLDocument is a YAML handoff split into its two blocks.
type YAMLDocument struct {
	Frontmatter *yaml.Node
	Body        *yaml.Node
}

// SplitYAMLDocument splits text into a frontmatter block and a body block.
// Content before the first separator, or fewer than two separators, is a
// format error.
func SplitYAMLDocument(path, text string) (*YAMLDocument, error) {
	parts := yamlSeparator.Split(normalizeNewlines(text), 3)
	if len(parts) < 3 {
		return nil, errors.FormatError(path, "missing frontmatter delimiters", nil)
	}
	if strings.TrimSpace(parts[0]) != "" {
		return nil, errors.FormatError(path, "content before frontmatter", nil)
	}

	fm, err := decodeYAML(parts[1])
	if err != nil {
		return nil, errors.FormatError(path, "invalid frontmatter", err)
	}
	body, err := decodeYAML(parts[2])
	if stderrors.Is(err, errMultipleDocuments) {
		return nil, errors.FormatError(path, "body holds more than one YAML document", nil)
	}
	if err != nil {
		return nil, errors.FormatError(path, "invalid body", err)
	}
	return &YAMLDocument{Frontmatter: fm, Body: body}, nil
}

var errMultipleDocuments = stderrors.New("more than one YAML document")

// decodeYAML returns the root content node, or nil for an empty block.
// A block must hold at most one document.
func decodeYAML(src string) (*yaml.Node, error) {
	dec := yaml.NewDecoder(strings.NewReader(src))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !stderrors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, errMultipleDocuments
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	return resolve(doc.Content[0]), nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// lookup returns the value for key in a mapping node.
func lookup(n *yaml.Node, key string) *yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolve(n.Content[i+1])
		}
	}
	return nil
}

// text renders a node as a single string. Scalars keep their literal value
// (so dates stay as written); collections are re-encoded in flow style.
func text(n *yaml.Node) string {
	n = resolve(n)
	if n == nil {
		return ""
	}
	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!null" {
			return ""
		}
		return n.Value
	}
	flow := *n
	flow.Style = yaml.FlowStyle
	out, err := yaml.Marshal(&flow)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func items(n *yaml.Node) []*yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]*yaml.Node, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, resolve(c))
	}
	return out
}

// bulletList renders a sequence as "- item" lines; anything else renders as text.
func bulletList(n *yaml.Node) string {
	n = resolve(n)
	if n == nil {
		return ""
	}
	if n.Kind != yaml.SequenceNode {
		return text(n)
	}
	lines := make([]string, 0, len(n.Content))
	for _, item := range items(n) {
		lines = append(lines, "- "+text(item))
	}
	return strings.Join(lines, "\n")
}

// decisionList renders a mapping as "- key: value" lines in document order.
func decisionList(n *yaml.Node) string {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return bulletList(n)
	}
	lines := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		lines = append(lines, fmt.Sprintf("- %s: %s", n.Content[i].Value, text(n.Content[i+1])))
	}
	return strings.Join(lines, "\n")
}

func stringItems(n *yaml.Node) []string {
	var out []string
	for _, item := range items(n) {
		if item.Kind == yaml.ScalarNode {
			out = append(out, item.Value)
		}
	}
	return out
}

// ParseHandoffYAML parses a YAML handoff. The body's structured fields are
// flattened into the same text shapes the markdown dialect produces.
func ParseHandoffYAML(path string, content []byte) (*artifact.Handoff, error) {
	doc, err := SplitYAMLDocument(path, string(content))
	if err != nil {
		return nil, err
	}
	fm, body := doc.Frontmatter, doc.Body
	if body != nil && body.Kind != yaml.MappingNode {
		return nil, errors.FormatError(path, "body is not a mapping", nil)
	}

	done := items(lookup(body, "done_this_session"))

	summary := text(lookup(body, "goal"))
	if summary == "" && len(done) > 0 {
		summary = text(lookup(done[0], "task"))
	}

	files := []string{}
	for _, task := range done {
		files = append(files, stringItems(lookup(task, "files"))...)
	}
	if section := lookup(body, "files"); section != nil && section.Kind == yaml.MappingNode {
		for i := 1; i < len(section.Content); i += 2 {
			files = append(files, stringItems(section.Content[i])...)
		}
	}

	h := handoffBase(path)
	h.TaskSummary = artifact.Truncate(summary, artifact.MaxSummaryLen)
	h.WhatWorked = bulletList(lookup(body, "worked"))
	h.WhatFailed = bulletList(lookup(body, "failed"))
	h.KeyDecisions = decisionList(lookup(body, "decisions"))
	h.FilesModified = files
	h.Outcome = artifact.NormalizeOutcome(text(lookup(fm, "outcome")))
	h.RootSpanID = text(lookup(fm, "root_span_id"))
	h.TurnSpanID = text(lookup(fm, "turn_span_id"))
	h.SessionID = text(lookup(fm, "session_id"))
	h.BraintrustSessionID = text(lookup(fm, "braintrust_session_id"))
	h.CreatedAt = createdAt(text(lookup(fm, "date")))
	return h, nil
}
