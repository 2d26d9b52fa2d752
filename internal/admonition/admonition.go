// Package admonition rewrites documentation-engine admonition blocks into
// GitHub-flavored markdown alert blockquotes. It runs as a pandoc JSON
// filter: the document AST comes in on stdin and leaves on stdout.
package admonition

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// alertKinds maps admonition classes to alert markers
var alertKinds = map[string]string{
	"note":      "NOTE",
	"tip":       "TIP",
	"important": "IMPORTANT",
	"warning":   "WARNING",
	"caution":   "CAUTION",
}

// node is a pandoc AST element
type node struct {
	T string          `json:"t"`
	C json.RawMessage `json:"c,omitempty"`
}

// document is the top-level pandoc JSON document
type document struct {
	APIVersion json.RawMessage `json:"pandoc-api-version"`
	Meta       json.RawMessage `json:"meta"`
	Blocks     []node          `json:"blocks"`
}

// Run reads a pandoc JSON document, rewrites admonition Divs into alert
// blockquotes and writes the document back out.
func Run(r io.Reader, w io.Writer) error {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode pandoc document: %w", err)
	}

	blocks, err := rewriteBlocks(doc.Blocks)
	if err != nil {
		return err
	}
	doc.Blocks = blocks

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode pandoc document: %w", err)
	}
	return nil
}

func rewriteBlocks(blocks []node) ([]node, error) {
	out := make([]node, 0, len(blocks))
	for _, b := range blocks {
		nb, err := rewriteBlock(b)
		if err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, nil
}

// rewriteBlock descends into the container shapes admonitions can hide in;
// every other node passes through untouched.
func rewriteBlock(b node) (node, error) {
	switch b.T {
	case "Div":
		return rewriteDiv(b)

	case "BlockQuote":
		var inner []node
		if err := json.Unmarshal(b.C, &inner); err != nil {
			return node{}, fmt.Errorf("malformed BlockQuote: %w", err)
		}
		inner, err := rewriteBlocks(inner)
		if err != nil {
			return node{}, err
		}
		return makeNode("BlockQuote", inner)

	case "BulletList":
		var items [][]node
		if err := json.Unmarshal(b.C, &items); err != nil {
			return node{}, fmt.Errorf("malformed BulletList: %w", err)
		}
		for i, item := range items {
			rewritten, err := rewriteBlocks(item)
			if err != nil {
				return node{}, err
			}
			items[i] = rewritten
		}
		return makeNode("BulletList", items)

	case "OrderedList":
		var parts []json.RawMessage // [attrs, items]
		if err := json.Unmarshal(b.C, &parts); err != nil || len(parts) != 2 {
			return node{}, fmt.Errorf("malformed OrderedList: %v", err)
		}
		var items [][]node
		if err := json.Unmarshal(parts[1], &items); err != nil {
			return node{}, fmt.Errorf("malformed OrderedList items: %w", err)
		}
		for i, item := range items {
			rewritten, err := rewriteBlocks(item)
			if err != nil {
				return node{}, err
			}
			items[i] = rewritten
		}
		itemsRaw, err := json.Marshal(items)
		if err != nil {
			return node{}, err
		}
		parts[1] = itemsRaw
		c, err := json.Marshal(parts)
		if err != nil {
			return node{}, err
		}
		return node{T: "OrderedList", C: c}, nil

	default:
		return b, nil
	}
}

// rewriteDiv turns an admonition Div into a BlockQuote led by the alert
// marker paragraph; other Divs keep their shape with rewritten children.
func rewriteDiv(b node) (node, error) {
	var parts []json.RawMessage // [attr, blocks]
	if err := json.Unmarshal(b.C, &parts); err != nil || len(parts) != 2 {
		return node{}, fmt.Errorf("malformed Div: %v", err)
	}

	var attr []json.RawMessage // [id, classes, kvs]
	if err := json.Unmarshal(parts[0], &attr); err != nil || len(attr) != 3 {
		return node{}, fmt.Errorf("malformed Div attr: %v", err)
	}
	var classes []string
	if err := json.Unmarshal(attr[1], &classes); err != nil {
		return node{}, fmt.Errorf("malformed Div classes: %w", err)
	}

	var inner []node
	if err := json.Unmarshal(parts[1], &inner); err != nil {
		return node{}, fmt.Errorf("malformed Div content: %w", err)
	}
	inner, err := rewriteBlocks(inner)
	if err != nil {
		return node{}, err
	}

	kind := ""
	for _, cl := range classes {
		if k, ok := alertKinds[strings.ToLower(cl)]; ok {
			kind = k
			break
		}
	}
	if kind == "" {
		innerRaw, err := json.Marshal(inner)
		if err != nil {
			return node{}, err
		}
		c, err := json.Marshal([]json.RawMessage{parts[0], innerRaw})
		if err != nil {
			return node{}, err
		}
		return node{T: "Div", C: c}, nil
	}

	quote := make([]node, 0, len(inner)+2)
	quote = append(quote, paraStr("[!"+kind+"]"))
	if title, rest, ok := splitTitle(inner); ok {
		quote = append(quote, title)
		inner = rest
	}
	quote = append(quote, inner...)
	return makeNode("BlockQuote", quote)
}

// splitTitle peels off a leading title Div (asciidoctor emits one for
// titled admonitions) and returns it as a bold paragraph.
func splitTitle(blocks []node) (node, []node, bool) {
	if len(blocks) == 0 || blocks[0].T != "Div" {
		return node{}, nil, false
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(blocks[0].C, &parts); err != nil || len(parts) != 2 {
		return node{}, nil, false
	}
	var attr []json.RawMessage
	if err := json.Unmarshal(parts[0], &attr); err != nil || len(attr) != 3 {
		return node{}, nil, false
	}
	var classes []string
	if err := json.Unmarshal(attr[1], &classes); err != nil {
		return node{}, nil, false
	}
	isTitle := false
	for _, cl := range classes {
		if cl == "title" {
			isTitle = true
			break
		}
	}
	if !isTitle {
		return node{}, nil, false
	}

	var tblocks []node
	if err := json.Unmarshal(parts[1], &tblocks); err != nil || len(tblocks) == 0 {
		return node{}, nil, false
	}
	tb := tblocks[0]
	if tb.T != "Para" && tb.T != "Plain" {
		return node{}, nil, false
	}

	strong := node{T: "Strong", C: tb.C}
	c, err := json.Marshal([]node{strong})
	if err != nil {
		return node{}, nil, false
	}
	return node{T: "Para", C: c}, blocks[1:], true
}

// makeNode marshals v into the content of a node with the given tag
func makeNode(tag string, v interface{}) (node, error) {
	c, err := json.Marshal(v)
	if err != nil {
		return node{}, err
	}
	return node{T: tag, C: c}, nil
}

// paraStr builds a Para holding a single Str inline
func paraStr(s string) node {
	strC, _ := json.Marshal(s)
	c, _ := json.Marshal([]node{{T: "Str", C: strC}})
	return node{T: "Para", C: c}
}
