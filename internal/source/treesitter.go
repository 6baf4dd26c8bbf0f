package source

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnsupportedFile is returned when no grammar matches a file's extension.
var ErrUnsupportedFile = errors.New("unsupported file extension")

// TSFile is the tree-sitter backed implementation of File.
type TSFile struct {
	path     string
	src      []byte
	version  int
	langName string
	lang     *sitter.Language
	tree     *sitter.Tree

	lineOffsets []uint32
	quote       byte
}

var _ File = (*TSFile)(nil)

// ParseFile parses src with the grammar matching path's extension. The
// version is the caller's monotonic reparse counter for the path.
func ParseFile(path string, src []byte, version int) (*TSFile, error) {
	langName, lang, ok := LanguageForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &TSFile{
		path:     path,
		src:      src,
		version:  version,
		langName: langName,
		lang:     lang,
		tree:     tree,
	}, nil
}

func (f *TSFile) Path() string  { return f.path }
func (f *TSFile) Bytes() []byte { return f.src }
func (f *TSFile) Version() int  { return f.version }

// Language returns the grammar name used to parse the file.
func (f *TSFile) Language() string { return f.langName }

// Factory calls appear either as a bare identifier call or behind a
// property access; both shapes capture the callee name for filtering.
const machineCallQuery = `
(call_expression
  function: (identifier) @callee
  arguments: (arguments) @args) @call
(call_expression
  function: (member_expression
    property: (property_identifier) @callee)
  arguments: (arguments) @args) @call
`

func (f *TSFile) MachineCalls(factory string) []MachineCall {
	q, err := sitter.NewQuery([]byte(machineCallQuery), f.lang)
	if err != nil {
		// The query is a compile-time constant valid for every grammar we
		// load; failure here is a bug, not an input condition.
		panic(fmt.Sprintf("machine call query: %v", err))
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, f.tree.RootNode())

	var calls []MachineCall
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var call, callee, args *sitter.Node
		for _, c := range m.Captures {
			switch q.CaptureNameForId(c.Index) {
			case "call":
				call = c.Node
			case "callee":
				callee = c.Node
			case "args":
				args = c.Node
			}
		}
		if call == nil || callee == nil || f.text(callee) != factory {
			continue
		}
		mc := MachineCall{Span: f.span(call)}
		if arg := firstArgument(args); arg != nil {
			mc.Config = f.expr(arg)
		}
		calls = append(calls, mc)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].Span.Start < calls[j].Span.Start })
	return calls
}

func (f *TSFile) Position(offset uint32) (line, col uint32) {
	if f.lineOffsets == nil {
		f.lineOffsets = append(f.lineOffsets, 0)
		for i, b := range f.src {
			if b == '\n' {
				f.lineOffsets = append(f.lineOffsets, uint32(i+1))
			}
		}
	}
	i := sort.Search(len(f.lineOffsets), func(i int) bool { return f.lineOffsets[i] > offset }) - 1
	return uint32(i), offset - f.lineOffsets[i]
}

const moduleSpecifierQuery = `
(import_statement source: (string) @spec)
(export_statement source: (string) @spec)
`

// QuoteStyle scans import/export module specifiers and returns the majority
// quote character. Ties and files without imports default to double quotes.
func (f *TSFile) QuoteStyle() byte {
	if f.quote != 0 {
		return f.quote
	}
	f.quote = '"'
	q, err := sitter.NewQuery([]byte(moduleSpecifierQuery), f.lang)
	if err != nil {
		return f.quote
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, f.tree.RootNode())

	singles, doubles := 0, 0
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			switch f.src[c.Node.StartByte()] {
			case '\'':
				singles++
			case '"':
				doubles++
			}
		}
	}
	if singles > doubles {
		f.quote = '\''
	}
	return f.quote
}

func (f *TSFile) span(n *sitter.Node) Span {
	return Span{Start: n.StartByte(), End: n.EndByte()}
}

func (f *TSFile) text(n *sitter.Node) string {
	return string(f.src[n.StartByte():n.EndByte()])
}

// expr wraps a node as an Expr, looking through transparent wrappers
// (parentheses, as/satisfies casts, non-null assertions) so callers always
// see the underlying literal.
func (f *TSFile) expr(n *sitter.Node) Expr {
	return tsExpr{f: f, n: unwrap(n)}
}

func unwrap(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
			if c := firstNonComment(n); c != nil {
				n = c
				continue
			}
		case "type_assertion":
			// <T>expr keeps the wrapped expression as its last named child.
			if c := n.NamedChild(int(n.NamedChildCount()) - 1); c != nil {
				n = c
				continue
			}
		}
		return n
	}
	return n
}

func firstNonComment(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}

// firstArgument returns the first real argument, skipping comments.
func firstArgument(args *sitter.Node) *sitter.Node {
	if args == nil {
		return nil
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if c := args.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}

type tsExpr struct {
	f *TSFile
	n *sitter.Node
}

var _ Expr = tsExpr{}

func (e tsExpr) Kind() Kind {
	switch e.n.Type() {
	case "object":
		return KindObject
	case "array":
		return KindArray
	case "string":
		return KindString
	case "template_string":
		if hasSubstitution(e.n) {
			return KindOther
		}
		return KindString
	case "number":
		return KindNumber
	case "true", "false":
		return KindBool
	case "null":
		return KindNull
	case "undefined":
		return KindUndefined
	case "arrow_function", "function", "function_expression",
		"generator_function", "generator_function_expression":
		return KindFunction
	case "spread_element":
		return KindSpread
	default:
		return KindOther
	}
}

func (e tsExpr) Span() Span   { return e.f.span(e.n) }
func (e tsExpr) Text() string { return e.f.text(e.n) }

func (e tsExpr) Properties() []Property {
	if e.n.Type() != "object" {
		return nil
	}
	var props []Property
	for i := 0; i < int(e.n.NamedChildCount()); i++ {
		c := e.n.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "pair":
			props = append(props, e.f.pairProperty(c))
		case "shorthand_property_identifier":
			props = append(props, Property{
				Kind:     PropShorthand,
				Key:      e.f.text(c),
				KeyExact: true,
				KeySpan:  e.f.span(c),
				Span:     e.f.span(c),
			})
		case "spread_element":
			props = append(props, Property{Kind: PropSpread, Span: e.f.span(c)})
		case "method_definition":
			p := Property{Kind: PropMethod, Span: e.f.span(c)}
			if name := c.ChildByFieldName("name"); name != nil {
				p.Key = e.f.text(name)
				p.KeySpan = e.f.span(name)
			}
			props = append(props, p)
		}
	}
	return props
}

func (f *TSFile) pairProperty(pair *sitter.Node) Property {
	p := Property{Kind: PropPair, Span: f.span(pair)}
	key := pair.ChildByFieldName("key")
	if v := pair.ChildByFieldName("value"); v != nil {
		p.Value = f.expr(v)
	}
	if key == nil {
		p.Kind = PropOpaqueKey
		return p
	}
	p.KeySpan = f.span(key)
	switch key.Type() {
	case "property_identifier":
		p.Key = f.text(key)
		p.KeyExact = true
	case "string":
		p.Key, p.KeyExact = decodeStringExact(f.text(key))
		p.KeyQuoted = true
	case "number":
		p.Key = f.text(key)
		p.KeyExact = isPlainInteger(p.Key)
	case "computed_property_name":
		inner := firstNonComment(key)
		if inner == nil {
			p.Kind = PropOpaqueKey
			return p
		}
		switch inner.Type() {
		case "string":
			p.Key, p.KeyExact = decodeStringExact(f.text(inner))
			p.KeyQuoted = true
		case "number":
			p.Key = f.text(inner)
			p.KeyQuoted = true
			p.KeyExact = isPlainInteger(p.Key)
		default:
			p.Kind = PropOpaqueKey
		}
	default:
		// private_property_identifier and future key shapes.
		p.Kind = PropOpaqueKey
	}
	return p
}

func (e tsExpr) Elements() []Expr {
	if e.n.Type() != "array" {
		return nil
	}
	var out []Expr
	for i := 0; i < int(e.n.NamedChildCount()); i++ {
		if c := e.n.NamedChild(i); c.Type() != "comment" {
			out = append(out, e.f.expr(c))
		}
	}
	return out
}

func (e tsExpr) AsString() (string, bool) {
	switch e.n.Type() {
	case "string":
		s, _ := decodeStringExact(e.f.text(e.n))
		return s, true
	case "template_string":
		if hasSubstitution(e.n) {
			return "", false
		}
		raw := e.f.text(e.n)
		if len(raw) < 2 {
			return "", false
		}
		return decodeEscapes(raw[1 : len(raw)-1]), true
	}
	return "", false
}

func (e tsExpr) AsNumber() (float64, bool) {
	if e.n.Type() != "number" {
		return 0, false
	}
	return parseNumber(e.f.text(e.n))
}

func (e tsExpr) AsBool() (bool, bool) {
	switch e.n.Type() {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func hasSubstitution(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() == "template_substitution" {
			return true
		}
	}
	return false
}
