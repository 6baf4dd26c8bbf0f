package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
)

// Step is one segment of a structural locator: a property key or an array
// index, never both.
type Step struct {
	Key   string
	Index int
}

// Key returns a property step.
func Key(k string) Step { return Step{Key: k, Index: -1} }

// Index returns an array-element step.
func Index(i int) Step { return Step{Index: i} }

// IsIndex reports whether the step addresses an array element.
func (s Step) IsIndex() bool { return s.Key == "" && s.Index >= 0 }

// Locator addresses one literal inside a machine configuration as the path
// of property and index steps from the configuration root. Locators are the
// bridge between an extracted entity and the live syntax tree: the patch
// engine re-walks them against the current parse to find the literal again.
type Locator []Step

// Child returns a new locator extended by steps. The receiver is copied so
// sibling locators never alias the same backing array.
func (l Locator) Child(steps ...Step) Locator {
	out := make(Locator, len(l), len(l)+len(steps))
	copy(out, l)
	return append(out, steps...)
}

func (l Locator) String() string {
	var b strings.Builder
	for _, s := range l {
		if s.IsIndex() {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// TreeNode mirrors one extracted state in a parallel hierarchy keyed by
// state keys, so target resolution can walk sibling and descendant paths.
type TreeNode struct {
	ID       string
	Key      string
	Parent   *TreeNode
	Children map[string]*TreeNode
}

// PendingTarget is one raw transition target string awaiting resolution.
type PendingTarget struct {
	EdgeID string
	Source string
	Raw    string
	Span   source.Span
}

// Context is the working state of one extraction pass. It is rebuilt from
// scratch on every pass; nothing in it survives a re-extraction.
type Context struct {
	// Digraph is nil when the machine has no usable configuration object.
	Digraph *api.Digraph
	Errors  []api.ExtractError

	// IDMap maps declared state ids (the id property) to node ids.
	IDMap map[string]string
	// NodeLocators and EdgeLocators address the literal each entity came
	// from.
	NodeLocators map[string]Locator
	EdgeLocators map[string]Locator
	// Tree indexes the TreeNode hierarchy by node id; Root is the machine
	// root's TreeNode.
	Tree map[string]*TreeNode
	Root *TreeNode

	// Pending holds unresolved transition targets in creation order.
	Pending []PendingTarget

	nodeSeq   int
	edgeSeq   int
	blockSeq  int
	inlineSeq int
}

func newContext() *Context {
	return &Context{
		IDMap:        map[string]string{},
		NodeLocators: map[string]Locator{},
		EdgeLocators: map[string]Locator{},
		Tree:         map[string]*TreeNode{},
	}
}

// Ids are deterministic per-pass counters so an unchanged source extracts
// to an identical digraph, ids included.
func (c *Context) nextNodeID() string {
	id := fmt.Sprintf("node-%d", c.nodeSeq)
	c.nodeSeq++
	return id
}

func (c *Context) nextEdgeID() string {
	id := fmt.Sprintf("edge-%d", c.edgeSeq)
	c.edgeSeq++
	return id
}

func (c *Context) nextBlockID() string {
	id := fmt.Sprintf("block-%d", c.blockSeq)
	c.blockSeq++
	return id
}

func (c *Context) nextInlineID() string {
	id := fmt.Sprintf("inline:%d", c.inlineSeq)
	c.inlineSeq++
	return id
}

func (c *Context) errorf(kind api.ErrorKind, span source.Span, format string, args ...any) {
	c.Errors = append(c.Errors, api.ExtractError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Start:   span.Start,
		End:     span.End,
	})
}

// scanProperties visits props in reverse declaration order. When a key is
// declared more than once every occurrence except the syntactically first
// is skipped, so the first declaration wins without recording an error.
func (c *Context) scanProperties(props []source.Property, visit func(p source.Property)) {
	counts := map[string]int{}
	for _, p := range props {
		if p.Kind == source.PropPair && p.Key != "" {
			counts[p.Key]++
		}
	}
	for i := len(props) - 1; i >= 0; i-- {
		p := props[i]
		if p.Kind == source.PropPair && p.Key != "" {
			counts[p.Key]--
			if counts[p.Key] > 0 {
				continue
			}
		}
		visit(p)
	}
}

// readablePair narrows a scanned property to a usable key/value pair,
// recording the matching taxonomy error otherwise.
func (c *Context) readablePair(p source.Property) bool {
	switch p.Kind {
	case source.PropPair:
	case source.PropOpaqueKey:
		c.errorf(api.ErrPropertyKeyUnhandled, p.Span, "property key is not a readable literal")
		return false
	case source.PropShorthand:
		c.errorf(api.ErrPropertyUnhandled, p.Span, "shorthand property %q is not supported", p.Key)
		return false
	case source.PropSpread:
		c.errorf(api.ErrPropertyUnhandled, p.Span, "spread properties are not supported")
		return false
	default:
		c.errorf(api.ErrPropertyUnhandled, p.Span, "method and accessor properties are not supported")
		return false
	}
	if p.Key == "" {
		c.errorf(api.ErrPropertyKeyUnhandled, p.Span, "property key is not readable")
		return false
	}
	if !p.KeyExact {
		c.errorf(api.ErrPropertyKeyNoRoundtrip, p.KeySpan, "key %q does not round-trip its source spelling", p.Key)
	}
	if p.Value == nil {
		c.errorf(api.ErrPropertyUnhandled, p.Span, "property %q has no readable value", p.Key)
		return false
	}
	return true
}

func (c *Context) newNode(parent *TreeNode, key string, loc Locator) *api.Node {
	id := c.nextNodeID()
	n := &api.Node{ID: id, Data: api.NodeData{Key: key, Type: api.NodeTypeNormal}}
	tn := &TreeNode{ID: id, Key: key, Parent: parent, Children: map[string]*TreeNode{}}
	if parent != nil {
		n.ParentID = parent.ID
		parent.Children[key] = tn
	}
	c.Digraph.Nodes[id] = n
	c.Tree[id] = tn
	c.NodeLocators[id] = loc
	return n
}
