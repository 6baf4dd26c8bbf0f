// Package patch applies graph-level edits to an extracted machine. Every
// patch lands twice: structurally on an in-memory copy of the digraph, so
// later patches in the same batch observe it, and textually as an edit
// against the original, unmodified source. Text edits are returned in one
// batch, ordered and non-overlapping, for atomic application.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/extract"
	"github.com/stategraph/stategraph/internal/source"
)

var (
	// ErrUnsupportedPatch marks a path/op combination the engine has no
	// write rule for. These are programmer errors and fail the whole batch.
	ErrUnsupportedPatch = errors.New("unsupported patch")
	// ErrNoSite is returned when a patch addresses an entity whose literal
	// cannot be found in the current parse, e.g. one added earlier in the
	// same batch. Editors re-extract between structural rounds instead.
	ErrNoSite = errors.New("no source literal for patch target")
)

// Machine bundles what the engine needs to know about one extracted
// machine: the digraph, its structural locators and declared ids, and the
// live parse of the file that contains it.
type Machine struct {
	File         source.File
	Config       source.Expr
	Digraph      *api.Digraph
	NodeLocators map[string]extract.Locator
	EdgeLocators map[string]extract.Locator
	// DeclaredIDs maps node ids to declared id strings.
	DeclaredIDs map[string]string
}

// Apply runs patches in order and returns the text edits realizing them.
// An empty batch returns no edits and changes nothing.
func Apply(m Machine, patches []api.Patch) ([]api.TextEdit, error) {
	s, err := newSession(m)
	if err != nil {
		return nil, err
	}
	var edits []api.TextEdit
	for i, p := range patches {
		es, err := s.apply(p)
		if err != nil {
			return nil, fmt.Errorf("patch %d (%s %s): %w", i, p.Op, p.PathString(), err)
		}
		edits = append(edits, es...)
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].Start < edits[j].Start })
	return edits, nil
}

type session struct {
	m     Machine
	doc   map[string]any
	quote byte
}

func newSession(m Machine) (*session, error) {
	raw, err := json.Marshal(m.Digraph)
	if err != nil {
		return nil, fmt.Errorf("encode digraph: %w", err)
	}
	v, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("decode digraph: %w", err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("digraph did not decode to an object")
	}
	return &session{m: m, doc: doc, quote: m.File.QuoteStyle()}, nil
}

func (s *session) apply(p api.Patch) ([]api.TextEdit, error) {
	if len(p.Path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrUnsupportedPatch)
	}
	if err := s.applyDoc(p); err != nil {
		return nil, err
	}

	switch {
	case p.Op == api.OpAdd && len(p.Path) == 2 && p.Path[0] == "nodes":
		return s.addNode(p)
	case p.Op == api.OpAdd && len(p.Path) == 2 && p.Path[0] == "edges":
		return s.addEdge(p)
	case p.Op == api.OpReplace && len(p.Path) == 4 && p.Path[0] == "nodes" && p.Path[2] == "data":
		return s.replaceNodeField(p)
	case p.Op == api.OpRemove && len(p.Path) == 2 && p.Path[0] == "nodes":
		return s.removeNode(p)
	case p.Op == api.OpRemove && len(p.Path) == 2 && p.Path[0] == "edges":
		return s.removeEdge(p)
	case p.Op == api.OpRemove:
		// Accepted as a structural no-op on every other path.
		return nil, nil
	case p.Path[0] == "blocks" || p.Path[0] == "implementations" || p.Path[0] == "data":
		// Consumed for in-batch consistency; these have no source location
		// of their own.
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedPatch, p.Op, p.PathString())
	}
}

// applyDoc mirrors the patch onto the in-memory digraph copy.
func (s *session) applyDoc(p api.Patch) error {
	var val any
	if len(p.Value) > 0 {
		v, err := oj.Parse(p.Value)
		if err != nil {
			return fmt.Errorf("patch value: %w", err)
		}
		val = v
	}
	expr := pathExpr(p.Path)
	switch p.Op {
	case api.OpAdd, api.OpReplace:
		if err := expr.Set(s.doc, val); err != nil {
			return fmt.Errorf("apply to digraph: %w", err)
		}
	case api.OpRemove:
		if err := expr.Del(s.doc); err != nil {
			return fmt.Errorf("apply to digraph: %w", err)
		}
	default:
		return fmt.Errorf("%w: op %q", ErrUnsupportedPatch, p.Op)
	}
	return nil
}

// pathExpr converts patch path segments to a JSONPath expression. Numeric
// segments index arrays.
func pathExpr(segs []string) jp.Expr {
	x := jp.R()
	for _, seg := range segs {
		if n, err := strconv.Atoi(seg); err == nil {
			x = x.N(n)
		} else {
			x = x.C(seg)
		}
	}
	return x
}

// digraph decodes the current in-memory copy back to its typed form so
// lookups and descriptor synthesis observe earlier patches in the batch.
func (s *session) digraph() (*api.Digraph, error) {
	var dg api.Digraph
	if err := json.Unmarshal([]byte(oj.JSON(s.doc)), &dg); err != nil {
		return nil, fmt.Errorf("decode patched digraph: %w", err)
	}
	return &dg, nil
}
