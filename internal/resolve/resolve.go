// Package resolve maps raw transition target strings to node ids and back.
// Resolution runs once per extraction pass over the pending targets;
// synthesis is its inverse, used when writing transitions back to source.
package resolve

import (
	"fmt"
	"strings"

	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/extract"
)

// Targets resolves every pending target of an extraction pass in order,
// appending the resolved node ids to each edge's target list. A failing
// target records transition_target_unresolved and is dropped; the edge
// itself is kept.
func Targets(c *extract.Context) {
	for _, pt := range c.Pending {
		nodeID, ok := target(c, pt.Source, pt.Raw)
		if !ok {
			c.Errors = append(c.Errors, api.ExtractError{
				Kind:    api.ErrTransitionTargetUnresolved,
				Message: fmt.Sprintf("cannot resolve transition target %q", pt.Raw),
				Start:   pt.Span.Start,
				End:     pt.Span.End,
			})
			continue
		}
		edge := c.Digraph.Edges[pt.EdgeID]
		edge.Targets = append(edge.Targets, nodeID)
	}
	c.Pending = nil
}

// target resolves one raw descriptor relative to the edge's source node.
// The first dot-separated segment selects the origin: empty for the source
// node itself, "#id" for a declared id, anything else for a sibling key.
// The remaining segments walk down the children maps.
func target(c *extract.Context, sourceID, raw string) (string, bool) {
	segs := strings.Split(raw, ".")
	var tn *extract.TreeNode
	switch origin := segs[0]; {
	case origin == "":
		tn = c.Tree[sourceID]
	case strings.HasPrefix(origin, "#"):
		nodeID, ok := c.IDMap[origin[1:]]
		if !ok {
			return "", false
		}
		tn = c.Tree[nodeID]
	default:
		src := c.Tree[sourceID]
		if src == nil || src.Parent == nil {
			return "", false
		}
		tn = src.Parent.Children[origin]
	}
	if tn == nil {
		return "", false
	}
	for _, seg := range segs[1:] {
		if tn = tn.Children[seg]; tn == nil {
			return "", false
		}
	}
	return tn.ID, true
}
