// Package render turns digraphs into human-readable formats.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stategraph/stategraph/api"
)

// Mermaid produces a stateDiagram-v2 description of the machine. Nested
// states become composite blocks, initial states get [*] arrows, and
// transition labels carry the event name plus the guard's source id.
// Targetless transitions render as self-loops.
func Mermaid(dg *api.Digraph) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	root := dg.Nodes[dg.RootID]
	if root == nil {
		return sb.String()
	}
	writeChildren(&sb, dg, root, "    ")

	for _, e := range sortedEdges(dg) {
		src := stateID(dg, e.Source)
		label := edgeLabel(dg, e)
		if len(e.Targets) == 0 {
			sb.WriteString(fmt.Sprintf("    %s --> %s: %s\n", src, src, label))
			continue
		}
		for _, t := range e.Targets {
			sb.WriteString(fmt.Sprintf("    %s --> %s: %s\n", src, stateID(dg, t), label))
		}
	}
	return sb.String()
}

func writeChildren(sb *strings.Builder, dg *api.Digraph, parent *api.Node, indent string) {
	children := sortedChildren(dg, parent.ID)
	if parent.Data.Initial != "" {
		if init := dg.Child(parent.ID, parent.Data.Initial); init != nil {
			sb.WriteString(fmt.Sprintf("%s[*] --> %s\n", indent, stateID(dg, init.ID)))
		}
	}
	for _, child := range children {
		id := stateID(dg, child.ID)
		if len(dg.Children(child.ID)) == 0 {
			sb.WriteString(fmt.Sprintf("%sstate %q as %s\n", indent, child.Data.Key, id))
			continue
		}
		sb.WriteString(fmt.Sprintf("%sstate %q as %s {\n", indent, child.Data.Key, id))
		writeChildren(sb, dg, child, indent+"    ")
		sb.WriteString(indent + "}\n")
	}
}

func edgeLabel(dg *api.Digraph, e *api.Edge) string {
	var label string
	switch e.Data.Event.Kind {
	case api.EventNamed:
		label = e.Data.Event.EventType
	case api.EventWildcard:
		label = "*"
	case api.EventAlways:
		label = "always"
	case api.EventStateDone:
		label = "onDone"
	case api.EventInvocationDone:
		label = "onDone(" + e.Data.Event.InvocationID + ")"
	case api.EventInvocationError:
		label = "onError(" + e.Data.Event.InvocationID + ")"
	default:
		label = string(e.Data.Event.Kind)
	}
	if e.Data.Guard != "" {
		if block := dg.Blocks[e.Data.Guard]; block != nil {
			label += " [" + block.SourceID + "]"
		}
	}
	label = strings.ReplaceAll(label, "\n", " ")
	return label
}

// stateID builds a diagram-safe identifier from the node's key path.
func stateID(dg *api.Digraph, nodeID string) string {
	if nodeID == dg.RootID {
		return "root"
	}
	var keys []string
	for n := dg.Nodes[nodeID]; n != nil && n.ID != dg.RootID; n = dg.Nodes[n.ParentID] {
		keys = append(keys, sanitizeID(n.Data.Key))
	}
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return strings.Join(keys, "_")
}

func sanitizeID(key string) string {
	var out []byte
	for i := 0; i < len(key); i++ {
		b := key[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '_':
			out = append(out, b)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func sortedChildren(dg *api.Digraph, parentID string) []*api.Node {
	children := dg.Children(parentID)
	sort.Slice(children, func(i, j int) bool { return idLess(children[i].ID, children[j].ID) })
	return children
}

func sortedEdges(dg *api.Digraph) []*api.Edge {
	edges := make([]*api.Edge, 0, len(dg.Edges))
	for _, e := range dg.Edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return idLess(edges[i].ID, edges[j].ID) })
	return edges
}

// idLess orders synthetic ids by their numeric suffix: shorter ids carry
// smaller numbers because the prefix is fixed.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
