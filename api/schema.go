package api

// Digraph is the normalized form of one machine: a flat node map keyed by
// id, the edges between nodes, the implementation blocks attached to both,
// and machine-level data. It is the unit exchanged with editors.
type Digraph struct {
	// RootID is the id of the machine's root node.
	RootID string `json:"rootId"`
	// Nodes maps node id to node.
	Nodes map[string]*Node `json:"nodes"`
	// Edges maps edge id to edge.
	Edges map[string]*Edge `json:"edges"`
	// Blocks maps block id to block.
	Blocks map[string]*Block `json:"blocks"`
	// Implementations is the deduplicated registry of named implementations.
	Implementations *Implementations `json:"implementations"`
	// Data carries machine-level properties.
	Data MachineData `json:"data"`
}

// MachineData holds properties that belong to the machine rather than to a
// single state, currently only the initial context.
type MachineData struct {
	Context *ContextData `json:"context,omitempty"`
}

// ContextData is either a plain JSON value (literal object context) or the
// captured source text of an inline context function.
type ContextData struct {
	Value    any    `json:"value,omitempty"`
	Function string `json:"function,omitempty"`
}

// NodeType classifies a state node.
type NodeType string

const (
	NodeTypeNormal   NodeType = "normal"
	NodeTypeHistory  NodeType = "history"
	NodeTypeParallel NodeType = "parallel"
	NodeTypeFinal    NodeType = "final"
)

// HistoryKind selects shallow or deep history for history nodes.
type HistoryKind string

const (
	HistoryShallow HistoryKind = "shallow"
	HistoryDeep    HistoryKind = "deep"
)

// Node is one state in the machine's tree.
type Node struct {
	ID string `json:"id"`
	// ParentID is empty for the root node.
	ParentID string   `json:"parentId,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData carries the extracted properties of a state literal.
type NodeData struct {
	// Key is the state's property name under its parent's states object.
	// For the root node it is the machine's declared id, or "(machine)".
	Key string `json:"key"`
	// Initial names the initial child state by key. Empty means none.
	Initial string   `json:"initial,omitempty"`
	Type    NodeType `json:"type"`
	// History is only meaningful when Type is history.
	History     HistoryKind `json:"history,omitempty"`
	Description string      `json:"description,omitempty"`
	// Meta preserves the declaration order of meta entries.
	Meta []MetaEntry `json:"meta,omitempty"`
	// Entry, Exit and Invoke hold block ids in declaration order.
	Entry  []string `json:"entry,omitempty"`
	Exit   []string `json:"exit,omitempty"`
	Invoke []string `json:"invoke,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// MetaEntry is one key/value pair from a state's meta object.
type MetaEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Edge is a transition from one source node to zero or more target nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	// Targets holds resolved node ids in declaration order. Targetless
	// transitions have an empty list.
	Targets []string `json:"targets"`
	Data    EdgeData `json:"data"`
}

// EdgeData carries the extracted properties of a transition.
type EdgeData struct {
	Event EventTypeData `json:"eventTypeData"`
	// Actions holds block ids in declaration order.
	Actions []string `json:"actions,omitempty"`
	// Guard is a block id, empty when the transition is unguarded.
	Guard       string `json:"guard,omitempty"`
	Description string `json:"description,omitempty"`
	// Internal is false only when the transition re-enters its targets.
	Internal bool `json:"internal"`
}

// EventKind discriminates the EventTypeData variants.
type EventKind string

const (
	EventNamed           EventKind = "named"
	EventWildcard        EventKind = "wildcard"
	EventAlways          EventKind = "always"
	EventStateDone       EventKind = "state.done"
	EventInvocationDone  EventKind = "invocation.done"
	EventInvocationError EventKind = "invocation.error"
	// EventAfter and EventInit exist in the model but no extraction or
	// insertion path produces them yet.
	EventAfter EventKind = "after"
	EventInit  EventKind = "init"
)

// EventTypeData is the tagged event descriptor of an edge. It determines
// both runtime semantics and the structural location a transition is
// written back to.
type EventTypeData struct {
	Kind EventKind `json:"kind"`
	// EventType is set for named events.
	EventType string `json:"eventType,omitempty"`
	// InvocationID is set for invocation.done and invocation.error.
	InvocationID string `json:"invocationId,omitempty"`
}

// BlockKind classifies an implementation block.
type BlockKind string

const (
	BlockAction BlockKind = "action"
	BlockActor  BlockKind = "actor"
	BlockGuard  BlockKind = "guard"
)

// Block is one implementation reference attached to a node or an edge.
type Block struct {
	ID   string    `json:"id"`
	Kind BlockKind `json:"blockType"`
	// ParentID is the owning node or edge id.
	ParentID string `json:"parentId"`
	// SourceID is the declared implementation name, or a synthetic
	// "inline:<token>" id for inline implementations.
	SourceID string `json:"sourceId"`
	// Action and Actor carry kind-specific properties; at most one is set.
	Action *ActionProps `json:"action,omitempty"`
	Actor  *ActorProps  `json:"actor,omitempty"`
}

// ActionProps are the properties of an action block.
type ActionProps struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ActorProps are the properties of an actor block.
type ActorProps struct {
	Src string `json:"src"`
	// ID is the invocation id when declared alongside src.
	ID string `json:"id,omitempty"`
}

// Implementations registers every distinct implementation referenced by the
// machine, keyed by sourceId within each kind.
type Implementations struct {
	Actions map[string]*Implementation `json:"actions"`
	Actors  map[string]*Implementation `json:"actors"`
	Guards  map[string]*Implementation `json:"guards"`
}

// Implementation is the canonical descriptor for one sourceId.
type Implementation struct {
	Kind     BlockKind `json:"kind"`
	SourceID string    `json:"sourceId"`
	// Inline is true for synthetic inline:<token> implementations; Text
	// then carries the captured source expression.
	Inline bool   `json:"inline,omitempty"`
	Text   string `json:"text,omitempty"`
}

// MachineSpan is the byte range of one factory call site.
type MachineSpan struct {
	// Index is the machine's ordinal position within its file.
	Index int    `json:"index"`
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
	// Line and Column locate Start, both zero-based.
	Line   uint32 `json:"line"`
	Column uint32 `json:"column"`
}

// NewDigraph returns an empty digraph with all maps allocated.
func NewDigraph() *Digraph {
	return &Digraph{
		Nodes:  map[string]*Node{},
		Edges:  map[string]*Edge{},
		Blocks: map[string]*Block{},
		Implementations: &Implementations{
			Actions: map[string]*Implementation{},
			Actors:  map[string]*Implementation{},
			Guards:  map[string]*Implementation{},
		},
	}
}

// Child returns the child of parentID carrying the given state key, or nil.
func (d *Digraph) Child(parentID, key string) *Node {
	for _, n := range d.Nodes {
		if n.ParentID == parentID && n.Data.Key == key && n.ID != d.RootID {
			return n
		}
	}
	return nil
}

// NodeByPath walks state keys down from the root. No keys returns the root.
func (d *Digraph) NodeByPath(keys ...string) *Node {
	n := d.Nodes[d.RootID]
	for _, key := range keys {
		if n == nil {
			return nil
		}
		n = d.Child(n.ID, key)
	}
	return n
}

// Children returns parentID's children. Order is unspecified.
func (d *Digraph) Children(parentID string) []*Node {
	var out []*Node
	for _, n := range d.Nodes {
		if n.ID != d.RootID && n.ParentID == parentID {
			out = append(out, n)
		}
	}
	return out
}

// EdgesFrom returns every edge whose source is the given node. Order is
// unspecified.
func (d *Digraph) EdgesFrom(sourceID string) []*Edge {
	var out []*Edge
	for _, e := range d.Edges {
		if e.Source == sourceID {
			out = append(out, e)
		}
	}
	return out
}
