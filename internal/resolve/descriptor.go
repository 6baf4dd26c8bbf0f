package resolve

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/stategraph/stategraph/api"
)

// ErrNoDescriptor reports that no descriptor can address the target. With a
// consistent digraph this cannot happen (the root always carries at least
// the fallback id), so callers treat it as an internal invariant failure.
var ErrNoDescriptor = errors.New("no addressable path to target node")

// Descriptor synthesizes the minimal target string that resolves back to
// targetID from sourceID. declaredID maps node ids to their declared id
// strings (the inverse of the extraction id map).
func Descriptor(dg *api.Digraph, declaredID map[string]string, sourceID, targetID string) (string, error) {
	src := dg.Nodes[sourceID]
	tgt := dg.Nodes[targetID]
	if src == nil || tgt == nil {
		return "", fmt.Errorf("%w: %s -> %s", ErrNoDescriptor, sourceID, targetID)
	}

	// The root is always addressed by id, its own or the fallback marker.
	if targetID == dg.RootID {
		if id, ok := declaredID[targetID]; ok {
			return "#" + id, nil
		}
		return "", fmt.Errorf("%w: root has no declared id", ErrNoDescriptor)
	}

	if targetID == sourceID {
		return tgt.Data.Key, nil
	}

	srcChain := ancestorChain(dg, sourceID)
	tgtChain := ancestorChain(dg, targetID)
	nca := commonAncestor(srcChain, tgtChain)

	// Target below the source: a leading-dot descending path.
	if nca == sourceID {
		return "." + strings.Join(keysBelow(dg, tgtChain, nca), "."), nil
	}
	// Shared parent: a sibling path with no leading dot.
	if nca == src.ParentID && nca != targetID {
		return strings.Join(keysBelow(dg, tgtChain, nca), "."), nil
	}

	// Otherwise climb from the target to the nearest declared id, the
	// target itself included, and descend from there.
	for i := len(tgtChain) - 1; i >= 0; i-- {
		id, ok := declaredID[tgtChain[i]]
		if !ok {
			continue
		}
		rest := keysBelow(dg, tgtChain, tgtChain[i])
		if len(rest) == 0 {
			return "#" + id, nil
		}
		return "#" + id + "." + strings.Join(rest, "."), nil
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrNoDescriptor, sourceID, targetID)
}

// ancestorChain returns the node ids from the root down to id, inclusive.
func ancestorChain(dg *api.Digraph, id string) []string {
	var out []string
	for cur := id; cur != ""; {
		n := dg.Nodes[cur]
		if n == nil {
			return nil
		}
		out = append(out, cur)
		cur = n.ParentID
	}
	slices.Reverse(out)
	return out
}

// commonAncestor returns the deepest id shared by both root-first chains.
func commonAncestor(a, b []string) string {
	last := ""
	for i := 0; i < len(a) && i < len(b) && a[i] == b[i]; i++ {
		last = a[i]
	}
	return last
}

// keysBelow returns the state keys along chain strictly below fromID.
func keysBelow(dg *api.Digraph, chain []string, fromID string) []string {
	idx := slices.Index(chain, fromID)
	if idx < 0 {
		return nil
	}
	keys := make([]string, 0, len(chain)-idx-1)
	for _, id := range chain[idx+1:] {
		keys = append(keys, dg.Nodes[id].Data.Key)
	}
	return keys
}
