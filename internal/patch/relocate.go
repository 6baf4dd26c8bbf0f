package patch

import (
	"fmt"

	"github.com/stategraph/stategraph/internal/extract"
	"github.com/stategraph/stategraph/internal/source"
)

// site is a located literal inside the configuration: the expression
// itself, plus the property that owns it when the locator ends on a key
// step, plus the element index when it ends on an index step.
type site struct {
	Value   source.Expr
	Prop    source.Property
	HasProp bool
	Elem    int
}

// relocate walks loc against the live configuration literal. Property
// lookups follow the extraction rule for duplicate keys: the syntactically
// first declaration wins.
func relocate(config source.Expr, loc extract.Locator) (site, error) {
	st := site{Value: config, Elem: -1}
	for _, step := range loc {
		if step.IsIndex() {
			els := st.Value.Elements()
			if step.Index < 0 || step.Index >= len(els) {
				return site{}, fmt.Errorf("%w: index %d out of range", ErrNoSite, step.Index)
			}
			st.Value = els[step.Index]
			st.Elem = step.Index
			continue
		}
		prop, ok := findProperty(st.Value, step.Key)
		if !ok {
			return site{}, fmt.Errorf("%w: no property %q", ErrNoSite, step.Key)
		}
		st.Prop = prop
		st.HasProp = true
		st.Elem = -1
		st.Value = prop.Value
	}
	return st, nil
}

// findProperty returns obj's first-declared pair property named key.
func findProperty(obj source.Expr, key string) (source.Property, bool) {
	if obj == nil || obj.Kind() != source.KindObject {
		return source.Property{}, false
	}
	for _, p := range obj.Properties() {
		if p.Kind == source.PropPair && p.Key == key && p.Value != nil {
			return p, true
		}
	}
	return source.Property{}, false
}
