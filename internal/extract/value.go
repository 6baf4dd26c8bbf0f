package extract

import (
	"github.com/stategraph/stategraph/internal/source"
)

// decodeValue converts a literal expression to a plain JSON value. It
// returns false when the expression, or anything nested in it, is not data
// (functions, identifiers, spreads, computed keys).
func decodeValue(v source.Expr) (any, bool) {
	switch v.Kind() {
	case source.KindString:
		s, _ := v.AsString()
		return s, true
	case source.KindNumber:
		n, ok := v.AsNumber()
		return n, ok
	case source.KindBool:
		b, _ := v.AsBool()
		return b, true
	case source.KindNull, source.KindUndefined:
		return nil, true
	case source.KindArray:
		items := []any{}
		for _, el := range v.Elements() {
			item, ok := decodeValue(el)
			if !ok {
				return nil, false
			}
			items = append(items, item)
		}
		return items, true
	case source.KindObject:
		obj := map[string]any{}
		for _, p := range v.Properties() {
			if p.Kind != source.PropPair || p.Key == "" || p.Value == nil {
				return nil, false
			}
			if _, dup := obj[p.Key]; dup {
				// First declaration wins, matching the extraction scan.
				continue
			}
			val, ok := decodeValue(p.Value)
			if !ok {
				return nil, false
			}
			obj[p.Key] = val
		}
		return obj, true
	default:
		return nil, false
	}
}
