package patch

import (
	"github.com/stategraph/stategraph/api"
	"github.com/stategraph/stategraph/internal/source"
)

// propertyOrder is the canonical position of each state property. New
// properties are inserted after the last existing property that sorts at
// or before them; unknown keys sort last.
var propertyOrder = []string{
	"id", "description", "tags", "type", "history", "initial", "context",
	"entry", "exit", "invoke", "on", "onDone", "always", "after", "states",
	"meta",
}

func orderOf(key string) int {
	for i, k := range propertyOrder {
		if k == key {
			return i
		}
	}
	return len(propertyOrder)
}

// insertProperty builds the edit adding "key: value" to an object literal
// at its canonical position. key and value arrive already rendered.
func (s *session) insertProperty(obj source.Expr, key, value string) api.TextEdit {
	props := obj.Properties()
	rank := orderOf(key)
	anchor := -1
	for i, p := range props {
		if p.Kind == source.PropPair && p.Key != "" && orderOf(p.Key) <= rank {
			anchor = i
		}
	}
	if anchor >= 0 {
		at := props[anchor].Span.End
		return api.TextEdit{Start: at, End: at, NewText: ",\n" + s.indentAt(props[anchor].Span.Start) + key + ": " + value}
	}
	if len(props) > 0 {
		at := props[0].Span.Start
		return api.TextEdit{Start: at, End: at, NewText: key + ": " + value + ",\n" + s.indentAt(at)}
	}
	// Empty object literal: rewrite it whole in single-line form.
	span := obj.Span()
	return api.TextEdit{Start: span.Start, End: span.End, NewText: "{ " + key + ": " + value + " }"}
}

// setScalarProperty replaces the value of key on obj, inserting the
// property when missing. A default value means the property is removed
// instead, because extraction treats absence as the default.
func (s *session) setScalarProperty(obj source.Expr, key, rendered string, isDefault bool) []api.TextEdit {
	prop, ok := findProperty(obj, key)
	if isDefault {
		if !ok {
			return nil
		}
		return []api.TextEdit{s.removeSpan(prop.Span.Start, prop.Span.End)}
	}
	if ok {
		span := prop.Value.Span()
		return []api.TextEdit{{Start: span.Start, End: span.End, NewText: rendered}}
	}
	return []api.TextEdit{s.insertProperty(obj, key, rendered)}
}

// removeSpan deletes the source range of a property or array element along
// with one adjacent comma, and the rest of the line when the entry owned
// it, so the surrounding literal stays well formed.
func (s *session) removeSpan(spanStart, spanEnd uint32) api.TextEdit {
	src := s.m.File.Bytes()
	n := uint32(len(src))
	start, end := spanStart, spanEnd

	ls := start
	for ls > 0 && (src[ls-1] == ' ' || src[ls-1] == '\t') {
		ls--
	}
	ownsLine := ls == 0 || src[ls-1] == '\n'
	if ownsLine {
		start = ls
	}

	i := end
	for i < n && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i < n && src[i] == ',' {
		i++
		j := i
		for j < n && (src[j] == ' ' || src[j] == '\t') {
			j++
		}
		if ownsLine && j < n && src[j] == '\n' {
			i = j + 1
		}
		return api.TextEdit{Start: start, End: i}
	}

	// Last entry: take the preceding comma instead.
	k := start
	for k > 0 && isBlank(src[k-1]) {
		k--
	}
	if k > 0 && src[k-1] == ',' {
		return api.TextEdit{Start: k - 1, End: end}
	}
	return api.TextEdit{Start: start, End: end}
}

// indentAt returns the leading whitespace of the line containing offset.
func (s *session) indentAt(offset uint32) string {
	src := s.m.File.Bytes()
	ls := offset
	for ls > 0 && src[ls-1] != '\n' {
		ls--
	}
	end := ls
	for end < uint32(len(src)) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[ls:end])
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
