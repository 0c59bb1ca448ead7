package doc

import "sort"

// Style 是一个样式名，例如 "bold"、"italic"。
type Style string

// StyleSet 是样式集合。所有运算都返回新集合，不修改接收者。
type StyleSet map[Style]struct{}

func NewStyleSet(styles ...Style) StyleSet {
	s := make(StyleSet, len(styles))
	for _, st := range styles {
		s[st] = struct{}{}
	}
	return s
}

func (s StyleSet) Has(st Style) bool {
	_, ok := s[st]
	return ok
}

func (s StyleSet) Clone() StyleSet {
	out := make(StyleSet, len(s))
	for st := range s {
		out[st] = struct{}{}
	}
	return out
}

// Union 返回 s ∪ o。
func (s StyleSet) Union(o StyleSet) StyleSet {
	out := s.Clone()
	for st := range o {
		out[st] = struct{}{}
	}
	return out
}

// Minus 返回 s \ o。
func (s StyleSet) Minus(o StyleSet) StyleSet {
	out := make(StyleSet, len(s))
	for st := range s {
		if !o.Has(st) {
			out[st] = struct{}{}
		}
	}
	return out
}

// Equal 把 nil 和空集合视为相等。
func (s StyleSet) Equal(o StyleSet) bool {
	if len(s) != len(o) {
		return false
	}
	for st := range s {
		if !o.Has(st) {
			return false
		}
	}
	return true
}

// Sorted 按字典序返回样式，用于稳定的序列化与日志输出。
func (s StyleSet) Sorted() []Style {
	out := make([]Style, 0, len(s))
	for st := range s {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Attrs 是 Group 的属性表。
type Attrs map[string]string

func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a Attrs) Equal(o Attrs) bool {
	if len(a) != len(o) {
		return false
	}
	for k, v := range a {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
