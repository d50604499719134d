package blueprint

import (
	"fmt"
	"sort"

	"github.com/chazu/lotus/compiler/diag"
	"github.com/chazu/lotus/compiler/types"
)

// Qualifier says when a callback runs relative to the others of an event.
type Qualifier int

const (
	Before Qualifier = iota
	Hook
	After
)

func (q Qualifier) String() string {
	switch q {
	case Before:
		return "before"
	case After:
		return "after"
	}
	return "hook"
}

// ParseQualifier maps the attribute spelling to a Qualifier.
func ParseQualifier(s string) (Qualifier, error) {
	switch s {
	case "before":
		return Before, nil
	case "hook", "":
		return Hook, nil
	case "after":
		return After, nil
	}
	return Hook, fmt.Errorf("unknown event qualifier %q", s)
}

// Callback is one event registration.
type Callback struct {
	Owner     int // declaring type
	Event     types.Type
	Qualifier Qualifier
	Priority  int
	Func      int
	seq       int // registration order
}

// RegisterEvent records that method fn of type id handles event. The
// callback must be a non-static method of id.
func (r *Registry) RegisterEvent(id int, event types.Type, q Qualifier, priority, fn int, pos diag.Pos) bool {
	f := r.Funcs[fn]
	if f.Owner != id || f.Static {
		r.diags.Add(diag.Generic, pos, "event callback `%s` must be an instance method of `%s`", f.Name, r.Types[id].Name)
		return false
	}
	if event.Kind != types.KindActual {
		r.diags.Add(diag.Generic, pos, "event type must be a concrete type, got %s", r.Format(event))
		return false
	}
	t := r.Types[id]
	t.Events = append(t.Events, &Callback{
		Owner:     id,
		Event:     event,
		Qualifier: q,
		Priority:  priority,
		Func:      fn,
		seq:       r.eventSeq,
	})
	r.eventSeq++
	return true
}

// EventCallbacks gathers the callbacks of type id and every ancestor that
// accept event, in invocation order: by qualifier (before, hook, after),
// then higher priority first, then root ancestors first, then source
// position. The order does not depend on the order files were processed.
func (r *Registry) EventCallbacks(id int, event types.Type) []*Callback {
	t := r.Type(id)
	if t == nil {
		return nil
	}
	depth := make(map[int]int, len(t.Ancestors)+1)
	chain := append(append([]int{}, t.Ancestors...), id)
	var out []*Callback
	for d, tid := range chain {
		depth[tid] = d
		for _, cb := range r.Types[tid].Events {
			if event.IsAssignableTo(r, cb.Event) {
				out = append(out, cb)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Qualifier != b.Qualifier {
			return a.Qualifier < b.Qualifier
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if depth[a.Owner] != depth[b.Owner] {
			return depth[a.Owner] < depth[b.Owner]
		}
		pa, pb := r.Funcs[a.Func].Loc.Pos, r.Funcs[b.Func].Loc.Pos
		if pa.File != pb.File {
			return pa.File < pb.File
		}
		if pa.Offset != pb.Offset {
			return pa.Offset < pb.Offset
		}
		return a.seq < b.seq
	})
	return out
}
