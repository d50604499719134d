// Package emit turns checked blueprints into a WebAssembly text module.
//
// Emission starts at the exported entry functions and pulls every other
// function instance through the instance generator as calls, closures,
// vtables and event bindings reference it. Each instance is written exactly
// once, in the order the generator created it, so the same program always
// produces byte-identical text.
package emit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/hash"
	"github.com/chazu/lotus/compiler/instance"
	"github.com/chazu/lotus/compiler/types"
)

var (
	ErrNoEntry     = errors.New("no exported entry function")
	ErrUnsupported = errors.New("unsupported instruction")
)

// DefaultMemoryPages is the initial memory size when Options leaves it 0.
const DefaultMemoryPages = 1

// Options tune the emitted module.
type Options struct {
	MemoryPages int
}

// Module is an emitted module and the symbol map describing it.
type Module struct {
	Text    string
	Symbols *SymbolMap
}

func (m *Module) String() string { return m.Text }

type export struct {
	name, fn string
}

// Emitter writes one module. Use Emit unless the generator must be shared.
type Emitter struct {
	reg  *blueprint.Registry
	gen  *instance.Generator
	opts Options

	body *writer
	data *dataSegment

	sigs     map[string]sig
	sigOrder []string

	allocated []*instance.TypeInstance
	seenAlloc map[hash.ID]bool
	bound     int
	events    []EventSymbol
}

type sig struct {
	params []instance.Repr
	result instance.Repr
}

// New creates an emitter over reg that instantiates through gen.
func New(reg *blueprint.Registry, gen *instance.Generator, opts Options) *Emitter {
	if opts.MemoryPages <= 0 {
		opts.MemoryPages = DefaultMemoryPages
	}
	e := &Emitter{
		reg:       reg,
		gen:       gen,
		opts:      opts,
		body:      &writer{depth: 1},
		data:      newDataSegment(),
		sigs:      make(map[string]sig),
		seenAlloc: make(map[hash.ID]bool),
	}
	e.signature([]instance.Repr{instance.ReprI32}, instance.ReprNone)
	return e
}

// Emit emits the module rooted at the entry functions.
func Emit(reg *blueprint.Registry, entries []int, opts Options) (*Module, error) {
	return New(reg, instance.New(reg), opts).Emit(entries)
}

// Emit instantiates every entry, drains the generator's queue and
// assembles the module.
func (e *Emitter) Emit(entries []int) (*Module, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntry
	}
	var exports []export
	for _, id := range entries {
		f := e.reg.Func(id)
		if f == nil {
			return nil, fmt.Errorf("%w: function %d", ErrNoEntry, id)
		}
		fi, err := e.gen.Func(f, types.Void, nil)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", f.Name, err)
		}
		exports = append(exports, export{name: f.Name, fn: fi.Name})
	}

	for {
		fi, ok := e.gen.Next()
		if !ok {
			more, err := e.bindEvents()
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			continue
		}
		if err := e.function(fi); err != nil {
			return nil, fmt.Errorf("%s: %w", fi.Name, err)
		}
	}
	return e.assemble(exports), nil
}

// allocate records that instances of ti are created somewhere, so its
// vtable and event callbacks must exist.
func (e *Emitter) allocate(ti *instance.TypeInstance) (int, error) {
	base, err := e.gen.VTable(ti)
	if err != nil {
		return 0, err
	}
	if !e.seenAlloc[ti.ID] {
		e.seenAlloc[ti.ID] = true
		e.allocated = append(e.allocated, ti)
	}
	return base, nil
}

// bindEvents gives the event callbacks of newly allocated types their
// function-table slots. It reports whether any type was processed.
func (e *Emitter) bindEvents() (bool, error) {
	if e.bound == len(e.allocated) {
		return false, nil
	}
	for ; e.bound < len(e.allocated); e.bound++ {
		ti := e.allocated[e.bound]
		bindings, err := e.gen.Events(ti)
		if err != nil {
			return false, fmt.Errorf("events of %s: %w", ti.Name, err)
		}
		for _, b := range bindings {
			ev := EventSymbol{Type: ti.Name, Event: b.Event.Name}
			for _, cb := range b.Callbacks {
				ev.Slots = append(ev.Slots, e.gen.TableIndex(cb))
			}
			e.events = append(e.events, ev)
		}
	}
	return true, nil
}

// signature registers a call_indirect type and returns its name.
func (e *Emitter) signature(params []instance.Repr, result instance.Repr) string {
	key := instance.SigKey(params, result)
	if _, ok := e.sigs[key]; !ok {
		e.sigs[key] = sig{params: params, result: result}
		e.sigOrder = append(e.sigOrder, key)
	}
	return "$sig_" + key
}

func (e *Emitter) assemble(exports []export) *Module {
	w := &writer{}
	w.line("(module")
	w.indent()
	for _, imp := range imports {
		w.line("%s", imp)
	}
	for _, key := range e.sigOrder {
		s := e.sigs[key]
		w.line("(type $sig_%s (func%s))", key, signatureText(s.params, s.result))
	}

	pages := max(e.opts.MemoryPages, (e.data.end+0xffff)/0x10000)
	w.line("(memory (export \"memory\") %d)", pages)
	w.line("(global $heap (mut i32) (i32.const %d))", align(e.data.end, 8))
	table := e.gen.Table()
	w.line("(table $table %d funcref)", len(table))
	w.line("(export \"table\" (table $table))")

	writeRuntime(w)
	w.b.WriteString(e.body.String())

	if len(table) > 0 {
		names := make([]string, len(table))
		for i, fi := range table {
			names[i] = fi.Name
		}
		w.line("(elem (i32.const 0) %s)", strings.Join(names, " "))
	}
	e.data.write(w)
	for _, x := range exports {
		w.line("(export %q (func %s))", x.name, x.fn)
	}
	w.dedent()
	w.line(")")

	return &Module{Text: w.String(), Symbols: e.symbols(exports)}
}

// signatureText renders the anonymous " (param ...) (result ...)" of a type
// declaration.
func signatureText(params []instance.Repr, result instance.Repr) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteString(" (param ")
		b.WriteString(p.String())
		b.WriteByte(')')
	}
	if result != instance.ReprNone {
		b.WriteString(" (result ")
		b.WriteString(result.String())
		b.WriteByte(')')
	}
	return b.String()
}
