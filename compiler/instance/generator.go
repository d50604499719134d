package instance

import (
	"fmt"

	"github.com/chazu/lotus/compiler/blueprint"
	"github.com/chazu/lotus/compiler/hash"
	"github.com/chazu/lotus/compiler/ir"
	"github.com/chazu/lotus/compiler/types"
)

// Generator memoizes instances and hands out function-table slots. It
// belongs to one compilation and is not safe for concurrent use.
type Generator struct {
	reg *blueprint.Registry

	types map[hash.ID]*TypeInstance
	funcs map[hash.ID]*FuncInstance

	typeOrder []*TypeInstance
	funcOrder []*FuncInstance
	queue     []*FuncInstance

	table []*FuncInstance
}

// New creates a generator over reg.
func New(reg *blueprint.Registry) *Generator {
	return &Generator{
		reg:   reg,
		types: make(map[hash.ID]*TypeInstance),
		funcs: make(map[hash.ID]*FuncInstance),
	}
}

// Types returns every type instance in creation order.
func (g *Generator) Types() []*TypeInstance { return g.typeOrder }

// Funcs returns every function instance in creation order.
func (g *Generator) Funcs() []*FuncInstance { return g.funcOrder }

// Table returns the function table, one entry per slot.
func (g *Generator) Table() []*FuncInstance { return g.table }

// Next pops the oldest function instance that has not been handed out yet.
func (g *Generator) Next() (*FuncInstance, bool) {
	if len(g.queue) == 0 {
		return nil, false
	}
	f := g.queue[0]
	g.queue = g.queue[1:]
	return f, true
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Type returns the instance of the concrete type t, creating it on first
// use. The instance is cached before its fields are laid out, so types that
// refer to themselves terminate.
func (g *Generator) Type(t types.Type) (*TypeInstance, error) {
	switch t.Kind {
	case types.KindActual:
	case types.KindFunction:
		return g.functionType(t)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotConcrete, g.reg.Format(t))
	}
	if depth(t) > MaxDepth {
		return nil, fmt.Errorf("%w: %s", ErrTooDeep, g.reg.Format(t))
	}
	bp := g.reg.Type(t.ID)
	if bp == nil {
		return nil, fmt.Errorf("%w: unknown type blueprint %d", ErrNotConcrete, t.ID)
	}

	args := make([]*TypeInstance, len(t.Args))
	ids := make([]hash.ID, len(t.Args))
	for i, a := range t.Args {
		ai, err := g.Type(a)
		if err != nil {
			return nil, err
		}
		args[i], ids[i] = ai, ai.ID
	}
	id := hash.TypeInstance(bp.ID, ids)
	if ti, ok := g.types[id]; ok {
		return ti, nil
	}

	ti := &TypeInstance{
		ID:         id,
		Name:       name(g.reg.Format(t), id),
		Type:       t,
		Blueprint:  bp,
		Args:       args,
		Repr:       g.repr(bp),
		VTableBase: -1,
	}
	g.types[id] = ti
	g.typeOrder = append(g.typeOrder, ti)
	if err := g.layout(ti); err != nil {
		return nil, err
	}
	return ti, nil
}

func (g *Generator) repr(bp *blueprint.TypeBlueprint) Repr {
	switch {
	case bp.Builtin && bp.Storage == blueprint.StorageF32:
		return ReprF32
	case g.reg.Erased(bp.ID):
		return ReprNone
	}
	return ReprI32
}

func (g *Generator) layout(ti *TypeInstance) error {
	bp := ti.Blueprint
	switch {
	case bp.ID == g.reg.Builtin.Array:
		ti.Size = ArrayDataOffset
		return nil
	case bp.Builtin, bp.Category == blueprint.CategoryEnum, ti.Erased():
		return nil
	}

	ti.Fields = make([]Field, len(bp.Fields))
	offset := HeaderSize
	for i, f := range bp.Fields {
		ft, err := g.Type(f.Type.ReplaceParameters(g.reg, ti.Type, nil))
		if err != nil {
			return fmt.Errorf("field %s.%s: %w", bp.Name, f.Name, err)
		}
		fl := Field{Name: f.Name, Type: ft, Repr: ft.Repr, Offset: -1}
		if !ft.Erased() {
			fl.Offset = offset
			offset += SlotSize
		}
		ti.Fields[i] = fl
	}
	ti.Size = offset
	return nil
}

func (g *Generator) functionType(t types.Type) (*TypeInstance, error) {
	if depth(t) > MaxDepth {
		return nil, fmt.Errorf("%w: %s", ErrTooDeep, g.reg.Format(t))
	}
	ids := make([]hash.ID, len(t.Args))
	params := make([]Repr, 0, len(t.Args))
	for i, a := range t.Args {
		ai, err := g.Type(a)
		if err != nil {
			return nil, err
		}
		ids[i] = ai.ID
		if !ai.Erased() {
			params = append(params, ai.Repr)
		}
	}
	var retID hash.ID
	result := ReprNone
	if ret := t.Return(); !ret.IsVoid() {
		ri, err := g.Type(ret)
		if err != nil {
			return nil, err
		}
		retID, result = ri.ID, ri.Repr
	}
	id := hash.FunctionType(ids, retID)
	if ti, ok := g.types[id]; ok {
		return ti, nil
	}
	ti := &TypeInstance{
		ID:         id,
		Name:       name("fn", id),
		Type:       t,
		Repr:       ReprI32,
		VTableBase: -1,
		Params:     params,
		Result:     result,
	}
	g.types[id] = ti
	g.typeOrder = append(g.typeOrder, ti)
	return ti, nil
}

// ReprOf returns the representation of a concrete type; void has none.
func (g *Generator) ReprOf(t types.Type) (Repr, error) {
	if t.IsVoid() {
		return ReprNone, nil
	}
	ti, err := g.Type(t)
	if err != nil {
		return ReprNone, err
	}
	return ti.Repr, nil
}

// VTable reserves the dispatch block of ti in the function table on first
// use and returns its base slot, or -1 when the type has no dynamic
// methods. Only types that are actually allocated need one.
func (g *Generator) VTable(ti *TypeInstance) (int, error) {
	if ti.vtable {
		return ti.VTableBase, nil
	}
	ti.vtable = true
	bp := ti.Blueprint
	if bp == nil || bp.DispatchCount == 0 {
		return -1, nil
	}

	slots := g.reg.DispatchTable(bp.ID)
	ti.VTable = make([]*FuncInstance, len(slots))
	for i, fid := range slots {
		f := g.reg.Func(fid)
		if f == nil || f.Abstract {
			return -1, fmt.Errorf("%s slot %d: %w", ti.Name, i, ErrAbstract)
		}
		view, _ := types.AsAncestor(g.reg, ti.Type, f.Owner)
		fi, err := g.Func(f, view, nil)
		if err != nil {
			return -1, err
		}
		ti.VTable[i] = fi
	}
	ti.VTableBase = len(g.table)
	g.table = append(g.table, ti.VTable...)
	return ti.VTableBase, nil
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Func returns the instance of f for the concrete owner view this (Void
// for free functions) and concrete generic arguments args. New instances
// are queued for Next.
func (g *Generator) Func(f *blueprint.FunctionBlueprint, this types.Type, args []types.Type) (*FuncInstance, error) {
	if f.Abstract {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrAbstract)
	}
	var thisID hash.ID
	var owner *TypeInstance
	if !this.IsVoid() {
		ti, err := g.Type(this)
		if err != nil {
			return nil, err
		}
		thisID, owner = ti.ID, ti
	}
	ids := make([]hash.ID, len(args))
	for i, a := range args {
		ai, err := g.Type(a)
		if err != nil {
			return nil, err
		}
		ids[i] = ai.ID
	}
	id := hash.FuncInstance(f.ID, thisID, ids)
	if fi, ok := g.funcs[id]; ok {
		return fi, nil
	}

	base := f.Name
	if o := g.reg.Type(f.Owner); o != nil {
		base = o.Name + "." + f.Name
	}
	fi := &FuncInstance{
		ID:         id,
		Name:       name(base, id),
		Blueprint:  f,
		This:       this,
		Owner:      owner,
		Args:       args,
		tableIndex: -1,
	}

	next := 0
	if f.Env {
		fi.Params = append(fi.Params, Param{Index: 0, Repr: ReprI32})
		next = 1
	}
	if f.IsMethod() {
		if owner != nil && !owner.Erased() {
			fi.Params = append(fi.Params, Param{Index: next, Repr: owner.Repr})
		}
		next++
	}
	ctx := fi.Context()
	for i, p := range f.Params {
		pt, err := g.Resolve(ctx, p.Type)
		if err != nil {
			return nil, fmt.Errorf("%s parameter %s: %w", f.Name, p.Name, err)
		}
		r, err := g.ReprOf(pt)
		if err != nil {
			return nil, err
		}
		if r != ReprNone {
			fi.Params = append(fi.Params, Param{Index: next + i, Repr: r})
		}
	}
	ret, err := g.Resolve(ctx, f.Return)
	if err != nil {
		return nil, fmt.Errorf("%s result: %w", f.Name, err)
	}
	if fi.Result, err = g.ReprOf(ret); err != nil {
		return nil, err
	}

	g.funcs[id] = fi
	g.funcOrder = append(g.funcOrder, fi)
	g.queue = append(g.queue, fi)
	return fi, nil
}

// TableIndex returns a function-table slot holding fi, assigning one on
// first request. Instances already placed in a vtable block still get
// their own slot, so the index is independent of any type's layout.
func (g *Generator) TableIndex(fi *FuncInstance) int {
	if fi.tableIndex < 0 {
		fi.tableIndex = len(g.table)
		g.table = append(g.table, fi)
	}
	return fi.tableIndex
}

// HasTableIndex reports whether fi was given its own slot.
func (g *Generator) HasTableIndex(fi *FuncInstance) bool {
	return fi.tableIndex >= 0
}

// ---------------------------------------------------------------------------
// Call resolution
// ---------------------------------------------------------------------------

// Target is the resolved callee of an ir.Call.
type Target struct {
	// Func is the implementation found statically. For a virtual target it
	// is the implementation on the resolved type, nil when that is
	// abstract.
	Func *FuncInstance

	// Virtual is set when the call must go through the receiver's vtable
	// at Index: an interface requirement implemented by a dynamic method.
	// Sig is the function type of the slot, receiver first.
	Virtual bool
	Index   int
	Sig     *TypeInstance
}

// Callee resolves c inside an instance with context ctx. Calls of interface
// requirements are looked up by name on the type the bound parameter
// resolved to.
func (g *Generator) Callee(ctx Context, c *ir.Call) (Target, error) {
	f := g.reg.Func(c.Func)
	if f == nil {
		return Target{}, fmt.Errorf("%w: function %d", ErrNoMethod, c.Func)
	}
	this, err := g.Resolve(ctx, c.This)
	if err != nil {
		return Target{}, fmt.Errorf("call of %s: %w", f.Name, err)
	}
	args, err := g.ResolveAll(ctx, c.Args)
	if err != nil {
		return Target{}, fmt.Errorf("call of %s: %w", f.Name, err)
	}

	if f.Interface != blueprint.None {
		if this.Kind != types.KindActual {
			return Target{}, fmt.Errorf("%w: %s for %s", ErrNoMethod, f.Name, g.reg.Format(this))
		}
		impl, ok := g.reg.FindMethod(this.ID, f.Name, f.Static)
		if !ok {
			return Target{}, fmt.Errorf("%w: %s.%s", ErrNoMethod, g.reg.Format(this), f.Name)
		}
		f = impl
		this, _ = types.AsAncestor(g.reg, this, impl.Owner)
		if impl.Dynamic && c.Receiver != nil {
			return g.virtual(impl, this, args)
		}
	}
	fi, err := g.Func(f, this, args)
	if err != nil {
		return Target{}, err
	}
	return Target{Func: fi}, nil
}

func (g *Generator) virtual(impl *blueprint.FunctionBlueprint, this types.Type, args []types.Type) (Target, error) {
	ctx := Context{This: this, Args: args}
	params := []types.Type{this}
	for _, p := range impl.Params {
		pt, err := g.Resolve(ctx, p.Type)
		if err != nil {
			return Target{}, err
		}
		params = append(params, pt)
	}
	ret, err := g.Resolve(ctx, impl.Return)
	if err != nil {
		return Target{}, err
	}
	sig, err := g.Type(types.Function(params, ret))
	if err != nil {
		return Target{}, err
	}
	t := Target{Virtual: true, Index: impl.DispatchIndex, Sig: sig}
	if !impl.Abstract {
		if t.Func, err = g.Func(impl, this, args); err != nil {
			return Target{}, err
		}
	}
	return t, nil
}

// RetainFunc returns the retain method instance for values of the concrete
// type t, or nil when t has no retain semantics. Function values are
// retained through their record and return nil as well; see IsClosure.
func (g *Generator) RetainFunc(t types.Type) (*FuncInstance, error) {
	if t.Kind != types.KindActual {
		return nil, nil
	}
	bp := g.reg.Type(t.ID)
	if bp == nil || bp.Retain == blueprint.None {
		return nil, nil
	}
	f := g.reg.Funcs[bp.Retain]
	view, _ := types.AsAncestor(g.reg, t, f.Owner)
	return g.Func(f, view, nil)
}

// EventBinding lists, for one event type, the callbacks an instance runs
// in invocation order.
type EventBinding struct {
	Event     *TypeInstance
	Callbacks []*FuncInstance
}

// Events instantiates the event callbacks of ti and of its ancestors.
func (g *Generator) Events(ti *TypeInstance) ([]EventBinding, error) {
	bp := ti.Blueprint
	if bp == nil {
		return nil, nil
	}
	var events []types.Type
	for _, tid := range g.reg.Chain(bp.ID) {
		for _, cb := range g.reg.Types[tid].Events {
			view, _ := types.AsAncestor(g.reg, ti.Type, tid)
			ev := cb.Event.ReplaceParameters(g.reg, view, nil)
			seen := false
			for _, e := range events {
				seen = seen || e.Equal(ev)
			}
			if !seen {
				events = append(events, ev)
			}
		}
	}

	var out []EventBinding
	for _, ev := range events {
		ei, err := g.Type(ev)
		if err != nil {
			return nil, err
		}
		b := EventBinding{Event: ei}
		for _, cb := range g.reg.EventCallbacks(bp.ID, ev) {
			f := g.reg.Funcs[cb.Func]
			view, _ := types.AsAncestor(g.reg, ti.Type, f.Owner)
			fi, err := g.Func(f, view, nil)
			if err != nil {
				return nil, err
			}
			b.Callbacks = append(b.Callbacks, fi)
		}
		out = append(out, b)
	}
	return out, nil
}

// Clear drops every instance.
func (g *Generator) Clear() {
	clear(g.types)
	clear(g.funcs)
	g.typeOrder, g.funcOrder, g.queue, g.table = nil, nil, nil, nil
}
