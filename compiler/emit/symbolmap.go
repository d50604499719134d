package emit

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode encodes symbol maps canonically, so equal modules have
// byte-identical maps.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("emit: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// SymbolMap describes every instance in an emitted module for host tooling.
type SymbolMap struct {
	Funcs   []FuncSymbol   `cbor:"1,keyasint"`
	Types   []TypeSymbol   `cbor:"2,keyasint"`
	Events  []EventSymbol  `cbor:"3,keyasint,omitempty"`
	Exports []ExportSymbol `cbor:"4,keyasint,omitempty"`
	Table   int            `cbor:"5,keyasint"` // function-table size
}

// FuncSymbol is one emitted function instance.
type FuncSymbol struct {
	ID     [32]byte `cbor:"1,keyasint"`
	Name   string   `cbor:"2,keyasint"`
	Source string   `cbor:"3,keyasint"`
	Slot   int      `cbor:"4,keyasint"` // own table slot, -1 when none
}

// TypeSymbol is one type instance and, if it is allocated, its layout.
type TypeSymbol struct {
	ID         [32]byte `cbor:"1,keyasint"`
	Name       string   `cbor:"2,keyasint"`
	Size       int      `cbor:"3,keyasint"`
	VTableBase int      `cbor:"4,keyasint"`
	VTableLen  int      `cbor:"5,keyasint"`
}

// EventSymbol lists the table slots the host calls, in order, when Event is
// delivered to an instance of Type.
type EventSymbol struct {
	Type  string `cbor:"1,keyasint"`
	Event string `cbor:"2,keyasint"`
	Slots []int  `cbor:"3,keyasint"`
}

// ExportSymbol maps an entry name to its function instance.
type ExportSymbol struct {
	Name string `cbor:"1,keyasint"`
	Func string `cbor:"2,keyasint"`
}

// Marshal serializes the map to canonical CBOR.
func (m *SymbolMap) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(m)
}

// UnmarshalSymbolMap deserializes a symbol map.
func UnmarshalSymbolMap(data []byte) (*SymbolMap, error) {
	var m SymbolMap
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("emit: unmarshal symbol map: %w", err)
	}
	return &m, nil
}

func (e *Emitter) symbols(exports []export) *SymbolMap {
	m := &SymbolMap{Table: len(e.gen.Table()), Events: e.events}
	for _, fi := range e.gen.Funcs() {
		slot := -1
		if e.gen.HasTableIndex(fi) {
			slot = e.gen.TableIndex(fi)
		}
		source := fi.Blueprint.Name
		if fi.Owner != nil && fi.Owner.Blueprint != nil {
			source = fi.Owner.Blueprint.Name + "." + source
		}
		m.Funcs = append(m.Funcs, FuncSymbol{ID: fi.ID, Name: fi.Name, Source: source, Slot: slot})
	}
	for _, ti := range e.gen.Types() {
		m.Types = append(m.Types, TypeSymbol{
			ID:         ti.ID,
			Name:       ti.Name,
			Size:       ti.Size,
			VTableBase: ti.VTableBase,
			VTableLen:  len(ti.VTable),
		})
	}
	for _, x := range exports {
		m.Exports = append(m.Exports, ExportSymbol{Name: x.name, Func: x.fn})
	}
	return m
}
