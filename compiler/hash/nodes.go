package hash

// Key is implemented by every value that can be content-addressed.
type Key interface {
	key() // marker method
}

// SymbolKey identifies a declaration by where it was written. Marker
// disambiguates declarations synthesized at the same location (closures,
// autogenerated accessors).
type SymbolKey struct {
	File   string
	Offset int
	Marker string
}

// InstanceKey identifies a concrete realization of a blueprint. Kind is
// TagTypeInstance, TagFuncInstance or TagFunctionType. This is the zero ID
// for free functions and type instances, and holds the return type of a
// function type.
type InstanceKey struct {
	Kind      byte
	Blueprint int
	This      ID
	Args      []ID
}

func (*SymbolKey) key()   {}
func (*InstanceKey) key() {}
