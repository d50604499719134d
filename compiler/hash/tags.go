package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for key serialization.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones changes
// every symbol and instance id, which in turn renames every emitted function.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
const HashVersion byte = 1

// Key tags. Each tag uniquely identifies a key kind in the serialized stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Declarations
	TagSymbol byte = 0x01

	// Instances
	TagTypeInstance byte = 0x10
	TagFuncInstance byte = 0x11
	TagFunctionType byte = 0x12

	// Instance arguments
	TagNoInstance byte = 0x20
	TagInstanceID byte = 0x21
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagSymbol,
	TagTypeInstance, TagFuncInstance, TagFunctionType,
	TagNoInstance, TagInstanceID,
}
