// Package hash derives stable content ids for declarations and instances.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// ID is a SHA-256 content hash.
type ID [32]byte

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool {
	return id == ID{}
}

// String returns the full hex encoding.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 bytes in hex, used in emitted names.
func (id ID) Short() string {
	return hex.EncodeToString(id[:8])
}

// Of hashes the serialization of k.
func Of(k Key) ID {
	return sha256.Sum256(Serialize(k))
}

// Symbol computes the id of a declaration written at file:offset.
func Symbol(file string, offset int, marker string) ID {
	return Of(&SymbolKey{File: file, Offset: offset, Marker: marker})
}

// TypeInstance computes the id of a type blueprint instantiated with args.
func TypeInstance(blueprint int, args []ID) ID {
	return Of(&InstanceKey{Kind: TagTypeInstance, Blueprint: blueprint, Args: args})
}

// FuncInstance computes the id of a function blueprint instantiated for
// the owner type instance this (zero for free functions) and args.
func FuncInstance(blueprint int, this ID, args []ID) ID {
	return Of(&InstanceKey{Kind: TagFuncInstance, Blueprint: blueprint, This: this, Args: args})
}

// FunctionType computes the id of a concrete function type from the ids of
// its argument and return types. The return id is zero for void.
func FunctionType(args []ID, ret ID) ID {
	return Of(&InstanceKey{Kind: TagFunctionType, This: ret, Args: args})
}
