package hash

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of keys.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian uint32
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - IDs: TagNoInstance for the zero ID, else TagInstanceID + 32 bytes
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a key.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(k Key) []byte {
	s := &serializer{buf: make([]byte, 0, 64)}
	s.writeByte(HashVersion)
	s.serializeKey(k)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt(v int) {
	u, err := safecast.Convert[uint32](v)
	if err != nil {
		panic(fmt.Errorf("hash: integer out of range: %w", err))
	}
	s.writeUint32(u)
}

func (s *serializer) writeString(v string) {
	s.writeInt(len(v))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeID(id ID) {
	if id.IsZero() {
		s.writeByte(TagNoInstance)
		return
	}
	s.writeByte(TagInstanceID)
	s.buf = append(s.buf, id[:]...)
}

func (s *serializer) serializeKey(k Key) {
	switch n := k.(type) {
	case *SymbolKey:
		s.writeByte(TagSymbol)
		s.writeString(n.File)
		s.writeInt(n.Offset)
		s.writeString(n.Marker)

	case *InstanceKey:
		s.writeByte(n.Kind)
		s.writeInt(n.Blueprint)
		s.writeID(n.This)
		s.writeInt(len(n.Args))
		for _, arg := range n.Args {
			s.writeID(arg)
		}
	}
}
