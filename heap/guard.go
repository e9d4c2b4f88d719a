package heap

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/dchest/siphash"
	"github.com/minio/highwayhash"

	"github.com/joshuapare/guardheap/internal/format"
)

// Guard stamps and verifies the canaries of a block.
//
// Stamp runs once per allocation after the header size has been written. The
// allocator never checks what Stamp wrote; CheckHeader and CheckFooter are
// consulted whenever the block is released or inspected. Implementations
// must not allocate through the Allocator that invokes them.
type Guard interface {
	Stamp(h *Header, f *Footer)
	CheckHeader(h *Header) bool
	CheckFooter(h *Header, f *Footer) bool
}

// DefaultGuard stamps format.Sentinel into both canaries.
var DefaultGuard Guard = SentinelGuard{Value: format.Sentinel}

// SentinelGuard writes and expects a fixed canary value.
type SentinelGuard struct {
	Value uint32
}

func (g SentinelGuard) Stamp(h *Header, f *Footer) {
	h.Canary = g.Value
	f.Canary = g.Value
}

func (g SentinelGuard) CheckHeader(h *Header) bool { return h.Canary == g.Value }

func (g SentinelGuard) CheckFooter(_ *Header, f *Footer) bool { return f.Canary == g.Value }

// GuardFunc adapts a stamping callback to the Guard interface. Verification
// always expects format.Sentinel, so a callback that writes anything else
// produces blocks that fail on release.
type GuardFunc func(h *Header, f *Footer)

func (fn GuardFunc) Stamp(h *Header, f *Footer) { fn(h, f) }

func (GuardFunc) CheckHeader(h *Header) bool { return h.Canary == format.Sentinel }

func (GuardFunc) CheckFooter(_ *Header, f *Footer) bool { return f.Canary == format.Sentinel }

// Key sizes accepted by the keyed guard constructors.
const (
	KeyedGuardKeySize = 32 // NewKeyedGuard, HighwayHash-64
	SipGuardKeySize   = 16 // NewSipGuard, SipHash-2-4
)

// KeyedGuard derives canaries from the block address and size with a keyed
// hash. The low half of the digest goes to the header, the high half to the
// footer. Headers copied or shifted from another block, or whose size was
// overwritten, fail verification.
type KeyedGuard struct {
	hash func(msg []byte) uint64
}

// NewKeyedGuard returns a KeyedGuard hashing with HighwayHash-64 under a copy
// of key.
func NewKeyedGuard(key []byte) (*KeyedGuard, error) {
	if len(key) != KeyedGuardKeySize {
		return nil, fmt.Errorf("heap: keyed guard needs a %d-byte key, got %d", KeyedGuardKeySize, len(key))
	}
	k := bytes.Clone(key)
	return &KeyedGuard{hash: func(msg []byte) uint64 {
		return highwayhash.Sum64(msg, k)
	}}, nil
}

// NewSipGuard returns a KeyedGuard hashing with SipHash-2-4. It is cheaper
// than HighwayHash for the 16-byte messages a guard hashes.
func NewSipGuard(key []byte) (*KeyedGuard, error) {
	if len(key) != SipGuardKeySize {
		return nil, fmt.Errorf("heap: sip guard needs a %d-byte key, got %d", SipGuardKeySize, len(key))
	}
	k0 := binary.LittleEndian.Uint64(key[0:8])
	k1 := binary.LittleEndian.Uint64(key[8:16])
	return &KeyedGuard{hash: func(msg []byte) uint64 {
		return siphash.Hash(k0, k1, msg)
	}}, nil
}

func (g *KeyedGuard) sum(h *Header) uint64 {
	var msg [16]byte
	binary.LittleEndian.PutUint64(msg[0:8], uint64(uintptr(unsafe.Pointer(h))))
	binary.LittleEndian.PutUint64(msg[8:16], h.size)
	return g.hash(msg[:])
}

func (g *KeyedGuard) Stamp(h *Header, f *Footer) {
	s := g.sum(h)
	h.Canary = uint32(s)
	f.Canary = uint32(s >> 32)
}

func (g *KeyedGuard) CheckHeader(h *Header) bool { return h.Canary == uint32(g.sum(h)) }

func (g *KeyedGuard) CheckFooter(h *Header, f *Footer) bool {
	return f.Canary == uint32(g.sum(h)>>32)
}
