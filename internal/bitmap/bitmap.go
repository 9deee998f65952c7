// Package bitmap holds occupancy bits, one per managed byte, LSB first.
//
// Nothing here checks bounds: every index comes from the heap, which
// derives it from a validated segment or from its own capacity.
package bitmap

import "math/bits"

const BitsInByte = 8

const all = ^byte(0)

type Bitmap []byte

// Size is the number of bitmap bytes needed to track n bytes.
func Size(n int) int {
	return (n + BitsInByte - 1) / BitsInByte
}

func (b Bitmap) Has(i uint16) bool {
	return b[i>>3]&(1<<(i&7)) != 0
}

func (b Bitmap) Set(i uint16, v bool) {
	if v {
		b[i>>3] |= 1 << (i & 7)
	} else {
		b[i>>3] &^= 1 << (i & 7)
	}
}

func fillByte(v bool) byte {
	if v {
		return all
	}
	return 0
}

// IsSolid reports whether all n bits starting at start equal v.
func (b Bitmap) IsSolid(start, n uint16, v bool) bool {
	i, end := int(start), int(start)+int(n)
	for ; i < end && i&7 != 0; i++ {
		if b.Has(uint16(i)) != v {
			return false
		}
	}
	fill := fillByte(v)
	for ; i+BitsInByte <= end; i += BitsInByte {
		if b[i>>3] != fill {
			return false
		}
	}
	for ; i < end; i++ {
		if b.Has(uint16(i)) != v {
			return false
		}
	}
	return true
}

func (b Bitmap) SetRange(start, n uint16, v bool) {
	i, end := int(start), int(start)+int(n)
	for ; i < end && i&7 != 0; i++ {
		b.Set(uint16(i), v)
	}
	fill := fillByte(v)
	for ; i+BitsInByte <= end; i += BitsInByte {
		b[i>>3] = fill
	}
	for ; i < end; i++ {
		b.Set(uint16(i), v)
	}
}

// NextSet returns the first set index in [from, limit), or limit.
func (b Bitmap) NextSet(from, limit uint16) uint16 {
	return b.next(from, limit, 0)
}

// NextClear returns the first clear index in [from, limit), or limit.
func (b Bitmap) NextClear(from, limit uint16) uint16 {
	return b.next(from, limit, all)
}

// next skips bytes equal to skip, and returns first bit differing from it.
func (b Bitmap) next(from, limit uint16, skip byte) uint16 {
	i, end := int(from), int(limit)
	for i < end {
		if i&7 == 0 {
			c := b[i>>3] ^ skip
			if c == 0 {
				i += BitsInByte
				continue
			}
			i += bits.TrailingZeros8(c)
			break
		}
		if (b[i>>3]^skip)&(1<<(i&7)) != 0 {
			break
		}
		i++
	}
	if i > end {
		i = end
	}
	return uint16(i)
}

// Count returns number of set bits in [0, limit).
func (b Bitmap) Count(limit uint16) int {
	n := int(limit)
	cnt := 0
	for _, c := range b[:n/BitsInByte] {
		cnt += bits.OnesCount8(c)
	}
	if rest := n % BitsInByte; rest != 0 {
		cnt += bits.OnesCount8(b[n/BitsInByte] & (all >> (BitsInByte - rest)))
	}
	return cnt
}

func (b Bitmap) Reset() {
	for i := range b {
		b[i] = 0
	}
}
