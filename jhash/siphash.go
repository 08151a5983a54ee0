package jhash

import "encoding/binary"

// sipHash24 implements SipHash-2-4 over data, keyed by a 128-bit key supplied
// as two 64-bit words. This is the exact variant systemd journal files use
// when the keyed-hash incompatible flag is set, with the file id as key.
func sipHash24(k0, k1 uint64, data []byte) uint64 {
	v0 := k0 ^ 0x736f6d6570736575
	v1 := k1 ^ 0x646f72616e646f6d
	v2 := k0 ^ 0x6c7967656e657261
	v3 := k1 ^ 0x7465646279746573

	round := func() {
		v0 += v1
		v1 = rotl(v1, 13)
		v1 ^= v0
		v0 = rotl(v0, 32)
		v2 += v3
		v3 = rotl(v3, 16)
		v3 ^= v2
		v0 += v3
		v3 = rotl(v3, 21)
		v3 ^= v0
		v2 += v1
		v1 = rotl(v1, 17)
		v1 ^= v2
		v2 = rotl(v2, 32)
	}

	n := len(data)
	end := n - (n % 8)
	b := uint64(n) << 56

	for i := 0; i < end; i += 8 {
		m := binary.LittleEndian.Uint64(data[i : i+8])
		v3 ^= m
		round()
		round()
		v0 ^= m
	}

	var tail [8]byte
	copy(tail[:], data[end:])
	b |= binary.LittleEndian.Uint64(tail[:])

	v3 ^= b
	round()
	round()
	v0 ^= b

	v2 ^= 0xff
	round()
	round()
	round()
	round()

	return v0 ^ v1 ^ v2 ^ v3
}

func rotl(x uint64, b uint) uint64 {
	return (x << b) | (x >> (64 - b))
}

// SipHash24Keyed computes SipHash-2-4 of data using a 128-bit key given as
// two little-endian 64-bit words, as stored in a journal file's file id.
func SipHash24Keyed(keyLow, keyHigh uint64, data []byte) uint64 {
	return sipHash24(keyLow, keyHigh, data)
}
