package jhash

// jenkinsLookup3 implements Bob Jenkins' lookup3 hashlittle2, the legacy
// unkeyed hash systemd journal files use when the keyed-hash incompatible
// flag is absent. It produces two 32-bit words which this package
// concatenates low-word first into a single 64-bit value, matching
// systemd's on-disk convention.
func jenkinsLookup3(data []byte, initval uint32) (pc, pb uint32) {
	var a, b, c uint32
	a = 0xdeadbeef + uint32(len(data)) + initval
	b, c = a, a
	c += initval

	i := 0
	n := len(data)

	for n > 12 {
		a += le32(data[i:])
		b += le32(data[i+4:])
		c += le32(data[i+8:])
		a, b, c = mix(a, b, c)
		i += 12
		n -= 12
	}

	var tail [12]byte
	copy(tail[:], data[i:i+n])

	switch n {
	case 12:
		c += uint32(tail[11]) << 24
		c += uint32(tail[10]) << 16
		c += uint32(tail[9]) << 8
		c += uint32(tail[8])
		b += uint32(tail[7]) << 24
		b += uint32(tail[6]) << 16
		b += uint32(tail[5]) << 8
		b += uint32(tail[4])
		a += uint32(tail[3]) << 24
		a += uint32(tail[2]) << 16
		a += uint32(tail[1]) << 8
		a += uint32(tail[0])
	case 11:
		c += uint32(tail[10]) << 16
		c += uint32(tail[9]) << 8
		c += uint32(tail[8])
		fallthrough
	case 8:
		b += uint32(tail[7]) << 24
		fallthrough
	case 7:
		b += uint32(tail[6]) << 16
		fallthrough
	case 6:
		b += uint32(tail[5]) << 8
		fallthrough
	case 5:
		b += uint32(tail[4])
		fallthrough
	case 4:
		a += uint32(tail[3]) << 24
		fallthrough
	case 3:
		a += uint32(tail[2]) << 16
		fallthrough
	case 2:
		a += uint32(tail[1]) << 8
		fallthrough
	case 1:
		a += uint32(tail[0])
	case 10:
		c += uint32(tail[9]) << 8
		c += uint32(tail[8])
		b += uint32(tail[7]) << 24
		b += uint32(tail[6]) << 16
		b += uint32(tail[5]) << 8
		b += uint32(tail[4])
		a += uint32(tail[3]) << 24
		a += uint32(tail[2]) << 16
		a += uint32(tail[1]) << 8
		a += uint32(tail[0])
	case 9:
		c += uint32(tail[8])
		b += uint32(tail[7]) << 24
		b += uint32(tail[6]) << 16
		b += uint32(tail[5]) << 8
		b += uint32(tail[4])
		a += uint32(tail[3]) << 24
		a += uint32(tail[2]) << 16
		a += uint32(tail[1]) << 8
		a += uint32(tail[0])
	case 0:
		return c, b
	}

	a, b, c = finalMix(a, b, c)
	return c, b
}

func le32(b []byte) uint32 {
	var v uint32
	v |= uint32(b[0])
	v |= uint32(b[1]) << 8
	v |= uint32(b[2]) << 16
	v |= uint32(b[3]) << 24
	return v
}

func rot32(x uint32, k uint) uint32 {
	return (x << k) | (x >> (32 - k))
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= rot32(c, 4)
	c += b
	b -= a
	b ^= rot32(a, 6)
	a += c
	c -= b
	c ^= rot32(b, 8)
	b += a
	a -= c
	a ^= rot32(c, 16)
	c += b
	b -= a
	b ^= rot32(a, 19)
	a += c
	c -= b
	c ^= rot32(b, 4)
	b += a
	return a, b, c
}

func finalMix(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= rot32(b, 14)
	a ^= c
	a -= rot32(c, 11)
	b ^= a
	b -= rot32(a, 25)
	c ^= b
	c -= rot32(b, 16)
	a ^= c
	a -= rot32(c, 4)
	b ^= a
	b -= rot32(a, 14)
	c ^= b
	c -= rot32(b, 24)
	return a, b, c
}

// JenkinsHash64Unkeyed computes the legacy unkeyed journal hash: lookup3's
// two 32-bit outputs concatenated low-word first.
func JenkinsHash64Unkeyed(data []byte) uint64 {
	pc, pb := jenkinsLookup3(data, 0)
	return uint64(pc) | (uint64(pb) << 32)
}
