package voice

import "encoding/binary"

// AppendPCM16 decodes little-endian 16-bit PCM bytes and appends the samples
// to dst. A trailing odd byte is ignored.
func AppendPCM16(dst []int16, data []byte) []int16 {
	n := len(data) / 2
	if free := cap(dst) - len(dst); free < n {
		grown := make([]int16, len(dst), len(dst)+n)
		copy(grown, dst)
		dst = grown
	}
	for i := 0; i < n; i++ {
		dst = append(dst, int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return dst
}

// EncodePCM16 encodes samples as little-endian 16-bit PCM.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
