package common

// WipeByteArray zeroes the buffer in place. Use it on password buffers as
// soon as they have been consumed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
