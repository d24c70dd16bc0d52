package velocity

import "strings"

const maxEncodedValueBytes = 64

// EncodeKey builds the Redis key for a (dimension, value) velocity
// counter: vel:global:{dimension}:{encoded_value}, where encoded_value
// replaces any byte outside [a-zA-Z0-9._-] with '_' and is truncated to
// 64 bytes.
func EncodeKey(dimension, value string) string {
	var b strings.Builder
	b.WriteString("vel:global:")
	b.WriteString(dimension)
	b.WriteByte(':')

	n := len(value)
	if n > maxEncodedValueBytes {
		n = maxEncodedValueBytes
	}
	for i := 0; i < n; i++ {
		c := value[i]
		if isAllowed(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isAllowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' || c == '_' || c == '-':
		return true
	default:
		return false
	}
}
