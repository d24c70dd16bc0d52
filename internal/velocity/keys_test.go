package velocity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeKeyReplacesDisallowedBytes(t *testing.T) {
	key := EncodeKey("card_hash", "abc/123:xyz+!")
	require.Equal(t, "vel:global:card_hash:abc_123_xyz__", key)
}

func TestEncodeKeyTruncatesAt64Bytes(t *testing.T) {
	value := strings.Repeat("a", 100)
	key := EncodeKey("ip_address", value)
	prefix := "vel:global:ip_address:"
	require.Equal(t, prefix+strings.Repeat("a", maxEncodedValueBytes), key)
}

func TestEncodeKeyPreservesAllowedCharacters(t *testing.T) {
	key := EncodeKey("device_id", "abc-123.XYZ_9")
	require.Equal(t, "vel:global:device_id:abc-123.XYZ_9", key)
}
