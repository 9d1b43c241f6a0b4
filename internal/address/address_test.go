package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Canonicalizes(t *testing.T) {
	addr, err := Normalize("aa:bb:cc:11:22:33")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:11:22:33", addr.Canonical)
	assert.Equal(t, "AA:BB:CC", addr.OUI())
	assert.False(t, addr.IsRandomized)
}

func TestNormalize_HyphenSeparator(t *testing.T) {
	addr, err := Normalize("AA-BB-CC-11-22-33")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:11:22:33", addr.Canonical)
}

func TestNormalize_RandomizedBit(t *testing.T) {
	// 0x02 位置位 → 本地管理地址
	cases := map[string]bool{
		"02:00:00:00:00:01": true,
		"C6:12:34:56:78:9A": true,  // 0xC6 & 0x02 != 0
		"DA:11:22:33:44:55": true,  // 0xDA & 0x02 != 0
		"A4:83:E7:01:02:03": false, // 全局分配
		"00:11:22:33:44:55": false,
	}
	for raw, want := range cases {
		addr, err := Normalize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, addr.IsRandomized, raw)
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	for _, raw := range []string{
		"",
		"AA:BB:CC",
		"AA:BB:CC:11:22",
		"AA:BB:CC:11:22:33:44",
		"GG:BB:CC:11:22:33",
		"AAA:BB:CC:11:22:3",
		"not-a-mac",
	} {
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrInvalidAddress, raw)
	}
}
