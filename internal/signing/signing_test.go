package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignMD5Vector(t *testing.T) {
	// Pinned vector: MD5("S" + "a1" + "b2" + "S").
	sig, err := Sign(map[string]string{"a": "1", "b": "2"}, "S", MD5)
	require.NoError(t, err)
	assert.Equal(t, "DB08FDC3F25263430791ACF66D2DE0C9", sig)
}

func TestSignHMACMD5Vector(t *testing.T) {
	sig, err := Sign(map[string]string{"a": "1", "b": "2"}, "S", HMACMD5)
	require.NoError(t, err)
	assert.Equal(t, "5CAACC4710ED0E7C6AD7EE0CCAF63338", sig)
}

func TestSignDeterministic(t *testing.T) {
	params := map[string]string{
		"timestamp": "2024-01-02 03:04:05",
		"app_key":   "12345",
		"method":    "aliexpress.affiliate.product.query",
		"keywords":  "laptop",
	}
	first, err := Sign(params, "secret", MD5)
	require.NoError(t, err)
	second, err := Sign(params, "secret", MD5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSignOrderIndependent(t *testing.T) {
	// Maps built in different insertion orders must produce the same digest:
	// canonicalization sorts by key bytes.
	a := map[string]string{}
	a["zz"] = "1"
	a["aa"] = "2"
	a["mm"] = "3"
	b := map[string]string{}
	b["mm"] = "3"
	b["zz"] = "1"
	b["aa"] = "2"

	sa, err := Sign(a, "k", HMACMD5)
	require.NoError(t, err)
	sb, err := Sign(b, "k", HMACMD5)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestSignUnsupportedAlgorithm(t *testing.T) {
	_, err := Sign(map[string]string{"a": "1"}, "S", Algorithm("sha256"))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}
