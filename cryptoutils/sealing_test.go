package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSealOpen tests the SealWithPassphrase and OpenWithPassphrase functions
func TestSealOpen(t *testing.T) {
	passphrase := []byte("correct horse battery staple")

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Simple string", data: []byte("checkpoint")},
		{name: "JSON data", data: []byte(`{"seq":12,"owner":"0x01"}`)},
		{name: "Binary data", data: []byte{0x00, 0x01, 0xFF, 0xFE}},
		{name: "Empty data", data: []byte{}},
		{name: "Long data", data: make([]byte, 64*1024)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := SealWithPassphrase(passphrase, tc.data)
			require.NoError(t, err)
			assert.True(t, IsSealed(sealed))

			opened, err := OpenWithPassphrase(passphrase, sealed)
			require.NoError(t, err)
			assert.Equal(t, len(tc.data), len(opened))
			if len(tc.data) > 0 {
				assert.Equal(t, tc.data, opened)
			}
		})
	}
}

// TestSealIsRandomized tests that sealing the same data twice gives different output
func TestSealIsRandomized(t *testing.T) {
	a, err := SealWithPassphrase([]byte("pw"), []byte("same"))
	require.NoError(t, err)
	b, err := SealWithPassphrase([]byte("pw"), []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

// TestOpenFailures tests wrong passphrases and tampered data
func TestOpenFailures(t *testing.T) {
	sealed, err := SealWithPassphrase([]byte("right"), []byte("secret snapshot"))
	require.NoError(t, err)

	_, err = OpenWithPassphrase([]byte("wrong"), sealed)
	assert.Error(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xFF
	_, err = OpenWithPassphrase([]byte("right"), tampered)
	assert.Error(t, err)

	_, err = OpenWithPassphrase([]byte("right"), []byte(`{"plain":"json"}`))
	assert.ErrorIs(t, err, ErrNotSealed)

	_, err = OpenWithPassphrase([]byte("right"), sealMagic)
	assert.ErrorIs(t, err, ErrNotSealed)

	_, err = OpenWithPassphrase(nil, sealed)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
	_, err = SealWithPassphrase(nil, []byte("x"))
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}
