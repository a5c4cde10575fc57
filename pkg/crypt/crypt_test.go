/*
2026 © Postgres.ai
*/

package crypt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgeSealer(t *testing.T) {
	identity, recipient, err := GenerateIdentity()
	require.NoError(t, err)

	sealer, err := NewAgeSealer(identity)
	require.NoError(t, err)
	assert.Equal(t, recipient, sealer.Recipient())

	sealed, err := sealer.Seal("QWERTY")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "QWERTY")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "QWERTY", opened)

	t.Run("another identity cannot open the value", func(t *testing.T) {
		other, _, err := GenerateIdentity()
		require.NoError(t, err)

		otherSealer, err := NewAgeSealer(other)
		require.NoError(t, err)

		_, err = otherSealer.Open(sealed)
		assert.Error(t, err)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := sealer.Open("not base64!")
		assert.Error(t, err)
	})
}

func TestLoadAgeSealer(t *testing.T) {
	identity, _, err := GenerateIdentity()
	require.NoError(t, err)

	dir := t.TempDir()

	keyFile := filepath.Join(dir, "key.txt")
	require.NoError(t, os.WriteFile(keyFile, []byte("# created: 2026-01-01\n"+identity+"\n"), 0600))

	_, err = LoadAgeSealer(keyFile)
	require.NoError(t, err)

	emptyFile := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(emptyFile, []byte("# nothing here\n"), 0600))

	_, err = LoadAgeSealer(emptyFile)
	assert.Error(t, err)
}

func TestNoKey(t *testing.T) {
	_, err := NoKey{}.Open("sealed")
	assert.True(t, errors.Is(err, ErrNoKey))
}
