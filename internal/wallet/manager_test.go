package wallet

import (
	"testing"

	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init("error", "text", "stdout")
}

func TestManagerUnlockAndLock(t *testing.T) {
	encrypted, err := EncryptKey(testKeyHex, "pass")
	require.NoError(t, err)

	m := NewManager(encrypted, 30)
	assert.False(t, m.IsUnlocked())

	_, err = m.Key()
	assert.Error(t, err)

	require.NoError(t, m.Unlock("pass"))
	assert.True(t, m.IsUnlocked())

	key, err := m.Key()
	require.NoError(t, err)
	require.NotNil(t, key)

	addr, err := m.Address()
	require.NoError(t, err)
	assert.NotEmpty(t, addr.Hex())

	m.Lock()
	assert.False(t, m.IsUnlocked())
	_, err = m.Key()
	assert.Error(t, err)
}

func TestManagerRejectsWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptKey(testKeyHex, "pass")
	require.NoError(t, err)

	m := NewManager(encrypted, 30)
	assert.Error(t, m.Unlock("wrong"))
	assert.False(t, m.IsUnlocked())
}
