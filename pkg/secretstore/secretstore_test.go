package secretstore

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	k, err := ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, k)

	hexKey := strings.Repeat("ab", 32)
	k, err = ParseKey("0x" + hexKey)
	require.NoError(t, err)
	assert.Len(t, k, 32)

	b64 := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	k, err = ParseKey(b64)
	require.NoError(t, err)
	assert.Equal(t, []byte(strings.Repeat("k", 32)), k)

	_, err = ParseKey("abcd")
	assert.Error(t, err)
	_, err = ParseKey("!!not-a-key!!")
	assert.Error(t, err)
}

func TestStoreRoundTripEncrypted(t *testing.T) {
	key := []byte(strings.Repeat("x", 32))
	dir := t.TempDir()

	s, err := Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	require.NoError(t, s.SaveCredentials("alice", false, "ak", "as"))
	require.NoError(t, s.SaveCredentials("", true, "mk", "ms"))
	require.NoError(t, s.Close())

	s, err = Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	defer s.Close()

	apiKey, apiSecret, found, err := s.LoadCredentials("alice", false)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ak", apiKey)
	assert.Equal(t, "as", apiSecret)

	apiKey, _, found, err = s.LoadCredentials("ignored", true)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "mk", apiKey)

	_, _, found, err = s.LoadCredentials("bob", false)
	require.NoError(t, err)
	assert.False(t, found)

	keys, err := s.Keys("account/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"account/alice/api_key", "account/alice/api_secret"}, keys)
}

func TestStoreEmptyValueIsFound(t *testing.T) {
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetString("k", ""))
	v, found, err := s.GetString("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", v)

	require.NoError(t, s.Delete("k"))
	_, found, err = s.GetString("k")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = s.GetString("  ")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestNilStore(t *testing.T) {
	var s *Store
	_, _, err := s.GetString("k")
	assert.ErrorIs(t, err, ErrNotOpened)
	assert.NoError(t, s.Close())
}
