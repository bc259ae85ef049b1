package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sptest "github.com/avenlon/sitepulse/internal/testing"
)

type fakeRecord struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSetGetRoundTrip(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	in := fakeRecord{Name: "scan", Count: 7}
	require.NoError(t, store.Set("test_record", in))

	var out fakeRecord
	found, err := store.Get("test_record", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestGetAbsentKey(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	var out fakeRecord
	found, err := store.Get("missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, fakeRecord{}, out)
}

func TestSetOverwrites(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	require.NoError(t, store.Set("k", fakeRecord{Count: 1}))
	require.NoError(t, store.Set("k", fakeRecord{Count: 2}))

	var out fakeRecord
	found, err := store.Get("k", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, out.Count)
}

func TestDelete(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	require.NoError(t, store.Set("k", fakeRecord{Count: 1}))
	require.NoError(t, store.Delete("k"))

	has, err := store.Has("k")
	require.NoError(t, err)
	assert.False(t, has)

	// Deleting an absent key is fine
	require.NoError(t, store.Delete("k"))
}
