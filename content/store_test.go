package content

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sptest "github.com/avenlon/sitepulse/internal/testing"
	"github.com/avenlon/sitepulse/internal/util"
)

func TestPublicTypes(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	types, err := store.PublicTypes()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"post", "page"}, types)

	require.NoError(t, store.RegisterType("product", true))
	types, err = store.PublicTypes()
	require.NoError(t, err)
	assert.Contains(t, types, "product")
}

func TestIDListsSplitByStatus(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	published, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish, Slug: "hello"})
	require.NoError(t, err)
	draft, err := store.CreatePost(&Post{PostType: "post", Status: StatusDraft, Slug: "draft"})
	require.NoError(t, err)
	_, err = store.CreatePost(&Post{PostType: "page", Status: StatusPublish, Slug: "about"})
	require.NoError(t, err)

	pubIDs, err := store.PublishedIDs([]string{"post"})
	require.NoError(t, err)
	assert.Equal(t, []int64{published}, pubIDs)

	allIDs, err := store.AllIDs([]string{"post"})
	require.NoError(t, err)
	assert.Equal(t, []int64{published, draft}, allIDs)
}

func TestIDsAscendingOrder(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	var want []int64
	for i := 0; i < 5; i++ {
		id, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish})
		require.NoError(t, err)
		want = append(want, id)
	}

	got, err := store.PublishedIDs([]string{"post"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetMetaIdempotent(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	id, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish})
	require.NoError(t, err)

	require.NoError(t, store.SetMeta(id, "checked_at", "2026-01-01T00:00:00Z"))
	require.NoError(t, store.SetMeta(id, "checked_at", "2026-02-01T00:00:00Z"))

	value, found, err := store.GetMeta(id, "checked_at")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2026-02-01T00:00:00Z", value)
}

func TestInspectFeaturedImage(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	imageID, err := store.CreateAttachment("image/png", "uploads/cover.png")
	require.NoError(t, err)
	pdfID, err := store.CreateAttachment("application/pdf", "uploads/report.pdf")
	require.NoError(t, err)

	withImage, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish, FeaturedImageID: util.Ptr(imageID)})
	require.NoError(t, err)
	withPDF, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish, FeaturedImageID: util.Ptr(pdfID)})
	require.NoError(t, err)
	withDangling, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish, FeaturedImageID: util.Ptr(int64(9999))})
	require.NoError(t, err)
	without, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish})
	require.NoError(t, err)

	for _, tc := range []struct {
		id    int64
		valid bool
	}{
		{withImage, true},
		{withPDF, false},
		{withDangling, false},
		{without, false},
	} {
		info, err := store.Inspect(tc.id)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, tc.valid, info.FeaturedImageValid, "post %d", tc.id)
	}
}

func TestInspectMissingPost(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	info, err := store.Inspect(424242)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestDeletePostCascadesMeta(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	id, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish})
	require.NoError(t, err)
	require.NoError(t, store.SetMeta(id, "checked_at", "2026-01-01T00:00:00Z"))

	require.NoError(t, store.DeletePost(id))

	info, err := store.Inspect(id)
	require.NoError(t, err)
	assert.Nil(t, info)

	_, found, err := store.GetMeta(id, "checked_at")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolveLink(t *testing.T) {
	store := NewStore(sptest.CreateTestDB(t))

	pubID, err := store.CreatePost(&Post{PostType: "post", Status: StatusPublish, Slug: "published-post"})
	require.NoError(t, err)
	_, err = store.CreatePost(&Post{PostType: "post", Status: StatusDraft, Slug: "draft-post"})
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
	}{
		{"/published-post", StatusPublish},
		{"/published-post/", StatusPublish},
		{"/blog/published-post", StatusPublish},
		{"/draft-post", StatusDraft},
		{"/no-such-slug", ""},
		{"/?p=" + strconv.FormatInt(pubID, 10), StatusPublish},
		{"/?p=999999", ""},
		{"/", ""},
	}
	for _, tc := range tests {
		got, err := store.ResolveLink(tc.href)
		require.NoError(t, err, tc.href)
		assert.Equal(t, tc.want, got, tc.href)
	}
}
