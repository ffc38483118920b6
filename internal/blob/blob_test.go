package blob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestMemStore_Put(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	ref, err := store.Put(ctx, &PutParams{Data: []byte("hello"), ContentType: "text/plain", Retention: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", ref.ContentAddress)
	assert.Equal(t, "mem:"+ref.ContentAddress, ref.ContentID)

	again, err := store.Put(ctx, &PutParams{Data: []byte("hello"), Retention: 2 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, ref, again)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, store.Puts())

	data, err := store.Get(ref.ContentAddress)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestMemStore_PutEmpty(t *testing.T) {
	store := NewMemStore()

	ref, err := store.Put(context.Background(), &PutParams{Data: []byte{}, Retention: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, emptySHA256, ref.ContentAddress)

	data, err := store.Get(emptySHA256)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestMemStore_PutValidation(t *testing.T) {
	store := NewMemStore()

	_, err := store.Put(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoParams)

	_, err = store.Put(context.Background(), &PutParams{Data: []byte("x")})
	assert.ErrorIs(t, err, ErrBadRetention)
}

func TestS3Config(t *testing.T) {
	var nilCfg *S3Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrNotConfigured)
	assert.ErrorIs(t, (&S3Config{BucketName: "b"}).Validate(), ErrNotConfigured)
	assert.NoError(t, (&S3Config{BucketName: "b", Region: "us-east-1"}).Validate())

	assert.Equal(t, "blobs/abc", (&S3Config{}).key("abc"))
	assert.Equal(t, "sites/x/blobs/abc", (&S3Config{Prefix: "/sites/x/"}).key("abc"))
}
