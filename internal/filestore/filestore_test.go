package filestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTrip(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	uri, err := store.Write(context.Background(), "user-1/statement.csv", []byte("Date,Amount\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))

	data, err := store.Read(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "Date,Amount\n", string(data))
}

func TestLocalReadMissing(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "file:///nonexistent/nope.csv")
	assert.Error(t, err)
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := parseGCSURI("gs://statements/user-1/file.pdf")
	require.NoError(t, err)
	assert.Equal(t, "statements", bucket)
	assert.Equal(t, "user-1/file.pdf", object)

	_, _, err = parseGCSURI("s3://statements/file.pdf")
	assert.Error(t, err)

	_, _, err = parseGCSURI("gs://bucket-only")
	assert.Error(t, err)
}

func TestChecksumIsStable(t *testing.T) {
	a := Checksum([]byte("same bytes"))
	b := Checksum([]byte("same bytes"))
	c := Checksum([]byte("other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
