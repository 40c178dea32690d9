package blob

import (
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/vidpreview/internal/domain"
)

func TestRegistry_PublishOpenRevoke(t *testing.T) {
	r := NewRegistry("", zerolog.Nop())

	url, err := r.Publish("video_1", domain.Candidate{
		Name:      "a.mp4",
		MediaType: "video/mp4",
		Source:    domain.BytesSource("payload"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, DefaultBasePath))
	assert.Equal(t, 1, r.Live())

	obj, err := r.Open(r.Token(url))
	require.NoError(t, err)
	b, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.NoError(t, obj.Body.Close())
	assert.Equal(t, "payload", string(b))
	assert.Equal(t, "video/mp4", obj.MediaType)

	assert.True(t, r.Revoke(url))
	assert.False(t, r.Revoke(url), "重复撤销必须返回 false")
	assert.Equal(t, 0, r.Live())
	assert.Equal(t, 1, r.Revoked())

	_, err = r.Open(r.Token(url))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_PublishWithoutSource(t *testing.T) {
	r := NewRegistry("/files", zerolog.Nop())

	_, err := r.Publish("video_1", domain.Candidate{Name: "a.mp4"})
	assert.Error(t, err)
	assert.Equal(t, 0, r.Live())
}

func TestRegistry_TokenFromAbsoluteURL(t *testing.T) {
	r := NewRegistry("/files", zerolog.Nop())

	assert.Equal(t, "blob_x", r.Token("http://127.0.0.1:8080/files/blob_x"))
	assert.Equal(t, "blob_x", r.Token("/files/blob_x"))
	assert.Equal(t, "blob_x", r.Token("blob_x"))
}
