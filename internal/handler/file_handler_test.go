package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-api/pkg/storage"
)

func TestFileHandlerDownload(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	blobs := storage.NewBlobStore(files, storage.NewSignedURLSigner("secret", time.Hour), "http://localhost/files")
	blob, err := blobs.Put(context.Background(), "reg-1", "week1.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	token := strings.TrimPrefix(blob.URL, "http://localhost/files/")

	h := NewFileHandler(blobs)
	c, w := newTestContext(http.MethodGet, "/files/"+token, nil, nil)
	c.Params = append(c.Params, ginParam("token", token))
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.7", w.Body.String())

	c, w = newTestContext(http.MethodGet, "/files/forged", nil, nil)
	c.Params = append(c.Params, ginParam("token", token+"0"))
	h.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
