package upload

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	name, filename, contentType string
	data                        []byte
}

func newRequest(t *testing.T, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, w.WriteField(p.name, string(p.data)))
			continue
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.name, p.filename))
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/notes", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	return r
}

func image(name string, size int) part {
	return part{name: FileField, filename: name, contentType: "image/jpeg", data: bytes.Repeat([]byte{0xff}, size)}
}

func limits(t *testing.T) Limits {
	lim := DefaultLimits()
	lim.Dir = t.TempDir()
	return lim
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "transient files left behind")
}

func TestReceiveFieldsAndFiles(t *testing.T) {
	lim := limits(t)
	r := newRequest(t,
		part{name: "title", data: []byte("Trip")},
		part{name: "tags", data: []byte("travel, fun")},
		image("a.JPG", 1024),
		image("b.jpg", 2048),
	)

	b, err := Receive(r, lim)
	require.NoError(t, err)

	assert.Equal(t, "Trip", b.Value("title"))
	assert.Equal(t, "travel, fun", b.Value("tags"))
	require.Len(t, b.Files, 2)
	assert.Equal(t, "a.JPG", b.Files[0].Name)
	assert.Equal(t, int64(2048), b.Files[1].Size)
	for _, p := range b.Paths() {
		assert.FileExists(t, p)
	}

	require.NoError(t, b.Cleanup())
	require.NoError(t, b.Cleanup())
	assertEmptyDir(t, lim.Dir)
}

func TestReceiveTooManyFiles(t *testing.T) {
	lim := limits(t)
	var parts []part
	for i := 0; i < 6; i++ {
		parts = append(parts, image(fmt.Sprintf("%d.jpg", i), 10))
	}

	_, err := Receive(newRequest(t, parts...), lim)

	assert.ErrorIs(t, err, ErrTooManyFiles)
	assertEmptyDir(t, lim.Dir)
}

func TestReceiveFileTooLarge(t *testing.T) {
	lim := limits(t)

	_, err := Receive(newRequest(t, image("ok.jpg", 10), image("huge.jpg", 12<<20)), lim)

	assert.ErrorIs(t, err, ErrFileTooLarge)
	assertEmptyDir(t, lim.Dir)
}

func TestReceiveExactlyMaxSizeIsAccepted(t *testing.T) {
	lim := limits(t)
	lim.MaxFileSize = 100

	b, err := Receive(newRequest(t, image("edge.jpg", 100)), lim)
	require.NoError(t, err)
	defer b.Cleanup()
	assert.Equal(t, int64(100), b.Files[0].Size)
}

func TestReceiveRejectsNonImage(t *testing.T) {
	lim := limits(t)
	doc := part{name: FileField, filename: "notes.pdf", contentType: "application/pdf", data: []byte("%PDF")}

	_, err := Receive(newRequest(t, image("a.jpg", 10), doc), lim)

	assert.ErrorIs(t, err, ErrNotImage)
	assertEmptyDir(t, lim.Dir)
}

func TestReceiveRejectsNonMultipart(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewBufferString(`{"title":"x"}`))
	r.Header.Set("Content-Type", "application/json")

	_, err := Receive(r, limits(t))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNilBatchCleanup(t *testing.T) {
	var b *Batch
	assert.NoError(t, b.Cleanup())
}
