package note

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notesy/internal/media"
)

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	next      uint64
	notes     map[uint64]Note
	createErr error
}

func newMemStore() *memStore {
	return &memStore{notes: map[uint64]Note{}}
}

func (m *memStore) Create(_ context.Context, n *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.next++
	n.ID = m.next
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	m.notes[n.ID] = *n
	return nil
}

func (m *memStore) Get(_ context.Context, owner, id uint64) (*Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.OwnerID != owner {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (m *memStore) List(_ context.Context, owner uint64, f Filter) ([]Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Note{}
	for _, n := range m.notes {
		if n.OwnerID == owner && (f.Category == "" || f.Category == "All" || f.Category == n.Category) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) Replace(_ context.Context, n *Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.notes[n.ID]
	if !ok || cur.OwnerID != n.OwnerID {
		return ErrNotFound
	}
	n.UpdatedAt = time.Now()
	m.notes[n.ID] = *n
	return nil
}

func (m *memStore) Delete(_ context.Context, owner, id uint64) (*Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.OwnerID != owner {
		return nil, ErrNotFound
	}
	delete(m.notes, id)
	return &n, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notes)
}

// fakeMedia hands out https://host/<basename> URLs; names in failUpload or refs in
// failDelete error out.
type fakeMedia struct {
	mu         sync.Mutex
	failUpload map[string]bool
	failDelete bool
	block      bool
	uploaded   []string
	deleted    []string
}

func (f *fakeMedia) Upload(ctx context.Context, localPath string, _ media.Options) (string, error) {
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(localPath)
	if f.failUpload[name] {
		return "", errors.New("media service unavailable")
	}
	f.uploaded = append(f.uploaded, name)
	return "https://host/" + name, nil
}

func (f *fakeMedia) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	if f.failDelete {
		return errors.New("media service unavailable")
	}
	return nil
}

func (f *fakeMedia) uploads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.uploaded...)
}

func (f *fakeMedia) deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.deleted...)
	sort.Strings(out)
	return out
}

type fakeQueue struct {
	mu   sync.Mutex
	refs []string
}

func (q *fakeQueue) EnqueueMediaDelete(_ context.Context, _ uint64, ref string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refs = append(q.refs, ref)
	return nil
}

func newService() (*Service, *memStore, *fakeMedia, *fakeQueue) {
	st := newMemStore()
	fm := &fakeMedia{}
	q := &fakeQueue{}
	return &Service{Store: st, Media: fm, Cleanup: q}, st, fm, q
}

func TestCreateTripScenario(t *testing.T) {
	svc, st, _, _ := newService()

	n, err := svc.Create(context.Background(), 7, Input{
		Title:    "Trip",
		Content:  "Notes from trip",
		Category: "Personal",
		Tags:     ParseTags("travel, fun"),
	}, []string{"/tmp/up/one.jpg", "/tmp/up/two.jpg"})
	require.NoError(t, err)

	assert.Len(t, n.Screenshots, 2)
	assert.Equal(t, []string{"https://host/one.jpg", "https://host/two.jpg"}, []string(n.Screenshots))
	assert.Equal(t, []string{"travel", "fun"}, []string(n.Tags))
	assert.Equal(t, "Personal", n.Category)
	assert.Equal(t, uint64(7), n.OwnerID)
	assert.Equal(t, 1, st.count())
}

func TestCreateDefaultsCategory(t *testing.T) {
	svc, _, _, _ := newService()
	n, err := svc.Create(context.Background(), 1, Input{Title: " t ", Content: " c "}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategory, n.Category)
	assert.Equal(t, "t", n.Title)
	assert.NotNil(t, n.Screenshots)
	assert.NotNil(t, n.Tags)
}

func TestCreateRejectsInvalidInputWithoutUploading(t *testing.T) {
	svc, st, fm, _ := newService()

	for _, in := range []Input{
		{Title: "", Content: "c"},
		{Title: "t", Content: "   "},
		{Title: "t", Content: "c", Category: "Shopping"},
	} {
		_, err := svc.Create(context.Background(), 1, in, []string{"/tmp/a.jpg"})
		require.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, fm.uploads())
	assert.Equal(t, 0, st.count())
}

func TestCreateUploadFailureCreatesNothing(t *testing.T) {
	svc, st, fm, _ := newService()
	fm.failUpload = map[string]bool{"b.jpg": true}

	_, err := svc.Create(context.Background(), 1, Input{Title: "t", Content: "c"},
		[]string{"/tmp/a.jpg", "/tmp/b.jpg", "/tmp/c.jpg"})
	require.ErrorIs(t, err, ErrUpload)
	assert.Equal(t, 0, st.count())

	// partial uploads are rolled back
	var refs []string
	for _, u := range fm.uploads() {
		refs = append(refs, strings.TrimSuffix(u, ".jpg"))
	}
	sort.Strings(refs)
	assert.Equal(t, refs, fm.deletes())
}

func TestCreateUploadFailureQueuesUndeletableUploads(t *testing.T) {
	svc, st, fm, q := newService()
	fm.failUpload = map[string]bool{"b.jpg": true}
	fm.failDelete = true

	_, err := svc.Create(context.Background(), 1, Input{Title: "t", Content: "c"},
		[]string{"/tmp/a.jpg", "/tmp/b.jpg", "/tmp/c.jpg"})
	require.ErrorIs(t, err, ErrUpload)
	assert.Equal(t, 0, st.count())

	// every upload that made it and could not be rolled back is queued for cleanup
	var refs []string
	for _, u := range fm.uploads() {
		refs = append(refs, strings.TrimSuffix(u, ".jpg"))
	}
	require.NotEmpty(t, refs)
	assert.ElementsMatch(t, refs, q.refs)
}

func TestCreateStoreFailureDiscardsUploads(t *testing.T) {
	svc, st, fm, _ := newService()
	st.createErr = errors.New("db down")

	_, err := svc.Create(context.Background(), 1, Input{Title: "t", Content: "c"}, []string{"/tmp/a.jpg"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpload)
	assert.Equal(t, []string{"a"}, fm.deletes())
}

func TestCreateMediaTimeout(t *testing.T) {
	svc, st, fm, _ := newService()
	fm.block = true
	svc.MediaTimeout = 20 * time.Millisecond

	_, err := svc.Create(context.Background(), 1, Input{Title: "t", Content: "c"}, []string{"/tmp/a.jpg"})
	require.ErrorIs(t, err, ErrUpload)
	assert.Equal(t, 0, st.count())
}

func seed(t *testing.T, st *memStore, owner uint64, shots ...string) *Note {
	t.Helper()
	n := &Note{OwnerID: owner, Title: "t", Content: "c", Category: "General", Tags: orEmpty(nil), Screenshots: orEmpty(shots)}
	require.NoError(t, st.Create(context.Background(), n))
	return n
}

func TestUpdateKeepsThenAppends(t *testing.T) {
	svc, st, fm, _ := newService()
	x := seed(t, st, 1, "https://host/a.jpg", "https://host/b.jpg", "https://host/c.jpg")

	n, err := svc.Update(context.Background(), 1, x.ID, Input{Title: "t2", Content: "c2", Category: "Work"},
		[]string{"https://host/a.jpg", "https://host/b.jpg"}, []string{"/tmp/new.jpg"})
	require.NoError(t, err)

	assert.Equal(t, []string{"https://host/a.jpg", "https://host/b.jpg", "https://host/new.jpg"}, []string(n.Screenshots))
	assert.Equal(t, "Work", n.Category)

	got, err := st.Get(context.Background(), 1, x.ID)
	require.NoError(t, err)
	assert.Equal(t, n.Screenshots, got.Screenshots)

	// c was dropped from the note and removed from the media store
	assert.Equal(t, []string{"c"}, fm.deletes())
}

func TestUpdateIsIdempotentWithUnchangedKeepList(t *testing.T) {
	svc, st, fm, _ := newService()
	shots := []string{"https://host/b.jpg", "https://host/a.jpg"}
	x := seed(t, st, 1, shots...)

	for i := 0; i < 2; i++ {
		n, err := svc.Update(context.Background(), 1, x.ID, Input{Title: "t", Content: "c"}, shots, nil)
		require.NoError(t, err)
		assert.Equal(t, shots, []string(n.Screenshots))
	}
	assert.Empty(t, fm.uploads())
	assert.Empty(t, fm.deletes())
}

func TestUpdateIgnoresURLsTheNoteDoesNotHold(t *testing.T) {
	svc, st, _, _ := newService()
	x := seed(t, st, 1, "https://host/a.jpg")

	n, err := svc.Update(context.Background(), 1, x.ID, Input{Title: "t", Content: "c"},
		[]string{"https://evil/elsewhere.jpg", "https://host/a.jpg"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://host/a.jpg"}, []string(n.Screenshots))
}

func TestUpdateNotFoundOrForeign(t *testing.T) {
	svc, st, fm, _ := newService()
	x := seed(t, st, 1, "https://host/a.jpg")

	_, err := svc.Update(context.Background(), 2, x.ID, Input{Title: "t", Content: "c"}, nil, []string{"/tmp/n.jpg"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(context.Background(), 1, 999, Input{Title: "t", Content: "c"}, nil, []string{"/tmp/n.jpg"})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, fm.uploads())
	got, err := st.Get(context.Background(), 1, x.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://host/a.jpg"}, []string(got.Screenshots))
}

func TestUpdateUploadFailureLeavesNoteUntouched(t *testing.T) {
	svc, st, fm, _ := newService()
	fm.failUpload = map[string]bool{"bad.jpg": true}
	x := seed(t, st, 1, "https://host/a.jpg")

	_, err := svc.Update(context.Background(), 1, x.ID, Input{Title: "changed", Content: "c"}, nil, []string{"/tmp/bad.jpg"})
	require.ErrorIs(t, err, ErrUpload)

	got, err := st.Get(context.Background(), 1, x.ID)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, []string{"https://host/a.jpg"}, []string(got.Screenshots))
}

func TestDeleteSucceedsEvenWhenMediaDeletesFail(t *testing.T) {
	svc, st, fm, q := newService()
	fm.failDelete = true
	x := seed(t, st, 1, "https://host/a.jpg", "https://host/b.jpg", "https://host/c.jpg")

	require.NoError(t, svc.Delete(context.Background(), 1, x.ID))

	assert.Equal(t, 0, st.count())
	assert.Equal(t, []string{"a", "b", "c"}, fm.deletes())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, q.refs)
}

func TestDeleteNotFoundOrForeign(t *testing.T) {
	svc, st, fm, _ := newService()
	x := seed(t, st, 1, "https://host/a.jpg")

	require.ErrorIs(t, svc.Delete(context.Background(), 2, x.ID), ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), 1, 12345), ErrNotFound)
	assert.Equal(t, 1, st.count())
	assert.Empty(t, fm.deletes())
}

func TestDeleteOutlivesCancelledRequest(t *testing.T) {
	svc, st, fm, _ := newService()
	x := seed(t, st, 1, "https://host/a.jpg")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Delete(ctx, 1, x.ID))
	assert.Equal(t, []string{"a"}, fm.deletes())
}
