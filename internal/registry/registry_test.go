package registry

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/alignsync/internal/domain"
	"github.com/roach88/alignsync/internal/store"
)

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"p1", "p1"},
		{"My Project/2", "My_Project_2"},
		{"a.b:c", "a_b_c"},
		{"Ωmega", "_mega"},
		{strings.Repeat("x", 80), strings.Repeat("x", 64)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeID(tt.in), "SanitizeID(%q)", tt.in)
	}
}

func TestPath(t *testing.T) {
	r := New("/data", WithAppName("aligner"))
	assert.Equal(t, filepath.Join("/data", "aligner-my_proj.db"), r.Path("my proj"))
}

func TestGet_ConcurrentFirstOpenSharesOneHandle(t *testing.T) {
	var opens atomic.Int32
	release := make(chan struct{})
	r := New(t.TempDir(), WithOpener(func(path string) (*store.Store, error) {
		opens.Add(1)
		<-release
		return store.Open(path)
	}))
	t.Cleanup(func() { r.Close() })

	const callers = 8
	var (
		wg      sync.WaitGroup
		handles [callers]*store.Store
		errs    [callers]error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = r.Get(context.Background(), "p1")
		}(i)
	}
	// Let every caller reach the in-flight open before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}

	again, err := r.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Same(t, handles[0], again)
	assert.Equal(t, int32(1), opens.Load())
}

func TestGet_RequiresID(t *testing.T) {
	r := New(t.TempDir())
	_, err := r.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestGet_ContextCanceledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	r := New(t.TempDir(), WithOpener(func(path string) (*store.Store, error) {
		<-release
		return store.Open(path)
	}))
	t.Cleanup(func() {
		close(release)
		// Wait for the in-flight open so Close sees the handle.
		_, _ = r.Get(context.Background(), "p1")
		r.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Get(ctx, "p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGet_CopiesTemplateOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tmplPath := filepath.Join(dir, "template.db")
	tmpl, err := store.Open(tmplPath)
	require.NoError(t, err)
	require.NoError(t, tmpl.SaveLanguage(ctx, domain.Language{Code: "grc"}))
	require.NoError(t, tmpl.Close())

	r := New(filepath.Join(dir, "projects"), WithTemplate(tmplPath))
	s, err := r.Get(ctx, "p1")
	require.NoError(t, err)

	langs, err := s.LanguageGetAll(ctx)
	require.NoError(t, err)
	require.Len(t, langs, 1)
	assert.Equal(t, "grc", langs[0].Code)

	// Reopening must not overwrite the project file.
	require.NoError(t, s.SaveLanguage(ctx, domain.Language{Code: "eng"}))
	require.NoError(t, r.Close())

	s, err = r.Get(ctx, "p1")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	langs, err = s.LanguageGetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, langs, 2)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	r := New(t.TempDir())
	t.Cleanup(func() { r.Close() })

	for _, p := range []domain.Project{
		{ID: "p2", Name: "Mark", Location: domain.LocationSynced},
		{ID: "p1", Name: "Matthew", Location: domain.LocationLocal},
	} {
		s, err := r.Get(ctx, p.ID)
		require.NoError(t, err)
		require.NoError(t, s.SaveProject(ctx, p))
	}
	// A file without a project record is skipped.
	_, err := r.Get(ctx, "empty")
	require.NoError(t, err)

	entries, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p1", entries[0].Project.ID)
	assert.Equal(t, "p2", entries[1].Project.ID)
	assert.Equal(t, r.Path("p1"), entries[0].Path)
}

func TestList_MissingDir(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "nope"))
	entries, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGet_SanitizedIDCollision(t *testing.T) {
	ctx := context.Background()
	r := New(t.TempDir())
	t.Cleanup(func() { r.Close() })
	require.Equal(t, r.Path("team/a"), r.Path("team_a"))

	s, err := r.Get(ctx, "team/a")
	require.NoError(t, err)
	require.NoError(t, s.SaveProject(ctx, domain.Project{ID: "team/a", Name: "A", Location: domain.LocationLocal}))

	other, err := r.Get(ctx, "team_a")
	require.Error(t, err)
	assert.Nil(t, other)
	assert.True(t, store.IsConflict(err), "expected conflict, got %v", err)
	assert.ErrorIs(t, err, ErrIDCollision)

	// The first project's record survives.
	s, err = r.Get(ctx, "team/a")
	require.NoError(t, err)
	p, err := s.GetProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, "team/a", p.ID)
}

func TestExists_MemFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New("/data", WithFs(fs))

	ok, err := r.Exists("p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, afero.WriteFile(fs, r.Path("p1"), nil, 0o644))
	ok, err = r.Exists("p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestList_SkipsForeignFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New("/data", WithFs(fs), WithOpener(func(path string) (*store.Store, error) {
		t.Errorf("unexpected open of %s", path)
		return nil, nil
	}))

	require.NoError(t, afero.WriteFile(fs, "/data/notes.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/other-p1.db", nil, 0o644))
	require.NoError(t, fs.MkdirAll("/data/alignsync-dir.db", 0o755))

	entries, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExists(t *testing.T) {
	r := New(t.TempDir())
	t.Cleanup(func() { r.Close() })

	ok, err := r.Exists("p1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.Get(context.Background(), "p1")
	require.NoError(t, err)

	ok, err = r.Exists("p1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists("")
	require.NoError(t, err)
	assert.False(t, ok)
}
