package attachment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/access"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/tests/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func testPolicy() Policy {
	return Policy{MaxBytes: 64, Allowed: []string{"image/png", "text/plain"}}
}

func TestPolicyCheck(t *testing.T) {
	p := testPolicy()

	mt, err := p.Check(pngHeader)
	require.NoError(t, err)
	require.Equal(t, "image/png", mt.String())

	mt, err = p.Check([]byte("meeting notes\n"))
	require.NoError(t, err)
	require.True(t, mt.Is("text/plain"))

	_, err = p.Check(nil)
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = p.Check([]byte(strings.Repeat("a", 65)))
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = p.Check(append([]byte("PK\x03\x04"), make([]byte, 26)...))
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := NewFSStore(root)
	require.NoError(t, err)

	require.NoError(t, fs.Put(ctx, "t1/a.txt", []byte("hi")))
	b, err := fs.Get(ctx, "t1/a.txt")
	require.NoError(t, err)
	require.Equal(t, "hi", string(b))

	_, err = os.Stat(filepath.Join(root, "t1", "a.txt"))
	require.NoError(t, err)

	require.ErrorIs(t, fs.Put(ctx, "../escape", []byte("x")), model.ErrValidation)

	require.NoError(t, fs.Delete(ctx, "t1/a.txt"))
	require.NoError(t, fs.Delete(ctx, "t1/a.txt"))
	_, err = fs.Get(ctx, "t1/a.txt")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func newService(t *testing.T) (*Service, *FSStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	testutil.SeedOrg(t, s)

	task := testutil.NewTask("Logo refresh", "be_staff", "backend")
	task.ID = "t1"
	require.NoError(t, s.CreateTask(context.Background(), task))

	blobs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	logger, _ := logtest.NewNullLogger()
	return NewService(s, access.NewEvaluator(s, access.MustCapabilities()), blobs, testPolicy(), logger), blobs
}

func TestUploadAndOpen(t *testing.T) {
	svc, blobs := newService(t)
	ctx := context.Background()

	a, err := svc.Upload(ctx, "be_staff", "t1", `C:\Users\bea\logo.png`, pngHeader)
	require.NoError(t, err)
	require.Equal(t, "logo.png", a.FileName)
	require.Equal(t, "image/png", a.ContentType)
	require.Equal(t, int64(len(pngHeader)), a.SizeBytes)
	require.True(t, strings.HasPrefix(a.StorageKey, "t1/"))
	require.True(t, strings.HasSuffix(a.StorageKey, ".png"))

	stored, err := blobs.Get(ctx, a.StorageKey)
	require.NoError(t, err)
	require.Equal(t, pngHeader, stored)

	list, err := svc.List(ctx, "eng_mgr", "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, a.ID, list[0].ID)

	meta, data, err := svc.Open(ctx, "be_mgr", a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, meta.ID)
	require.Equal(t, pngHeader, data)

	_, _, err = svc.Open(ctx, "sales_staff", a.ID)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestUploadRejections(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "sales_staff", "t1", "notes.txt", []byte("hi"))
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.Upload(ctx, "be_staff", "missing", "notes.txt", []byte("hi"))
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.Upload(ctx, "be_staff", "t1", "big.txt", []byte(strings.Repeat("a", 100)))
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Upload(ctx, "be_staff", "t1", "  ", []byte("hi"))
	require.ErrorIs(t, err, model.ErrValidation)

	list, err := svc.List(ctx, "be_staff", "t1")
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, svc.store.ArchiveTask(ctx, "t1"))
	_, err = svc.Upload(ctx, "be_staff", "t1", "notes.txt", []byte("hi"))
	require.ErrorIs(t, err, model.ErrConflict)
}
