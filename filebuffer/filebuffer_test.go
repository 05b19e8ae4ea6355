package filebuffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chunkstore/filemgr"
)

func newTestMgr(t *testing.T) *filemgr.FileMgr {
	t.Helper()
	mgr, err := filemgr.NewFileMgr(filemgr.StorageConfig{
		Dir:           t.TempDir(),
		ReaderThreads: 4,
		GrowPages:     8,
		CacheBytes:    1 << 20,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestAppendThenReadAcrossPages(t *testing.T) {
	mgr := newTestMgr(t)
	fb := New(mgr, []int32{1, 2, 3, 4}, 64)
	require.Equal(t, 32, fb.pageDataSize)

	src := make([]byte, 100)
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, fb.Append(src, len(src)))
	require.Equal(t, int64(100), fb.Size())

	dst := make([]byte, 100)
	require.NoError(t, fb.Read(dst, 100, 0, CPU, 0))
	for i := range dst {
		require.Equal(t, byte(i), dst[i], "byte %d mismatch", i)
	}
}

func TestCopyOnWriteAfterEpochBump(t *testing.T) {
	mgr := newTestMgr(t)
	fb := New(mgr, []int32{9}, 64)

	require.NoError(t, fb.Append(make([]byte, 32), 32))
	mgr.BumpEpoch()

	overwrite := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	require.NoError(t, fb.Write(overwrite, len(overwrite), 4))

	require.Len(t, fb.multiPages, 1)
	mp := fb.multiPages[0]
	require.Len(t, mp.versions, 2)
	require.Equal(t, int32(0), mp.versions[0].epoch)
	require.Equal(t, int32(1), mp.versions[1].epoch)

	dst := make([]byte, 32)
	require.NoError(t, fb.Read(dst, 32, 0, CPU, 0))
	for i := 0; i < 4; i++ {
		require.Equal(t, byte(0), dst[i])
	}
	for i := 4; i < 12; i++ {
		require.Equal(t, byte(0xFF), dst[i])
	}
	for i := 12; i < 32; i++ {
		require.Equal(t, byte(0), dst[i])
	}
}

func TestWriteExtendsSizeAndMarksAppended(t *testing.T) {
	mgr := newTestMgr(t)
	fb := New(mgr, []int32{1}, 64)

	require.NoError(t, fb.Write([]byte{1, 2, 3, 4}, 4, 0))
	require.Equal(t, int64(4), fb.Size())
	require.True(t, fb.IsAppended())
}

func TestRollbackToEpoch(t *testing.T) {
	mgr := newTestMgr(t)
	fb := New(mgr, []int32{5}, 64)

	require.NoError(t, fb.Append(make([]byte, 32), 32))
	mgr.BumpEpoch()
	require.NoError(t, fb.Write([]byte{9, 9}, 2, 0))

	require.NoError(t, fb.RollbackToEpoch(0))
	require.Len(t, fb.multiPages[0].versions, 1)
	require.Equal(t, int32(0), fb.multiPages[0].CurrentEpoch())
}

func TestMetadataWriteReadRoundTrip(t *testing.T) {
	mgr := newTestMgr(t)
	fb := New(mgr, []int32{1, 2}, 64)
	fb.SetSQLType(SQLTypeInfo{Type: 7, Size: 4})
	require.NoError(t, fb.Append([]byte{1, 2, 3, 4}, 4))

	require.NoError(t, fb.WriteMetadata(mgr.Epoch()))

	loaded := New(mgr, []int32{1, 2}, 64)
	require.NoError(t, loaded.ReadMetadata(fb.metadataPages.Current()))
	require.Equal(t, fb.pageSize, loaded.pageSize)
	require.Equal(t, fb.size, loaded.size)
	require.Equal(t, fb.sqlType, loaded.sqlType)
}

func TestFreePagesClearsChunk(t *testing.T) {
	mgr := newTestMgr(t)
	fb := New(mgr, []int32{1}, 64)
	require.NoError(t, fb.Append(make([]byte, 64), 64))
	require.NoError(t, fb.FreePages())
	require.Equal(t, int64(0), fb.Size())
	require.Empty(t, fb.multiPages)
}

func TestReadUnsupportedMemoryLevel(t *testing.T) {
	mgr := newTestMgr(t)
	fb := New(mgr, []int32{1}, 64)
	require.NoError(t, fb.Append(make([]byte, 32), 32))
	dst := make([]byte, 32)
	err := fb.Read(dst, 32, 0, GPU, 0)
	require.Error(t, err)
}
