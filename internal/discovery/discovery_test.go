package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

var imageExts = []string{".jpg", ".jpeg", ".png"}

func paths(files []SourceFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f.Path)
	}
	return out
}

func TestDiscoverMarksSupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "b.PNG"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "c.gif"))

	d := NewDiscoverer(testLogger())
	files, err := d.Discover(dir, Options{Recursive: true, Extensions: imageExts})
	require.NoError(t, err)

	// Every regular file is listed; only candidate extensions are supported.
	assert.ElementsMatch(t, []string{"a.jpg", "b.PNG", "notes.txt", "c.gif"}, paths(files))

	supported := make(map[string]bool, len(files))
	for _, f := range files {
		supported[filepath.Base(f.Path)] = f.Supported
	}
	assert.True(t, supported["a.jpg"])
	assert.True(t, supported["b.PNG"], "extension match is case-insensitive")
	assert.False(t, supported["notes.txt"])
	assert.False(t, supported["c.gif"])
}

func TestDiscoverRecursion(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "top.jpg"))
	touch(t, filepath.Join(dir, "nested", "deep", "inner.jpg"))

	d := NewDiscoverer(testLogger())

	flat, err := d.Discover(dir, Options{Recursive: false, Extensions: imageExts})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"top.jpg"}, paths(flat))

	all, err := d.Discover(dir, Options{Recursive: true, Extensions: imageExts})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"top.jpg", "inner.jpg"}, paths(all))
}

func TestDiscoverExcludesOutputDir(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "compressed", "a.jpg"))

	d := NewDiscoverer(testLogger())
	files, err := d.Discover(dir, Options{
		Recursive:  true,
		Extensions: imageExts,
		ExcludeDir: filepath.Join(dir, "compressed"),
	})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.NotContains(t, files[0].Path, "compressed")
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	d := NewDiscoverer(testLogger())
	files, err := d.Discover(t.TempDir(), Options{Recursive: true, Extensions: imageExts})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverRootNotFound(t *testing.T) {
	d := NewDiscoverer(testLogger())
	_, err := d.Discover(filepath.Join(t.TempDir(), "missing"), Options{Extensions: imageExts})
	require.Error(t, err)

	derr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, NotFound, derr.Kind)
}

func TestDiscoverRootNotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.jpg")
	touch(t, file)

	d := NewDiscoverer(testLogger())
	_, err := d.Discover(file, Options{Extensions: imageExts})
	require.Error(t, err)

	derr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, NotADirectory, derr.Kind)
}

func TestDiscoverRecordsSizeAndFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpeg")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	d := NewDiscoverer(testLogger())
	files, err := d.Discover(dir, Options{Recursive: true, Extensions: imageExts})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, int64(10), files[0].Size)
	assert.Equal(t, "JPEG", files[0].Format)
	assert.True(t, files[0].Supported)
	assert.True(t, filepath.IsAbs(files[0].Path))
}
