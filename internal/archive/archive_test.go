package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestZipInvokerArchivesDirectory(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "compressed")
	require.NoError(t, os.MkdirAll(filepath.Join(outputDir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "a.jpg"), []byte("aaa"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "sub", "b.jpg"), []byte("bbbb"), 0644))

	inv := NewZipInvoker(testLogger())
	err := inv.Archive(Request{OutputDir: outputDir, ArchiveDir: root})
	require.NoError(t, err)

	archivePath := filepath.Join(root, "compressed.zip")
	r, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"compressed/a.jpg", "compressed/sub/b.jpg"}, names)

	// Archiving is additive: the directory it archived is untouched.
	_, err = os.Stat(filepath.Join(outputDir, "a.jpg"))
	assert.NoError(t, err)
}

func TestZipInvokerMissingOutputDir(t *testing.T) {
	root := t.TempDir()
	inv := NewZipInvoker(testLogger())

	err := inv.Archive(Request{
		OutputDir:  filepath.Join(root, "missing"),
		ArchiveDir: root,
	})
	require.Error(t, err)

	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, IO, aerr.Kind)

	// No partial archive left behind.
	_, statErr := os.Stat(filepath.Join(root, "missing.zip"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSevenZipInvokerToolNotFound(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "compressed")
	require.NoError(t, os.MkdirAll(outputDir, 0755))

	inv := NewSevenZipInvoker("definitely-not-an-installed-archiver", testLogger())
	err := inv.Archive(Request{OutputDir: outputDir, ArchiveDir: root})
	require.Error(t, err)

	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, ToolNotFound, aerr.Kind)
}

func TestNewInvoker(t *testing.T) {
	log := testLogger()

	assert.Nil(t, NewInvoker("none", "", log))
	assert.Nil(t, NewInvoker("", "", log))
	assert.IsType(t, &ZipInvoker{}, NewInvoker("zip", "", log))
	assert.IsType(t, &SevenZipInvoker{}, NewInvoker("7z", "7z", log))
}
