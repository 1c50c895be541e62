package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 80, cfg.Compression.Quality)
	assert.Equal(t, ArchiveNone, cfg.Archive.Format)
	assert.True(t, cfg.Recursive)
}

func TestValidateQualityRange(t *testing.T) {
	for _, quality := range []int{0, -5, 101} {
		cfg := DefaultConfig()
		cfg.Compression.Quality = quality
		assert.Error(t, cfg.Validate(), "quality %d should be rejected", quality)
	}

	for _, quality := range []int{1, 50, 100} {
		cfg := DefaultConfig()
		cfg.Compression.Quality = quality
		assert.NoError(t, cfg.Validate(), "quality %d should be accepted", quality)
	}
}

func TestValidateArchiveFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Archive.Format = "rar"
	assert.Error(t, cfg.Validate())

	cfg.Archive.Format = "ZIP" // case-insensitive
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ArchiveZip, cfg.Archive.Format)
}

func TestValidateConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compression.Concurrency = -1
	assert.Error(t, cfg.Validate())

	cfg.Compression.Concurrency = 0
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.Workers(), 0)

	cfg.Compression.Concurrency = 3
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Workers())
}

func TestNormalizeExtensions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedExtensions = []string{"JPG", ".PNG", "jpeg"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{".jpg", ".png", ".jpeg"}, cfg.SupportedExtensions)
	assert.True(t, cfg.IsSupportedExtension(".JPG"))
	assert.False(t, cfg.IsSupportedExtension(".txt"))
}

func TestOutputDirectoryDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SourceDirectory = "/photos"

	assert.Equal(t, filepath.Join("/photos", "compressed"), cfg.GetOutputDirectory())

	cfg.OutputDirectory = "/out"
	assert.Equal(t, "/out", cfg.GetOutputDirectory())
}

func TestArchiveDirectoryDefaultsAlongsideOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SourceDirectory = "/photos"
	cfg.OutputDirectory = "/photos/compressed"

	assert.Equal(t, "/photos", cfg.GetArchiveDirectory())

	cfg.Archive.Directory = "/backups"
	assert.Equal(t, "/backups", cfg.GetArchiveDirectory())
}
