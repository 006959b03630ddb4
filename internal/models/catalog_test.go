package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogFamily(t *testing.T) {
	cat := DefaultCatalog()
	tests := []struct {
		model string
		want  Family
	}{
		{"veo3_fast_s2e", TransitionVideo},
		{"VEO3_FAST_S2E", TransitionVideo},
		{"veo3_fast_s2e_v2", StandardVideo},
		{"flux-kontext-pro", FlatImage},
		{"black-forest/FLUX-dev", FlatImage},
		{"google/nano-banana-pro", DenseImage},
		{"veo3", StandardVideo},
		{"veo3_fast", StandardVideo},
		{"", StandardVideo},
		{"something-new", StandardVideo},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, cat.Family(tt.model))
		})
	}
}

func TestFamilyTextRoundTrip(t *testing.T) {
	for _, f := range []Family{StandardVideo, TransitionVideo, FlatImage, DenseImage} {
		b, err := f.MarshalText()
		require.NoError(t, err)

		var got Family
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, f, got)
	}

	_, err := Family(42).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownFamily)

	_, err = ParseFamily("hologram")
	assert.ErrorIs(t, err, ErrUnknownFamily)
}

func TestLoadCatalogOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	content := `video:
  quality: veo4
  fast: veo4_fast
  durations: [4, 8]
  default_duration: 4
transition:
  id: veo4_s2e
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "veo4", cat.Video.Quality)
	assert.Equal(t, []int{4, 8}, cat.Video.Durations)
	assert.Equal(t, TransitionVideo, cat.Family("veo4_s2e"))
	assert.Equal(t, "flux", cat.Flat.Marker, "untouched sections keep defaults")
}

func TestLoadCatalogRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("video:\n  default_duration: 7\n"), 0644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)

	_, err = LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCatalogEmptyPath(t *testing.T) {
	cat, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCatalog(), cat)
}
