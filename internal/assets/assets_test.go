package assets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episode-studio/internal/clip"
)

var studio = []clip.AssetRecord{
	{Kind: clip.KindCharacter, Name: "Qiren", Description: "stern swordsman", ImageURL: "http://qiren.png", ReferenceURL: "http://qiren_master.png"},
	{Kind: clip.KindCharacter, Name: "Élodie", Description: "painter"},
	{Kind: clip.KindLocation, Name: "Desert", Description: "dunes", ImageURL: "http://desert.png"},
	{Kind: clip.KindStyle, Name: "Ink", Description: "ink wash", Negatives: "neon", ImageURL: "http://ink.png"},
	{Kind: clip.KindCamera, Name: "Dolly", Description: "slow dolly in"},
}

func libraries(t *testing.T) map[string]Library {
	t.Helper()

	lite, err := OpenSQLite(filepath.Join(t.TempDir(), "assets", "studio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })

	mem, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })

	for _, r := range studio {
		require.NoError(t, lite.Put(context.Background(), r))
		require.NoError(t, mem.Put(context.Background(), r))
	}

	return map[string]Library{
		"memory":        NewMemoryLibrary(studio...),
		"sqlite":        lite,
		"sqlite_memory": mem,
	}
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	for name, lib := range libraries(t) {
		t.Run(name, func(t *testing.T) {
			r, err := lib.Find(ctx, clip.KindCharacter, "  qIREN ")
			require.NoError(t, err)
			assert.Equal(t, "Qiren", r.Name)
			assert.Equal(t, "http://qiren_master.png", r.ReferenceURL)
			assert.Equal(t, clip.KindCharacter, r.Kind)

			r, err = lib.Find(ctx, clip.KindCharacter, "ÉLODIE")
			require.NoError(t, err)
			assert.Equal(t, "painter", r.Description)

			_, err = lib.Find(ctx, clip.KindLocation, "Qiren")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = lib.Find(ctx, clip.KindCharacter, "Qir")
			assert.ErrorIs(t, err, ErrNotFound, "no partial matches")
		})
	}
}

func TestResolveAndBuildPools(t *testing.T) {
	ctx := context.Background()
	c := clip.Descriptor{Character: "qiren, Stranger, élodie", Location: "desert", Style: "INK", Camera: "dolly"}

	for name, lib := range libraries(t) {
		t.Run(name, func(t *testing.T) {
			a, err := Resolve(ctx, lib, c)
			require.NoError(t, err)

			require.Len(t, a.Characters, 3)
			assert.Equal(t, "Qiren", a.Characters[0].Name)
			assert.Nil(t, a.Characters[1])
			assert.Equal(t, "Élodie", a.Characters[2].Name)
			assert.Equal(t, "Desert", a.Location.Name)
			assert.Equal(t, "Ink", a.Style.Name)
			assert.Equal(t, "Dolly", a.Camera.Name)

			p := BuildPools(a, []string{"http://upload.png"})
			assert.Equal(t, []string{"http://desert.png"}, p.Location)
			assert.Equal(t, []string{"http://qiren.png", "", ""}, p.Characters)
			assert.Equal(t, "http://ink.png", p.Style)
			assert.Equal(t, []string{"http://upload.png"}, p.Explicit)
		})
	}
}

func TestResolveEmptyClip(t *testing.T) {
	a, err := Resolve(context.Background(), NewMemoryLibrary(), clip.Descriptor{})
	require.NoError(t, err)
	assert.Equal(t, clip.Assets{}, a)
	assert.Equal(t, clip.Pools{}, BuildPools(a, nil))

	a, err = Resolve(context.Background(), nil, clip.Descriptor{Character: "A"})
	require.NoError(t, err)
	assert.Nil(t, a.Characters)
}

type brokenLibrary struct{}

func (brokenLibrary) Find(context.Context, clip.Kind, string) (*clip.AssetRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestResolvePropagatesLookupErrors(t *testing.T) {
	_, err := Resolve(context.Background(), brokenLibrary{}, clip.Descriptor{Location: "Desert"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `resolve location "Desert"`)
}

func TestPutValidation(t *testing.T) {
	lib := NewMemoryLibrary()
	assert.Error(t, lib.Put(clip.AssetRecord{Kind: "prop", Name: "Sword"}))
	assert.Error(t, lib.Put(clip.AssetRecord{Kind: clip.KindStyle, Name: "  "}))

	require.NoError(t, lib.Put(clip.AssetRecord{Kind: clip.KindStyle, Name: "Ink", Description: "v1"}))
	require.NoError(t, lib.Put(clip.AssetRecord{Kind: clip.KindStyle, Name: "ink", Description: "v2"}))
	assert.Equal(t, 1, lib.Len())

	r, err := lib.Find(context.Background(), clip.KindStyle, "INK")
	require.NoError(t, err)
	assert.Equal(t, "v2", r.Description)
}

func TestSQLiteUpsertAndList(t *testing.T) {
	ctx := context.Background()
	lib, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer lib.Close()

	require.NoError(t, lib.Put(ctx, clip.AssetRecord{Kind: clip.KindLocation, Name: "Harbor", Description: "v1"}))
	require.NoError(t, lib.Put(ctx, clip.AssetRecord{Kind: clip.KindLocation, Name: "harbor", Description: "v2"}))
	require.NoError(t, lib.Put(ctx, clip.AssetRecord{Kind: clip.KindLocation, Name: "Attic"}))
	assert.Error(t, lib.Put(ctx, clip.AssetRecord{Kind: "prop", Name: "Sword"}))

	list, err := lib.List(ctx, clip.KindLocation)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Attic", list[0].Name)
	assert.Equal(t, "harbor", list[1].Name)
	assert.Equal(t, "v2", list[1].Description)
}
