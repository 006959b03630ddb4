package selector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episode-studio/internal/clip"
)

func TestSelectLocationAndCharacters(t *testing.T) {
	in := Input{
		Names: []string{"CharA", "CharB"},
		Pools: clip.Pools{
			Location:   []string{"http://desert.png"},
			Characters: []string{"http://chara.png", "http://charb.png"},
		},
	}

	m, err := Select(ModeStandard, in)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://desert.png", "http://chara.png", "http://charb.png"}, m.SelectedURLs)
	assert.Equal(t, 1, m.Slots.Location)
	assert.Equal(t, []int{2, 3}, m.Slots.Characters)
	assert.Empty(t, m.Slots.References)
	assert.Zero(t, m.Slots.Style)
	require.NoError(t, m.Validate())
}

func TestSelectSmartLinkage(t *testing.T) {
	in := Input{
		Names: []string{"Qiren"},
		Assets: clip.Assets{Characters: []*clip.AssetRecord{
			{Kind: clip.KindCharacter, Name: "Qiren", ReferenceURL: "http://qiren_master.png"},
		}},
		Pools: clip.Pools{
			Characters: []string{""},
			Explicit:   []string{"http://misc.png", "http://qiren_master.png"},
		},
	}

	m, err := Select(ModeStandard, in)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://qiren_master.png", "http://misc.png"}, m.SelectedURLs)
	assert.Equal(t, []int{1}, m.Slots.Characters)
	assert.Equal(t, []int{2}, m.Slots.References)
	assert.Equal(t, Role{Kind: RoleCharacter, Index: 0}, m.Owners[0])
	assert.Equal(t, Role{Kind: RoleReference, Index: 0}, m.Owners[1])
	require.NoError(t, m.Validate())
}

func TestSelectLinkageIgnoresQueryString(t *testing.T) {
	in := Input{
		Names: []string{"Qiren"},
		Assets: clip.Assets{Characters: []*clip.AssetRecord{
			{Name: "Qiren", ReferenceURL: "https://cdn.example.com/qiren.png?sig=old"},
		}},
		Pools: clip.Pools{Explicit: []string{"https://cdn.example.com/qiren.png?sig=new"}},
	}

	m, err := Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.Slots.Characters)
	assert.Empty(t, m.Slots.References)
}

func TestSelectLinkedImageClaimedOnce(t *testing.T) {
	shared := "http://twins.png"
	in := Input{
		Names: []string{"A", "B"},
		Assets: clip.Assets{Characters: []*clip.AssetRecord{
			{Name: "A", ReferenceURL: shared},
			{Name: "B", ReferenceURL: shared},
		}},
		Pools: clip.Pools{Explicit: []string{shared}},
	}

	m, err := Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Equal(t, []string{shared}, m.SelectedURLs)
	assert.Equal(t, []int{1, 0}, m.Slots.Characters, "second character cannot reuse a claimed explicit image")
	assert.Empty(t, m.Slots.References)
}

func TestSelectCustomLinker(t *testing.T) {
	in := Input{
		Names: []string{"Qiren"},
		Assets: clip.Assets{Characters: []*clip.AssetRecord{
			{Name: "Qiren", ReferenceURL: "qiren_master.png"},
		}},
		Pools: clip.Pools{Explicit: []string{"http://cdn/qiren_master.png"}},
	}

	m, err := New(Options{Linker: ExactLinker}).Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, m.Slots.Characters)
	assert.Equal(t, []int{1}, m.Slots.References)

	m, err = Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, m.Slots.Characters)
}

func TestSelectStyleReservesLastSlot(t *testing.T) {
	in := Input{
		Names: []string{"A", "B", "C"},
		Pools: clip.Pools{
			Location:   []string{"http://loc.png"},
			Characters: []string{"http://a.png1", "http://b.png1", "http://c.png1"},
			Explicit:   []string{"http://ref.png"},
			Style:      "http://style.png",
		},
	}

	m, err := Select(ModeStandard, in)
	require.NoError(t, err)

	assert.Len(t, m.SelectedURLs, 3)
	assert.Equal(t, 1, m.Slots.Location)
	assert.Equal(t, []int{2, 0, 0}, m.Slots.Characters, "first character wins the only remaining slot")
	assert.Empty(t, m.Slots.References)
	assert.Equal(t, 3, m.Slots.Style)
	assert.Equal(t, "http://style.png", m.SelectedURLs[2])
	require.NoError(t, m.Validate())
}

func TestSelectStyleAloneTakesFirstSlot(t *testing.T) {
	m, err := Select(ModeStandard, Input{Pools: clip.Pools{Style: "http://style.png"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://style.png"}, m.SelectedURLs)
	assert.Equal(t, 1, m.Slots.Style)
}

func TestSelectInvalidStyleDoesNotReserve(t *testing.T) {
	in := Input{
		Names: []string{"A", "B"},
		Pools: clip.Pools{
			Location:   []string{"http://loc.png"},
			Characters: []string{"http://a.png1", "http://b.png1"},
			Style:      "undefined",
		},
	}
	m, err := Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Len(t, m.SelectedURLs, 3)
	assert.Zero(t, m.Slots.Style)
}

func TestSelectReferencesFillRemainingCapacity(t *testing.T) {
	in := Input{
		Pools: clip.Pools{Explicit: []string{"http://r1.png", "null", "http://r2.png", "http://r3.png", "http://r4.png"}},
	}
	m, err := Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://r1.png", "http://r2.png", "http://r3.png"}, m.SelectedURLs)
	assert.Equal(t, []int{1, 2, 3}, m.Slots.References)
}

func TestSelectDeduplicates(t *testing.T) {
	in := Input{
		Names: []string{"A"},
		Pools: clip.Pools{
			Location:   []string{"http://same.png"},
			Characters: []string{"http://same.png"},
			Explicit:   []string{"http://same.png", "http://other.png"},
		},
	}
	m, err := Select(ModeStandard, in)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://same.png", "http://other.png"}, m.SelectedURLs)
	assert.Equal(t, 1, m.Slots.Location)
	assert.Equal(t, []int{1}, m.Slots.Characters, "duplicate resolves to the original slot")
	assert.Equal(t, []int{2}, m.Slots.References)
	require.NoError(t, m.Validate())
}

func TestSelectIgnoresMalformedURLs(t *testing.T) {
	in := Input{
		Names: []string{"A", "B"},
		Pools: clip.Pools{
			Location:   []string{"undefined"},
			Characters: []string{"null", "x.png"},
			Explicit:   []string{"", "   "},
		},
	}
	m, err := Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Empty(t, m.SelectedURLs)
	assert.Equal(t, []int{0, 0}, m.Slots.Characters)
	assert.Zero(t, m.MaxSlot())
}

func TestSelectTransition(t *testing.T) {
	in := Input{
		Names: []string{"A"},
		Pools: clip.Pools{
			Location:   []string{"http://loc.png"},
			Characters: []string{"http://a.png1"},
			Explicit:   []string{"start.png", "end.png", "extra.png"},
			Style:      "http://style.png",
		},
	}
	m, err := Select(ModeTransition, in)
	require.NoError(t, err)

	assert.Equal(t, ModeTransition, m.Mode)
	assert.Equal(t, []string{"start.png", "end.png"}, m.SelectedURLs)
	assert.Equal(t, []int{1, 2}, m.Slots.References)
	assert.Zero(t, m.Slots.Location)
	assert.Zero(t, m.Slots.Style)
	assert.Equal(t, RoleStartFrame, m.Owners[0].Kind)
	assert.Equal(t, RoleEndFrame, m.Owners[1].Kind)
	require.NoError(t, m.Validate())
}

func TestSelectTransitionPartial(t *testing.T) {
	m, err := Select(ModeTransition, Input{Pools: clip.Pools{Explicit: []string{"start.png"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"start.png"}, m.SelectedURLs)

	m, err = Select(ModeTransition, Input{})
	require.NoError(t, err)
	assert.Empty(t, m.SelectedURLs)
}

func TestSelectMalformedInput(t *testing.T) {
	_, err := Select(ModeStandard, Input{
		Names: []string{"A"},
		Pools: clip.Pools{Characters: []string{"http://a.png1", "http://b.png1"}},
	})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = Select(ModeStandard, Input{
		Assets: clip.Assets{Characters: []*clip.AssetRecord{{Name: "A"}}},
	})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestSelectIsIdempotent(t *testing.T) {
	in := Input{
		Names: []string{"A", "B"},
		Assets: clip.Assets{Characters: []*clip.AssetRecord{
			nil,
			{Name: "B", ReferenceURL: "http://b_ref.png"},
		}},
		Pools: clip.Pools{
			Characters: []string{"http://a.png1"},
			Explicit:   []string{"http://x.png", "http://b_ref.png"},
			Style:      "http://style.png",
		},
	}
	first, err := Select(ModeStandard, in)
	require.NoError(t, err)
	second, err := Select(ModeStandard, in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSelectPartitionAndCapacityInvariants(t *testing.T) {
	urls := func(prefix string, n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("http://%s%d.png", prefix, i)
		}
		return out
	}

	for loc := 0; loc <= 1; loc++ {
		for chars := 0; chars <= 4; chars++ {
			for refs := 0; refs <= 4; refs++ {
				for _, style := range []string{"", "http://style.png"} {
					names := make([]string, chars)
					for i := range names {
						names[i] = fmt.Sprintf("C%d", i)
					}
					in := Input{
						Names: names,
						Pools: clip.Pools{
							Location:   urls("loc", loc),
							Characters: urls("char", chars),
							Explicit:   urls("ref", refs),
							Style:      style,
						},
					}

					name := fmt.Sprintf("loc=%d chars=%d refs=%d style=%t", loc, chars, refs, style != "")
					t.Run(name, func(t *testing.T) {
						m, err := Select(ModeStandard, in)
						require.NoError(t, err)
						require.NoError(t, m.Validate())

						assert.LessOrEqual(t, len(m.SelectedURLs), MaxImages)
						if style != "" {
							assert.LessOrEqual(t, len(m.SelectedURLs)-1, MaxImages-1)
							assert.Equal(t, len(m.SelectedURLs), m.Slots.Style, "style is always last")
						}

						counts := make(map[int]int)
						all := append([]int{m.Slots.Location, m.Slots.Style}, m.Slots.Characters...)
						all = append(all, m.Slots.References...)
						for _, s := range all {
							if s != 0 {
								counts[s]++
							}
						}
						for slot := 1; slot <= len(m.SelectedURLs); slot++ {
							assert.Equal(t, 1, counts[slot], "slot %d", slot)
						}
						assert.Len(t, counts, len(m.SelectedURLs))
					})
				}
			}
		}
	}
}
