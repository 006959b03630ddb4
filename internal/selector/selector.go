package selector

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"episode-studio/internal/clip"
)

var ErrMalformedInput = errors.New("malformed selector input")

// Input is everything the selector looks at. Names is the clip's character
// list; Assets.Characters and Pools.Characters are parallel to it.
type Input struct {
	Names  []string
	Assets clip.Assets
	Pools  clip.Pools
}

// Linker reports whether an explicit image is the same picture as a
// character's reference image.
type Linker func(reference, candidate string) bool

type Options struct {
	Linker Linker
}

type Selector struct {
	linker Linker
}

func New(opts Options) *Selector {
	linker := opts.Linker
	if linker == nil {
		linker = SubstringLinker
	}
	return &Selector{linker: linker}
}

var defaultSelector = New(Options{})

// Select runs the default selector.
func Select(mode Mode, in Input) (Manifest, error) {
	return defaultSelector.Select(mode, in)
}

func (s *Selector) Select(mode Mode, in Input) (Manifest, error) {
	if len(in.Pools.Characters) > len(in.Names) {
		return Manifest{}, fmt.Errorf("%w: %d character images for %d names", ErrMalformedInput, len(in.Pools.Characters), len(in.Names))
	}
	if len(in.Assets.Characters) > len(in.Names) {
		return Manifest{}, fmt.Errorf("%w: %d character assets for %d names", ErrMalformedInput, len(in.Assets.Characters), len(in.Names))
	}

	if mode == ModeTransition {
		return selectTransition(in.Pools.Explicit), nil
	}

	style := ""
	if clip.ValidURL(in.Pools.Style) {
		style = strings.TrimSpace(in.Pools.Style)
	}
	limit := MaxImages
	if style != "" {
		limit--
	}

	st := newState(ModeStandard, limit, len(in.Names))
	st = claimLocation(st, in.Pools.Location)
	st = claimCharacters(st, in, s.linker)
	st = claimReferences(st, in.Pools.Explicit)
	st = claimStyle(st, style)
	return st.manifest(), nil
}

func selectTransition(explicit []string) Manifest {
	st := newState(ModeTransition, TransitionImages, 0)
	frames := []RoleKind{RoleStartFrame, RoleEndFrame}
	for i, u := range explicit {
		if len(st.selected) >= TransitionImages {
			break
		}
		if !clip.ValidURL(u) {
			continue
		}
		next, slot, added := st.add(strings.TrimSpace(u), Role{Kind: frames[len(st.selected)], Index: i}, st.limit)
		if !added {
			continue
		}
		next.slots.References = append(next.slots.References, slot)
		st = next
	}
	return st.manifest()
}

// State is threaded through the allocation steps. Every step returns a new
// value; the receiver is never modified.
type State struct {
	mode     Mode
	limit    int
	selected []string
	owners   []Role
	claimed  []string
	slots    Slots
}

func newState(mode Mode, limit, characters int) State {
	return State{
		mode:  mode,
		limit: limit,
		slots: Slots{Characters: make([]int, characters)},
	}
}

func (s State) clone() State {
	out := s
	out.selected = append([]string(nil), s.selected...)
	out.owners = append([]Role(nil), s.owners...)
	out.claimed = append([]string(nil), s.claimed...)
	out.slots.Characters = append([]int(nil), s.slots.Characters...)
	out.slots.References = append([]int(nil), s.slots.References...)
	return out
}

// Remaining is the capacity left for non-style roles.
func (s State) Remaining() int {
	if r := s.limit - len(s.selected); r > 0 {
		return r
	}
	return 0
}

// add selects u for role. A URL that is already selected yields its original
// slot with added=false. When the selection is at limit nothing changes and
// the slot is 0.
func (s State) add(u string, role Role, limit int) (State, int, bool) {
	if stringset.New(s.selected...).Contains(u) {
		for i, existing := range s.selected {
			if existing == u {
				return s, i + 1, false
			}
		}
	}
	if len(s.selected) >= limit || len(s.selected) >= MaxImages {
		return s, 0, false
	}

	next := s.clone()
	next.selected = append(next.selected, u)
	next.owners = append(next.owners, role)
	return next, len(next.selected), true
}

func (s State) manifest() Manifest {
	st := s.clone()
	return Manifest{
		Mode:         st.mode,
		SelectedURLs: st.selected,
		Slots:        st.slots,
		Owners:       st.owners,
	}
}

func claimLocation(s State, pool []string) State {
	if len(pool) == 0 || !clip.ValidURL(pool[0]) {
		return s
	}
	next, slot, _ := s.add(strings.TrimSpace(pool[0]), Role{Kind: RoleLocation}, s.limit)
	if slot == 0 {
		return s
	}
	next = next.clone()
	next.slots.Location = slot
	return next
}

func claimCharacters(s State, in Input, linker Linker) State {
	for i := range in.Names {
		s = claimCharacter(s, i, in, linker)
	}
	return s
}

func claimCharacter(s State, i int, in Input, linker Linker) State {
	role := Role{Kind: RoleCharacter, Index: i}

	if i < len(in.Pools.Characters) && clip.ValidURL(in.Pools.Characters[i]) {
		next, slot, _ := s.add(strings.TrimSpace(in.Pools.Characters[i]), role, s.limit)
		if slot == 0 {
			return s
		}
		next = next.clone()
		next.slots.Characters[i] = slot
		return next
	}

	asset := in.Assets.Character(i)
	if asset == nil || !clip.ValidURL(asset.ReferenceURL) {
		return s
	}

	claimed := stringset.New(s.claimed...)
	for _, candidate := range in.Pools.Explicit {
		candidate = strings.TrimSpace(candidate)
		if !clip.ValidURL(candidate) || claimed.Contains(candidate) {
			continue
		}
		if !linker(asset.ReferenceURL, candidate) {
			continue
		}
		next, slot, _ := s.add(candidate, role, s.limit)
		if slot == 0 {
			return s
		}
		next = next.clone()
		next.slots.Characters[i] = slot
		next.claimed = append(next.claimed, candidate)
		return next
	}
	return s
}

func claimReferences(s State, explicit []string) State {
	claimed := stringset.New(s.claimed...)
	for i, u := range explicit {
		u = strings.TrimSpace(u)
		if !clip.ValidURL(u) || claimed.Contains(u) {
			continue
		}
		next, slot, added := s.add(u, Role{Kind: RoleReference, Index: i}, s.limit)
		if !added {
			continue
		}
		next = next.clone()
		next.slots.References = append(next.slots.References, slot)
		s = next
	}
	return s
}

// claimStyle places the style image in the slot reserved when the limit was
// computed, so it can never be crowded out.
func claimStyle(s State, style string) State {
	if style == "" {
		return s
	}
	next, slot, _ := s.add(style, Role{Kind: RoleStyle}, s.limit+1)
	if slot == 0 {
		return s
	}
	next = next.clone()
	next.slots.Style = slot
	return next
}

// SubstringLinker matches when either URL, minus query and fragment, contains
// the other. Signed URLs that differ only in their query still match.
func SubstringLinker(reference, candidate string) bool {
	ref := normalizeForLink(reference)
	cand := normalizeForLink(candidate)
	if !clip.ValidURL(ref) || !clip.ValidURL(cand) {
		return false
	}
	return strings.Contains(cand, ref) || strings.Contains(ref, cand)
}

// ExactLinker matches identical URLs after the same normalization.
func ExactLinker(reference, candidate string) bool {
	ref := normalizeForLink(reference)
	return clip.ValidURL(ref) && ref == normalizeForLink(candidate)
}

func normalizeForLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		raw = u.String()
	}
	return strings.ToLower(raw)
}
