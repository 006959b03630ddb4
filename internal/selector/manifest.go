package selector

import (
	"fmt"
)

// Mode picks the selection algorithm.
type Mode int

const (
	ModeStandard Mode = iota
	ModeTransition
)

func (m Mode) String() string {
	if m == ModeTransition {
		return "transition"
	}
	return "standard"
}

const (
	MaxImages        = 3
	TransitionImages = 2
)

type RoleKind int

const (
	RoleLocation RoleKind = iota + 1
	RoleCharacter
	RoleReference
	RoleStyle
	RoleStartFrame
	RoleEndFrame
)

// Role is the logical claimant of a slot. Index is the character or
// explicit-image position for the roles that have one.
type Role struct {
	Kind  RoleKind
	Index int
}

func (r Role) String() string {
	switch r.Kind {
	case RoleLocation:
		return "location"
	case RoleCharacter:
		return fmt.Sprintf("character[%d]", r.Index)
	case RoleReference:
		return fmt.Sprintf("reference[%d]", r.Index)
	case RoleStyle:
		return "style"
	case RoleStartFrame:
		return "start_frame"
	case RoleEndFrame:
		return "end_frame"
	default:
		return "unknown"
	}
}

// Slots hold 1-based slot numbers; 0 means the role has no image.
type Slots struct {
	Location   int   `json:"location"`
	Characters []int `json:"characters"`
	Style      int   `json:"style"`
	References []int `json:"references"`
}

// Manifest is the selector output shared by every schema.
// SelectedURLs[i] is referenced in prompt text as slot i+1 and Owners[i] is
// the role that first claimed it.
type Manifest struct {
	Mode         Mode     `json:"-"`
	SelectedURLs []string `json:"selected_urls"`
	Slots        Slots    `json:"slots"`
	Owners       []Role   `json:"-"`
}

// CharacterSlot returns the slot of the i-th character, or 0.
func (m Manifest) CharacterSlot(i int) int {
	if i < 0 || i >= len(m.Slots.Characters) {
		return 0
	}
	return m.Slots.Characters[i]
}

// MaxSlot is the highest slot number any role points at.
func (m Manifest) MaxSlot() int {
	max := m.Slots.Location
	for _, s := range append(append([]int{m.Slots.Style}, m.Slots.Characters...), m.Slots.References...) {
		if s > max {
			max = s
		}
	}
	return max
}

// Validate checks that the primary claims partition 1..len(SelectedURLs).
func (m Manifest) Validate() error {
	n := len(m.SelectedURLs)
	if n > MaxImages {
		return fmt.Errorf("%d images selected, max is %d", n, MaxImages)
	}
	if len(m.Owners) != n {
		return fmt.Errorf("%d owners for %d images", len(m.Owners), n)
	}
	if max := m.MaxSlot(); max > n {
		return fmt.Errorf("slot %d referenced but only %d images selected", max, n)
	}

	seenRefs := make(map[int]struct{}, len(m.Slots.References))
	for _, s := range m.Slots.References {
		if s <= 0 {
			return fmt.Errorf("reference slot %d out of range", s)
		}
		if _, dup := seenRefs[s]; dup {
			return fmt.Errorf("reference slot %d listed twice", s)
		}
		seenRefs[s] = struct{}{}
	}

	for i, owner := range m.Owners {
		slot := i + 1
		if got := m.slotOf(owner); got != slot {
			return fmt.Errorf("slot %d owned by %s but role points at %d", slot, owner, got)
		}
	}
	return nil
}

func (m Manifest) slotOf(r Role) int {
	switch r.Kind {
	case RoleLocation:
		return m.Slots.Location
	case RoleCharacter:
		return m.CharacterSlot(r.Index)
	case RoleStyle:
		return m.Slots.Style
	case RoleReference, RoleStartFrame, RoleEndFrame:
		for _, s := range m.Slots.References {
			if s > 0 && s <= len(m.Owners) && m.Owners[s-1] == r {
				return s
			}
		}
	}
	return 0
}
