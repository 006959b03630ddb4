package schema

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"episode-studio/internal/clip"
	"episode-studio/internal/models"
	"episode-studio/internal/selector"
)

var ErrEmptyPrompt = errors.New("schema rendered an empty prompt")

const DefaultStyleStrength = 5

// Input is shared by every schema so the image list and the slot numbers in
// the text always come from the same manifest.
type Input struct {
	Clip          clip.Descriptor
	Assets        clip.Assets
	Manifest      selector.Manifest
	StyleStrength int
}

type Schema interface {
	Name() string
	Format(in Input) (string, error)
}

// For returns the schema for a model family.
func For(f models.Family) (Schema, error) {
	switch f {
	case models.StandardVideo:
		return Standard{}, nil
	case models.TransitionVideo:
		return Transition{}, nil
	case models.FlatImage:
		return Legacy{}, nil
	case models.DenseImage:
		return Dense{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", models.ErrUnknownFamily, int(f))
	}
}

// NormalizeStrength clamps a 1-10 style strength; 0 means the default.
func NormalizeStrength(s int) int {
	switch {
	case s == 0:
		return DefaultStyleStrength
	case s < 1:
		return 1
	case s > 10:
		return 10
	default:
		return s
	}
}

// StylePercent maps strength 1..10 linearly onto 100..200 percent.
func StylePercent(strength int) int {
	s := NormalizeStrength(strength)
	return int(math.Round(100 + float64(s-1)*100/9))
}

type styleInfo struct {
	name      string
	desc      string
	negatives string
	slot      int
}

func (s styleInfo) active() bool {
	return s.slot > 0 || s.name != "" || s.desc != ""
}

func resolveStyle(in Input) styleInfo {
	info := styleInfo{
		name: strings.TrimSpace(in.Clip.Style),
		slot: in.Manifest.Slots.Style,
	}
	if a := in.Assets.Style; a != nil {
		if n := strings.TrimSpace(a.Name); n != "" {
			info.name = n
		}
		info.desc = strings.TrimSpace(a.Description)
		info.negatives = strings.TrimSpace(a.Negatives)
	}
	return info
}

// assetLine renders "LABEL: Name: TAG description" dropping absent parts.
func assetLine(label, name, tag, desc string) string {
	line := label + ": " + name + ":"
	if tag != "" {
		line += " " + tag
	}
	if desc = strings.TrimSpace(desc); desc != "" {
		line += " " + sentence(desc)
	}
	if tag == "" && desc == "" {
		line = strings.TrimSuffix(line, ":")
	}
	return line
}

func writeNegatives(b *strings.Builder, negatives string) {
	if negatives = strings.TrimSpace(negatives); negatives != "" {
		b.WriteString("NO: " + negatives + "\n")
	}
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	switch s[len(s)-1] {
	case '.', '!', '?', '"', ')':
		return s
	}
	return s + "."
}

func imageTag(slot int) string {
	if slot <= 0 {
		return ""
	}
	return fmt.Sprintf("IMAGE %d:", slot)
}

func locationName(in Input) string {
	if a := in.Assets.Location; a != nil && strings.TrimSpace(a.Name) != "" {
		return strings.TrimSpace(a.Name)
	}
	return strings.TrimSpace(in.Clip.Location)
}

func description(a *clip.AssetRecord) (string, string) {
	if a == nil {
		return "", ""
	}
	return strings.TrimSpace(a.Description), strings.TrimSpace(a.Negatives)
}

// writeSetup renders the SETUP / REFERENCE block. characterTag formats the
// tag for a claimed character slot.
func writeSetup(b *strings.Builder, in Input, characterTag func(slot int) string) {
	var body strings.Builder

	if camera := strings.TrimSpace(in.Clip.Camera); camera != "" || in.Assets.Camera != nil {
		desc, neg := description(in.Assets.Camera)
		if camera == "" {
			camera = strings.TrimSpace(in.Assets.Camera.Name)
		}
		body.WriteString(assetLine("CAMERA", camera, "", desc) + "\n")
		writeNegatives(&body, neg)
	}

	if name := locationName(in); name != "" || in.Manifest.Slots.Location > 0 {
		if name == "" {
			name = "Location"
		}
		desc, neg := description(in.Assets.Location)
		body.WriteString(assetLine("LOCATION", name, imageTag(in.Manifest.Slots.Location), desc) + "\n")
		writeNegatives(&body, neg)
	}

	for i, name := range in.Clip.CharacterNames() {
		desc, neg := description(in.Assets.Character(i))
		tag := ""
		if slot := in.Manifest.CharacterSlot(i); slot > 0 {
			tag = characterTag(slot)
		}
		body.WriteString(assetLine("CHARACTER", name, tag, desc) + "\n")
		writeNegatives(&body, neg)
	}

	for n, slot := range in.Manifest.Slots.References {
		body.WriteString(fmt.Sprintf("REF IMAGE %d: IMAGE %d: [Additional Reference].\n", n+1, slot))
	}

	if body.Len() == 0 {
		return
	}
	b.WriteString("SETUP / REFERENCE:\n")
	b.WriteString(body.String())
	b.WriteString("\n")
}

// writeAction renders the ACTION block; rewrite is applied to the action and
// dialog text before writing.
func writeAction(b *strings.Builder, c clip.Descriptor, rewrite func(string) string) {
	action := strings.TrimSpace(c.Action)
	dialog := strings.TrimSpace(c.Dialog)
	negatives := strings.TrimSpace(c.NegativePrompt)
	if action == "" && dialog == "" && negatives == "" {
		return
	}
	if rewrite == nil {
		rewrite = func(s string) string { return s }
	}

	b.WriteString("ACTION:\n")
	if action != "" {
		b.WriteString(sentence(rewrite(action)) + "\n")
	}
	if dialog != "" {
		b.WriteString("Dialog: \"" + strings.Trim(rewrite(dialog), "\"") + "\"\n")
	}
	writeNegatives(b, negatives)
	b.WriteString("\n")
}

func finish(b *strings.Builder) (string, error) {
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyPrompt
	}
	return out, nil
}
