package schema

import (
	"fmt"
	"strings"
)

// Dense is the highest fidelity structured image schema. Besides the setup
// listing it tags character names inside the action prose with their image.
type Dense struct{}

func (Dense) Name() string { return "dense" }

func (Dense) Format(in Input) (string, error) {
	style := resolveStyle(in)
	pct := StylePercent(in.StyleStrength)

	var b strings.Builder
	b.Grow(2048)

	if style.slot > 0 {
		b.WriteString(fmt.Sprintf("[SYSTEM: PRIORITY RULE: Image %d is the STYLE REFERENCE ONLY. Apply its style at %d%% strength to the entire output. IGNORE the subject, characters and composition of Image %d.]\n\n",
			style.slot, pct, style.slot))
	}

	if style.active() {
		b.WriteString("STYLE:\n")
		if style.slot > 0 {
			b.WriteString(fmt.Sprintf("Style reference: Image %d (%d%% strength).\n", style.slot, pct))
			b.WriteString(fmt.Sprintf("[INSTRUCTION: From Image %d transfer the facial style and proportions, the artistic interpretation, the material properties and textures, the lighting response, and the fidelity and rendering quality. Do NOT transfer its subject or layout.]\n", style.slot))
			if style.name != "" {
				b.WriteString(assetLine("STYLE ASSET", style.name, "", style.desc) + "\n")
				writeNegatives(&b, style.negatives)
			}
		} else {
			b.WriteString(fmt.Sprintf("Strength: %d%%.\n", pct))
			if style.name != "" {
				b.WriteString(assetLine("STYLE", style.name, "", style.desc) + "\n")
			}
			writeNegatives(&b, style.negatives)
		}
		b.WriteString("\n")
	}

	writeSetup(&b, in, func(slot int) string {
		return fmt.Sprintf("ESSENTIAL: IMAGE %d:", slot)
	})

	tags := make([]NameTag, 0, len(in.Manifest.Slots.Characters))
	for i, name := range in.Clip.CharacterNames() {
		if slot := in.Manifest.CharacterSlot(i); slot > 0 {
			tags = append(tags, NameTag{Name: name, Slot: slot})
		}
	}
	writeAction(&b, in.Clip, func(s string) string { return TagNames(s, tags) })

	if style.active() {
		if style.slot > 0 {
			b.WriteString(fmt.Sprintf("[RENDER: Render the final image strictly in the style of Image %d while keeping every character identity from its own reference.]", style.slot))
		} else {
			b.WriteString("[RENDER: Render the final image strictly in the STYLE above.]")
		}
	}

	return finish(&b)
}
