package schema

import (
	"fmt"
	"strings"
)

// Standard is the structured multi-reference video schema.
type Standard struct{}

func (Standard) Name() string { return "standard" }

func (Standard) Format(in Input) (string, error) {
	style := resolveStyle(in)
	pct := StylePercent(in.StyleStrength)

	var b strings.Builder
	b.Grow(1024)

	if style.active() {
		if style.slot > 0 {
			b.WriteString(fmt.Sprintf("[STYLE PRIORITY] Image %d defines the STYLE (apply at %d%% strength): match its palette, lighting, rendering and texture. IGNORE the subject of Image %d.\n",
				style.slot, pct, style.slot))
		} else {
			b.WriteString(fmt.Sprintf("[STYLE PRIORITY] Apply the STYLE below at %d%% strength.\n", pct))
		}
		if style.name != "" {
			b.WriteString(assetLine("STYLE", style.name, "", style.desc) + "\n")
		}
		writeNegatives(&b, style.negatives)
		b.WriteString("\n")
	}

	writeSetup(&b, in, imageTag)
	writeAction(&b, in.Clip, nil)

	if style.active() {
		if style.slot > 0 {
			b.WriteString(fmt.Sprintf("Render with strict adherence to the style reference (Image %d).", style.slot))
		} else {
			b.WriteString("Render with strict adherence to the STYLE above.")
		}
	}

	return finish(&b)
}
