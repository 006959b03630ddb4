package schema

import (
	"strings"
)

// Transition is the start/end frame video schema. It only knows the two
// fixed frame slots.
type Transition struct{}

func (Transition) Name() string { return "transition" }

func (Transition) Format(in Input) (string, error) {
	var b strings.Builder

	switch n := len(in.Manifest.SelectedURLs); {
	case n >= 2:
		b.WriteString("Transitions from Start Frame (Image 1) to End Frame (Image 2). Keep identity, lighting and framing continuous between the two frames.\n\n")
	case n == 1:
		b.WriteString("Starts from Start Frame (Image 1) and evolves naturally from it.\n\n")
	}

	action := strings.TrimSpace(in.Clip.Action)
	if action == "" {
		action = in.Clip.Subject()
	}
	if action != "" {
		b.WriteString("ACTION: " + sentence(action) + "\n")
	}
	if dialog := strings.TrimSpace(in.Clip.Dialog); dialog != "" && dialog != action {
		b.WriteString("Dialog: \"" + strings.Trim(dialog, "\"") + "\"\n")
	}
	writeNegatives(&b, in.Clip.NegativePrompt)

	return finish(&b)
}
