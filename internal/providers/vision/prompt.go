package vision

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// ComposeVideoPrompt deterministically builds the video-generation prompt
// from the product name and visual description. Same inputs always yield the
// same prompt; the style directives (rotation, lighting, background,
// duration) are fixed.
func ComposeVideoPrompt(productName, description string) string {
	name := strings.TrimSpace(productName)
	if name != "" && name == strings.ToLower(name) {
		name = titleCaser.String(name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A professional 360-degree product showcase video of %s. ", name)
	if d := strings.TrimSpace(description); d != "" {
		b.WriteString(d)
		if !strings.HasSuffix(d, ".") {
			b.WriteString(".")
		}
		b.WriteString(" ")
	}
	b.WriteString("The product rotates smoothly on a turntable through a full 360-degree turn, ")
	b.WriteString("centered in frame with soft studio lighting, a clean seamless background, ")
	b.WriteString("no camera movement, photorealistic detail, 8 seconds.")
	return b.String()
}
