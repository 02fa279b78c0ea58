package extract

import (
	"fmt"
	"strings"

	"github.com/adalundhe/prism/core/token"
)

var categoryGuidance = map[token.Category]string{
	token.CategoryColor:      "solid colors used for backgrounds, text, borders, and accents",
	token.CategorySpacing:    "spacing and sizing measurements between and inside elements",
	token.CategoryTypography: "font families, sizes, weights, and line heights",
	token.CategoryShadow:     "box shadows with offsets, blur, and color",
	token.CategoryGradient:   "gradients with their stops and direction",
	token.CategoryRadius:     "corner radius measurements",
}

// buildPrompt renders the extraction instruction for the requested
// categories.
func buildPrompt(categories []token.Category) string {
	var b strings.Builder
	b.WriteString("Analyze this user interface screenshot and extract its design tokens.\n")
	b.WriteString("Report every distinct value you observe for the following categories:\n")

	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %s\n", c, categoryGuidance[c])
	}

	b.WriteString("\nReport results only through the record_design_tokens tool. ")
	b.WriteString("Give each candidate a confidence between 0 and 1 reflecting how certain ")
	b.WriteString("you are of the exact value, and a pixel bounding box when you can locate it.")
	return b.String()
}
