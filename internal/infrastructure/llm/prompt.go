package llm

import (
	"fmt"
	"strings"

	"BlogEnricher/internal/domain"
	"BlogEnricher/internal/extract"
)

const noReference = "No reference available"

// referenceSlots is how many reference sections every prompt carries.
const referenceSlots = 2

// BuildPrompt renders the rewrite instruction with the original truncated to
// originalLimit runes and each reference to refLimit runes.
func BuildPrompt(title, original string, refs []domain.Reference, originalLimit, refLimit int) string {
	var b strings.Builder
	b.WriteString("You are an expert content writer. Rewrite the following article to make it more engaging and informative.\n")
	b.WriteString("Use the reference articles to enhance the content with additional insights, but maintain the original article's core message.\n")
	b.WriteString("Match the professional tone and formatting style of the reference articles.\n")
	b.WriteString("Make the content comprehensive yet easy to read.\n\n")

	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&b, "TITLE:\n%s\n\n", title)
	}
	fmt.Fprintf(&b, "ORIGINAL ARTICLE:\n%s\n\n", extract.Truncate(original, originalLimit))

	for i := 0; i < referenceSlots; i++ {
		text := noReference
		if i < len(refs) && strings.TrimSpace(refs[i].Text) != "" {
			text = extract.Truncate(refs[i].Text, refLimit)
		}
		fmt.Fprintf(&b, "REFERENCE ARTICLE %d:\n%s\n\n", i+1, text)
	}

	b.WriteString("Please rewrite the article now. Output ONLY the rewritten article content, no explanations.")
	return b.String()
}
