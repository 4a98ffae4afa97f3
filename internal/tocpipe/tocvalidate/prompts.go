package tocvalidate

import "fmt"

const (
	AppearancePromptKey      = "tocvalidate.appearance"
	AppearAtStartPromptKey   = "tocvalidate.appear_at_start"
)

func buildAppearancePrompt(title, pageText string) string {
	return fmt.Sprintf(`<task>
Does the section titled %q appear or begin on the following page? Match
loosely: ignore whitespace, punctuation, and minor OCR noise.
</task>

<page>
%s
</page>

<output_format>
Return ONLY this JSON object, no commentary:
{"answer": "yes" or "no"}
</output_format>`, title, pageText)
}

func buildAppearAtStartPrompt(title, pageText string) string {
	return fmt.Sprintf(`<task>
Is the section titled %q the very FIRST content on the following page
(as opposed to appearing partway down the page, after other content)?
</task>

<page>
%s
</page>

<output_format>
Return ONLY this JSON object, no commentary:
{"answer": "yes" or "no"}
</output_format>`, title, pageText)
}
