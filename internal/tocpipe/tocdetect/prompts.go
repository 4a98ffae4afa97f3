package tocdetect

import "fmt"

// PageCheckPromptKey and ModeCheckPromptKey tag calls for logging and
// recorder attribution, matching the PromptKey convention used throughout
// the pipeline.
const (
	PageCheckPromptKey = "toc_detect.page_check"
	ModeCheckPromptKey = "toc_detect.mode_check"
)

// buildPageCheckPrompt asks whether a single page is a table of contents.
func buildPageCheckPrompt(pageText string) string {
	return fmt.Sprintf(`<task>
Is the following page a Table of Contents page?

A Table of Contents lists section/chapter titles with their locations. It is
NOT an abstract, a list of figures, a list of tables, or a notation/symbol
glossary.
</task>

<page>
%s
</page>

<output_format>
Return ONLY this JSON object, no commentary:
{"is_toc": "yes" or "no"}
</output_format>`, pageText)
}

// buildModeCheckPrompt asks whether the concatenated, dot-collapsed TOC
// text carries printed page numbers.
func buildModeCheckPrompt(tocContent string) string {
	return fmt.Sprintf(`<task>
Does the following Table of Contents text include printed page numbers next
to its entries (e.g. "Introduction ... 15")?
</task>

<toc_content>
%s
</toc_content>

<output_format>
Return ONLY this JSON object, no commentary:
{"page_index_given_in_toc": "yes" or "no"}
</output_format>`, tocContent)
}
