package tocstruct

import "fmt"

const (
	TransformPromptKey = "tocstruct.transform"
	ContinuePromptKey  = "tocstruct.continue"
	GenerateInitPromptKey     = "tocstruct.generate_init"
	GenerateContinuePromptKey = "tocstruct.generate_continue"
	CompletenessPromptKey     = "tocstruct.completeness_check"
)

func buildTransformPrompt(tocText string) string {
	return fmt.Sprintf(`<task>
Transform this raw Table of Contents text into a flat, ordered JSON list.
Assign each entry a dotted decimal "structure" path reflecting its
hierarchy (e.g. "1", "1.1", "1.2", "2"), inferred from indentation and
numbering in the source text.
</task>

<toc_text>
%s
</toc_text>

<output_format>
Return ONLY a JSON array, no commentary:
[{"structure": "1", "title": "Introduction", "page": 15}, ...]

"page" is the printed page number as it appears in the text (may be a
roman numeral string or a plain integer), or null if absent.
</output_format>`, tocText)
}

func buildContinuePrompt() string {
	return `Continue the JSON array from exactly where it was cut off. Do not
repeat any entries already emitted. Return ONLY the remaining JSON array
elements needed to complete the array (you may emit them as a bare
comma-separated continuation or a new array; either is accepted).`
}

func buildCompletenessPrompt(partial string) string {
	return fmt.Sprintf(`<task>
Is the following JSON array output complete (properly closed, ending in a
final "]")? Answer "no" if it looks truncated mid-object or mid-array.
</task>

<output>
%s
</output>

<output_format>
Return ONLY this JSON object: {"complete": "yes" or "no"}
</output_format>`, partial)
}

func buildGenerateInitPrompt(windowText string) string {
	return fmt.Sprintf(`<task>
This document has no usable Table of Contents. Read the following page
window and propose a structure for it: a flat, ordered JSON list of
sections/chapters you can identify, each tagged with the physical page
index where it begins.
</task>

<pages>
%s
</pages>

<output_format>
Return ONLY a JSON array, no commentary:
[{"structure": "1", "title": "Introduction", "physical_index": "<physical_index_3>"}, ...]

physical_index MUST be one of the "<physical_index_N>" tags present in the
pages above.
</output_format>`, windowText)
}

func buildGenerateContinuePrompt(prevListJSON, windowText string) string {
	return fmt.Sprintf(`<task>
Continue structuring this document. Here is the structure found so far:

%s

Read the following NEW page window and append any further
sections/chapters you can identify, continuing the "structure" numbering
monotonically from where the prior list left off.
</task>

<pages>
%s
</pages>

<output_format>
Return ONLY a JSON array of the NEW entries found in this window (do not
repeat prior entries):
[{"structure": "3", "title": "Methods", "physical_index": "<physical_index_42>"}, ...]
</output_format>`, prevListJSON, windowText)
}
