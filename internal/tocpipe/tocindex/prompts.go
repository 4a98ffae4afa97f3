package tocindex

import (
	"encoding/json"
	"fmt"
)

const (
	ExtractorPromptKey   = "tocindex.extractor"
	AddPageNumberPromptKey = "tocindex.add_page_number"
	SingleRepairPromptKey  = "tocindex.single_repair"
)

// extractorItem is the minimal shape sent to the LLM for offset-fusion
// window annotation: title plus the printed page it claims, if any.
type extractorItem struct {
	ListIndex int    `json:"list_index"`
	Title     string `json:"title"`
	Page      *int   `json:"page,omitempty"`
}

func buildExtractorPrompt(items []extractorItem, windowText string) string {
	itemsJSON, _ := json.Marshal(items)
	return fmt.Sprintf(`<task>
Here is a list of Table of Contents entries with their printed page
numbers:

%s

The following page window is tagged with "<physical_index_N>" markers.
For each entry above that actually begins somewhere in this window,
report its physical_index tag. Entries not found in this window should
be omitted.
</task>

<pages>
%s
</pages>

<output_format>
Return ONLY a JSON array, no commentary:
[{"list_index": 0, "physical_index": "<physical_index_N>"}, ...]
</output_format>`, string(itemsJSON), windowText)
}

func buildAddPageNumberPrompt(pendingTitles []string, windowText string) string {
	titlesJSON, _ := json.Marshal(pendingTitles)
	return fmt.Sprintf(`<task>
Here are section titles still awaiting a location:

%s

The following page window is tagged with "<physical_index_N>" markers.
For each title that STARTS somewhere in this window, report its
physical_index tag. Omit titles that do not start in this window.
</task>

<pages>
%s
</pages>

<output_format>
Return ONLY a JSON array, no commentary:
[{"title": "Introduction", "physical_index": "<physical_index_N>"}, ...]
</output_format>`, string(titlesJSON), windowText)
}

func buildSingleRepairPrompt(title, windowText string) string {
	return fmt.Sprintf(`<task>
Where does the section titled %q start? The following page window is
tagged with "<physical_index_N>" markers.
</task>

<pages>
%s
</pages>

<output_format>
Return ONLY this JSON object, no commentary:
{"physical_index": "<physical_index_N>"}

If the title cannot be located in this window, return:
{"physical_index": null}
</output_format>`, title, windowText)
}
