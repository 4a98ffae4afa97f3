package tocjson

import (
	"encoding/json"
	"testing"
)

func TestValidateAgainst_TocItemsAcceptsValidList(t *testing.T) {
	raw := json.RawMessage(`[{"structure":"1","title":"Introduction","page":3}]`)
	if err := ValidateAgainst("toc_items", raw); err != nil {
		t.Fatalf("ValidateAgainst(toc_items) error = %v", err)
	}
}

func TestValidateAgainst_TocItemsRejectsMissingTitle(t *testing.T) {
	raw := json.RawMessage(`[{"structure":"1","page":3}]`)
	if err := ValidateAgainst("toc_items", raw); err == nil {
		t.Fatalf("ValidateAgainst(toc_items) expected error for missing title, got nil")
	}
}

func TestValidateAgainst_UnknownSchema(t *testing.T) {
	if err := ValidateAgainst("not_a_schema", json.RawMessage(`{}`)); err == nil {
		t.Fatalf("ValidateAgainst(unknown) expected error, got nil")
	}
}
