package pdfload

import "testing"

func TestDecodeContentStreamText_Tj(t *testing.T) {
	stream := `BT /F1 12 Tf (Hello World) Tj ET`
	got := decodeContentStreamText(stream)
	if got != "Hello World" {
		t.Fatalf("decodeContentStreamText() = %q, want %q", got, "Hello World")
	}
}

func TestDecodeContentStreamText_TJArray(t *testing.T) {
	stream := `BT /F1 12 Tf [(Hello)-250(World)] TJ ET`
	got := decodeContentStreamText(stream)
	if got != "HelloWorld" {
		t.Fatalf("decodeContentStreamText() = %q, want %q", got, "HelloWorld")
	}
}

func TestDecodeContentStreamText_MultipleOperators(t *testing.T) {
	stream := `BT (First line) Tj ET BT (Second line) Tj ET`
	got := decodeContentStreamText(stream)
	if got != "First line Second line" {
		t.Fatalf("decodeContentStreamText() = %q, want %q", got, "First line Second line")
	}
}

func TestDecodeContentStreamText_Empty(t *testing.T) {
	if got := decodeContentStreamText("BT ET"); got != "" {
		t.Fatalf("decodeContentStreamText(empty) = %q, want empty", got)
	}
}

func TestUnescapePDFString_Escapes(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`Hello\nWorld`, "Hello\nWorld"},
		{`Quote: \(escaped\)`, "Quote: (escaped)"},
		{`Tab\there`, "Tab\there"},
		{`Back\\slash`, `Back\slash`},
	}
	for _, tc := range cases {
		if got := unescapePDFString(tc.in); got != tc.want {
			t.Errorf("unescapePDFString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUnescapePDFString_OctalEscape(t *testing.T) {
	// \101 is octal for 'A'.
	got := unescapePDFString(`\101\102\103`)
	if got != "ABC" {
		t.Fatalf("unescapePDFString(octal) = %q, want %q", got, "ABC")
	}
}

func TestSortByPageNumber_DoesNotMutateInput(t *testing.T) {
	in := []string{"book_3.pdf", "book_1.pdf", "book_2.pdf"}
	out := SortByPageNumber(in)

	if in[0] != "book_3.pdf" {
		t.Fatalf("SortByPageNumber mutated its input slice")
	}
	want := []string{"book_1.pdf", "book_2.pdf", "book_3.pdf"}
	for i, w := range want {
		if out[i] != w {
			t.Fatalf("out[%d] = %q, want %q", i, out[i], w)
		}
	}
}
