package smoke

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var inputTypes = []string{"", "text", "number", "email", "hidden", "submit", "button", "checkbox", "radio", "HIDDEN", " Radio "}

func testSampleValueFor_Positional(t *rapid.T) {
	idx := rapid.IntRange(-2, 12).Draw(t, "idx")
	typ := rapid.SampledFrom(inputTypes).Draw(t, "type")

	value, ok := sampleValueFor(idx, typ)

	skipType := false
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "hidden", "submit", "button", "checkbox", "radio":
		skipType = true
	}
	wantOK := idx >= 0 && idx < maxFilledInputs && !skipType
	if ok != wantOK {
		t.Fatalf("sampleValueFor(%d, %q) ok = %v, want %v", idx, typ, ok, wantOK)
	}
	if ok && value != sampleValues[idx] {
		t.Fatalf("sampleValueFor(%d, %q) = %q, want %q", idx, typ, value, sampleValues[idx])
	}
	if !ok && value != "" {
		t.Fatalf("skipped field got value %q", value)
	}
}

func TestSampleValueFor_Positional(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSampleValueFor_Positional)
}

func TestAPISignal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		source string
		want   string
		ok     bool
	}{
		{name: "json body", source: `<pre>[{"id":1}]</pre>`, want: "{", ok: true},
		{name: "word is case insensitive", source: "<h1>INVENTORY service</h1>", want: "inventory", ok: true},
		{name: "api docs", source: "<title>Swagger API</title>", want: "api", ok: true},
		{name: "inventory wins over brace", source: `{"inventory":[]}`, want: "inventory", ok: true},
		{name: "express 404", source: "<pre>Cannot GET /x</pre>", ok: false},
		{name: "empty", source: "", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := apiSignal(tc.source)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestLinkedSections(t *testing.T) {
	t.Parallel()
	links := []navLink{
		{Text: "Home", Href: "/dashboard"},
		{Text: "Stock Items", Href: "/stock"},
		{Text: "Settings", Href: "/account"},
		{Text: "Docs", Href: "https://example.com"},
	}
	require.Equal(t, []string{"dashboard", "items", "settings"}, linkedSections(links))
	require.Empty(t, linkedSections(nil))
}
