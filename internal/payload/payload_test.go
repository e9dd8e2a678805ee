package payload

import (
	"strings"
	"testing"
)

func TestDecodePreservesOrderAndNumbers(t *testing.T) {
	src := `{"zeta": 1, "alpha": {"b": 2.50, "a": true}, "list": [null, "x", 1e3]}`
	v, err := DecodeBytes([]byte(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"zeta":1,"alpha":{"b":2.50,"a":true},"list":[null,"x",1e3]}`
	if string(out) != want {
		t.Fatalf("re-encode mismatch:\n got %s\nwant %s", out, want)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	if _, err := DecodeBytes([]byte(`{"a": 1} {"b": 2}`)); err == nil {
		t.Fatal("expected error for trailing document")
	}
	if _, err := DecodeBytes([]byte(`{`)); err == nil {
		t.Fatal("expected error for truncated document")
	}
}

func TestScanReportsFirstMatchingPath(t *testing.T) {
	src := `{
		"name": "ok",
		"profile": {"bio": "clean", "links": ["a", "BAD", "BAD"]},
		"notes": "BAD"
	}`
	v, err := DecodeBytes([]byte(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	path, found := Scan(v, "", func(s string) bool { return s == "BAD" })
	if !found {
		t.Fatal("expected a match")
	}
	// Document order: the array element comes before the later top-level key.
	if path != "profile.links[1]" {
		t.Fatalf("path = %q, want profile.links[1]", path)
	}
}

func TestScanIgnoresNonStringLeaves(t *testing.T) {
	v, err := DecodeBytes([]byte(`{"n": 42, "b": true, "x": null}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, found := Scan(v, "", func(string) bool { return true }); found {
		t.Fatal("non-string leaves must never be flagged")
	}
}

func TestTransformVisitsEveryStringLeaf(t *testing.T) {
	src := `{"a": "x", "nested": {"b": ["y", 1]}, "keep": 7}`
	v, err := DecodeBytes([]byte(src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := Transform(v, strings.ToUpper).MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"a":"X","nested":{"b":["Y",1]},"keep":7}`
	if string(out) != want {
		t.Fatalf("transform mismatch:\n got %s\nwant %s", out, want)
	}
}

func TestLookupTopLevelString(t *testing.T) {
	v, err := DecodeBytes([]byte(`{"csrf_token": "abc", "nested": {"csrf_token": "inner"}, "n": 1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := v.Lookup("csrf_token")
	if !ok || got != "abc" {
		t.Fatalf("Lookup = %q, %v", got, ok)
	}
	if _, ok := v.Lookup("n"); ok {
		t.Fatal("non-string member must not resolve")
	}
	if _, ok := v.Lookup("missing"); ok {
		t.Fatal("missing member must not resolve")
	}
	if _, ok := String("x").Lookup("k"); ok {
		t.Fatal("lookup on a non-object must not resolve")
	}
}
