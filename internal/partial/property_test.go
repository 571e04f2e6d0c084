package partial

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

// Splicing references must give the same value as decoding the document
// with the partial values written in place.
func TestProperty_ParseMatchesInlinedDocument(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 6).Draw(rt, "count")
		values := make([]int, count)
		e := New()
		for i := range values {
			values[i] = rapid.IntRange(-1000, 1000).Draw(rt, fmt.Sprintf("value%d", i))
			if err := e.AddPartial(fmt.Sprintf("p%d", i), fmt.Sprintf(`{"n": %d}`, values[i])); err != nil {
				rt.Fatalf("add partial: %v", err)
			}
		}

		picks := rapid.SliceOfN(rapid.IntRange(0, count-1), 0, 10).Draw(rt, "picks")
		refs := make([]string, len(picks))
		inline := make([]string, len(picks))
		for i, p := range picks {
			refs[i] = fmt.Sprintf("<p%d>", p)
			inline[i] = fmt.Sprintf(`{"n": %d}`, values[p])
		}

		got, err := e.Parse("["+strings.Join(refs, ", ")+"]", nil)
		if err != nil {
			rt.Fatalf("parse: %v", err)
		}
		var want any
		if err := json.Unmarshal([]byte("["+strings.Join(inline, ", ")+"]"), &want); err != nil {
			rt.Fatalf("unmarshal: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			rt.Fatalf("parse mismatch (-want +got):\n%s", diff)
		}
	})
}

// A dependent always observes the latest source of its direct dependency.
func TestProperty_DirectDependentSeesUpdates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e := New()
		if err := e.AddPartial("leaf", `0`); err != nil {
			rt.Fatalf("add leaf: %v", err)
		}
		if err := e.AddPartial("doc", `{"leaf": <leaf>}`); err != nil {
			rt.Fatalf("add doc: %v", err)
		}
		leaf, _, _ := e.Get("leaf")
		doc, _, _ := e.Get("doc")

		updates := rapid.SliceOfN(rapid.IntRange(0, 50), 1, 8).Draw(rt, "updates")
		for _, n := range updates {
			if err := leaf.SetSource(fmt.Sprint(n)); err != nil {
				rt.Fatalf("set source: %v", err)
			}
			got, err := doc.Value()
			if err != nil {
				rt.Fatalf("value: %v", err)
			}
			want := map[string]any{"leaf": float64(n)}
			if diff := cmp.Diff(want, got); diff != "" {
				rt.Fatalf("stale render (-want +got):\n%s", diff)
			}
		}
	})
}

// Rendering is deterministic: repeated reads return equal values without
// touching the registry again.
func TestProperty_RenderIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 100).Draw(rt, "n")
		resolver := newCountingResolver(map[string]*Fragment{
			"a": NewFragment(fmt.Sprint(n)),
		})
		f := NewFragment(`[<a>, <a>]`, WithResolver(resolver))

		first, err := f.Value()
		if err != nil {
			rt.Fatalf("value: %v", err)
		}
		reads := rapid.IntRange(1, 5).Draw(rt, "reads")
		for range reads {
			again, err := f.Value()
			if err != nil {
				rt.Fatalf("value: %v", err)
			}
			if diff := cmp.Diff(first, again); diff != "" {
				rt.Fatalf("render changed (-first +again):\n%s", diff)
			}
		}
		if resolver.lookups["a"] != 2 {
			rt.Fatalf("lookups = %d, want 2", resolver.lookups["a"])
		}
	})
}
