package frontmatter

import (
	"strings"
	"testing"
)

func TestSplit(t *testing.T) {
	block, body, ok := Split("---\ntitle: Hello\n---\nBody\n")
	if !ok {
		t.Fatal("expected frontmatter")
	}
	if block != "title: Hello\n" {
		t.Errorf("block = %q", block)
	}
	if body != "Body\n" {
		t.Errorf("body = %q", body)
	}
}

func TestSplit_Unclosed(t *testing.T) {
	_, body, ok := Split("---\ntitle: Hello\nBody\n")
	if ok {
		t.Fatal("unclosed block should not split")
	}
	if body != "---\ntitle: Hello\nBody\n" {
		t.Errorf("body = %q", body)
	}
}

func TestSplit_EmptyBlock(t *testing.T) {
	block, body, ok := Split("---\n---\nBody")
	if !ok || block != "" || body != "Body" {
		t.Errorf("got %q %q %v", block, body, ok)
	}
}

func TestParse_TypedAccessors(t *testing.T) {
	fm, body := Parse("---\nnoteId: abc\ncount: 3\nignore_sync: true\ntags:\n  - a\n  - b\n---\ntext")
	if body != "text" {
		t.Errorf("body = %q", body)
	}
	if id, ok := NoteID(fm); !ok || id != "abc" {
		t.Errorf("NoteID = %q %v", id, ok)
	}
	if b, ok := fm.Bool("ignore_sync"); !ok || !b {
		t.Errorf("ignore_sync = %v %v", b, ok)
	}
	if _, ok := fm.Bool("count"); ok {
		t.Error("number must not read as bool")
	}
	if s, ok := fm.Scalar("count"); !ok || s != "3" {
		t.Errorf("count scalar = %q", s)
	}
	if got := fm.Strings("tags"); len(got) != 2 || got[0] != "a" {
		t.Errorf("tags = %v", got)
	}
}

func TestParse_StringTrueIsNotBool(t *testing.T) {
	fm, _ := Parse("---\nignore_sync: \"true\"\n---\n")
	if _, ok := fm.Bool("ignore_sync"); ok {
		t.Error("quoted true must stay a string")
	}
}

func TestNoteID_Legacy(t *testing.T) {
	fm, _ := Parse("---\nsource_app_id: 12345\n---\n")
	if id, ok := NoteID(fm); !ok || id != "12345" {
		t.Errorf("legacy id = %q %v", id, ok)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	fm, body := Parse("---\n: : {{{\n---\nBody\n")
	if fm != nil {
		t.Errorf("expected nil frontmatter, got %v", fm)
	}
	if !strings.HasPrefix(body, "---") {
		t.Errorf("body should be the full text, got %q", body)
	}
}

func TestPatch_PreservesOrderAndBody(t *testing.T) {
	in := "---\nb: 1\na: two\n---\n# Heading\n"
	out, err := Patch(in, func(e *Editor) error {
		return e.Set("noteId", String("xyz"))
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	want := "---\nb: 1\na: two\nnoteId: xyz\n---\n# Heading\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestPatch_CreatesBlock(t *testing.T) {
	out, err := Patch("Body", func(e *Editor) error {
		return e.Set("noteId", String("abc123"))
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if out != "---\nnoteId: abc123\n---\nBody" {
		t.Errorf("got %q", out)
	}
}

func TestPatch_NodeCopyKeepsValue(t *testing.T) {
	src := "---\nrating: 5\nlist:\n  - x\n  - y\n---\nold"
	var kept []string
	dst := "---\ntitle: New\n---\nnew body"
	var out string
	_, err := Patch(src, func(e *Editor) error {
		for _, k := range []string{"rating", "list"} {
			if _, ok := e.Node(k); ok {
				kept = append(kept, k)
			}
		}
		var err error
		out, err = Patch(dst, func(d *Editor) error {
			for _, k := range kept {
				n, _ := e.Node(k)
				d.SetNode(k, n)
			}
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	fm, body := Parse(out)
	if body != "new body" {
		t.Errorf("body = %q", body)
	}
	if s, _ := fm.Scalar("rating"); s != "5" {
		t.Errorf("rating = %q", s)
	}
	if got := fm.Strings("list"); len(got) != 2 {
		t.Errorf("list = %v", got)
	}
	if s, _ := fm.String("title"); s != "New" {
		t.Errorf("title = %q", s)
	}
}

func TestPatch_DeleteLastKeyDropsBlock(t *testing.T) {
	out, err := Patch("---\nx: 1\n---\nBody", func(e *Editor) error {
		e.Delete("x")
		return nil
	})
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if out != "Body" {
		t.Errorf("got %q", out)
	}
}

func TestPatch_RejectsNonMapping(t *testing.T) {
	_, err := Patch("---\n- a\n- b\n---\nBody", func(e *Editor) error { return nil })
	if err == nil {
		t.Fatal("expected error for list frontmatter")
	}
}

func TestPreserved_RoundTrip(t *testing.T) {
	old := "---\nnoteId: n1\nrating: 5\nstatus: [draft, review]\n---\nold body"
	p, err := Collect(old, []string{"rating", "status", "missing"})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := p.Keys(); len(got) != 2 || got[0] != "rating" || got[1] != "status" {
		t.Fatalf("keys = %v", got)
	}

	out, err := p.Apply("---\nnoteId: n1\nrating: 1\n---\nnew body")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	before, _ := Parse(old)
	after, body := Parse(out)
	if body != "new body" {
		t.Errorf("body = %q", body)
	}
	for _, k := range []string{"rating", "status"} {
		b, _ := before[k].Scalar()
		a, _ := after[k].Scalar()
		if b != a {
			t.Errorf("%s: before %q after %q", k, b, a)
		}
	}
	if got := after.Strings("status"); len(got) != 2 || got[1] != "review" {
		t.Errorf("status = %v", got)
	}
}

func TestPreserved_NoFrontmatter(t *testing.T) {
	p, err := Collect("just text", []string{"rating"})
	if err != nil || p.Len() != 0 {
		t.Fatalf("Collect = %v, %v", p, err)
	}
	out, err := p.Apply("body")
	if err != nil || out != "body" {
		t.Errorf("Apply = %q, %v", out, err)
	}
}

func TestMalformed(t *testing.T) {
	cases := map[string]bool{
		"---\ntitle: Meeting: Q3 plan\n---\nBody": true,
		"---\ntitle: \"Meeting: Q3\"\n---\nBody":  false,
		"no frontmatter":                          false,
		"---\nunclosed: true\n":                   false,
	}
	for text, want := range cases {
		if got := Malformed(text); got != want {
			t.Errorf("Malformed(%q) = %v, want %v", text, got, want)
		}
	}
}
