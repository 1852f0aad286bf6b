package reconcile

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/frontmatter"
	"github.com/starford/dinosync/internal/identity"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/pathing"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/testutil"
	"github.com/starford/dinosync/internal/vault"
)

type fixture struct {
	store vault.Provider
	rec   *Reconciler
	ids   map[string]string
	s     settings.Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, store := testutil.TestVault(t)
	cache := vault.NewCache(store)
	logger := testutil.Logger()
	s := settings.Defaults()
	s.SyncDir = "Sync"
	s.Layout = settings.LayoutFlat
	return &fixture{
		store: store,
		rec:   New(store, cache, pathing.NewResolver(store, cache, logger), logger),
		ids:   map[string]string{},
		s:     s,
	}
}

func (f *fixture) apply(t *testing.T, note models.RemoteNote) Outcome {
	t.Helper()
	out, err := f.rec.Apply(note, "2024-05-01", f.ids, identity.Index{}, f.s)
	if err != nil {
		t.Fatalf("Apply(%s): %v", note.NoteID, err)
	}
	return out
}

func TestApply_CreateScenario(t *testing.T) {
	f := newFixture(t)
	out := f.apply(t, models.RemoteNote{NoteID: "abc123", Title: "Hello", Content: "Body"})

	if out.Kind != Created || out.Path != "Sync/abc123.md" {
		t.Fatalf("outcome = %+v", out)
	}
	got := testutil.ReadNote(t, f.store, "Sync/abc123.md")
	if got != "---\nnoteId: abc123\n---\nBody" {
		t.Errorf("content = %q", got)
	}
	if f.ids["abc123"] != "Sync/abc123.md" {
		t.Errorf("ids = %v", f.ids)
	}
	if out.Title != "Hello" || out.Preview != "Body" {
		t.Errorf("title/preview = %q %q", out.Title, out.Preview)
	}
}

func TestApply_DeleteScenario(t *testing.T) {
	f := newFixture(t)
	note := models.RemoteNote{NoteID: "abc123", Title: "Hello", Content: "Body"}
	f.apply(t, note)

	note.IsDel = true
	out := f.apply(t, note)
	if out.Kind != Deleted || out.Path != "Sync/abc123.md" {
		t.Fatalf("outcome = %+v", out)
	}
	if vault.IsFile(f.store, "Sync/abc123.md") {
		t.Error("file should be gone")
	}
	if !vault.IsFile(f.store, vault.TrashDir+"/abc123.md") {
		t.Error("file should be in trash")
	}
	if _, ok := f.ids["abc123"]; ok {
		t.Error("mapping should be dropped")
	}

	out = f.apply(t, note)
	if out.Kind != SkippedMissing {
		t.Errorf("second delete = %v", out.Kind)
	}
}

func TestApply_EmptyID(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Apply(models.RemoteNote{NoteID: "  "}, "", f.ids, identity.Index{}, f.s)
	if !errors.Is(err, apperr.ErrEmptyNoteID) {
		t.Errorf("err = %v", err)
	}
}

func TestApply_Idempotent(t *testing.T) {
	f := newFixture(t)
	note := models.RemoteNote{NoteID: "n1", Title: "T", Content: "---\ntitle: T\n---\nBody"}
	f.apply(t, note)
	before := testutil.ReadNote(t, f.store, "Sync/n1.md")

	out := f.apply(t, note)
	if out.Kind != Unchanged {
		t.Errorf("second pass kind = %v", out.Kind)
	}
	if got := testutil.ReadNote(t, f.store, "Sync/n1.md"); got != before {
		t.Errorf("content changed: %q", got)
	}
}

func TestApply_IgnoredNeverTouched(t *testing.T) {
	f := newFixture(t)
	local := "---\nnoteId: keep\nignore_sync: true\n---\nlocal edits"
	testutil.WriteNote(t, f.store, "Sync/keep.md", local)
	f.ids["keep"] = "Sync/keep.md"

	out := f.apply(t, models.RemoteNote{NoteID: "keep", Content: "remote"})
	if out.Kind != SkippedIgnored {
		t.Errorf("update kind = %v", out.Kind)
	}
	out = f.apply(t, models.RemoteNote{NoteID: "keep", IsDel: true})
	if out.Kind != SkippedIgnored {
		t.Errorf("delete kind = %v", out.Kind)
	}
	if got := testutil.ReadNote(t, f.store, "Sync/keep.md"); got != local {
		t.Errorf("ignored file changed: %q", got)
	}
	if f.ids["keep"] != "Sync/keep.md" {
		t.Error("ignored note should stay mapped")
	}
}

func TestApply_IgnoreNeedsBooleanTrue(t *testing.T) {
	f := newFixture(t)
	testutil.WriteNote(t, f.store, "Sync/q.md", "---\nnoteId: q\nignore_sync: \"true\"\n---\nold")
	out := f.apply(t, models.RemoteNote{NoteID: "q", Content: "new"})
	if out.Kind != Updated {
		t.Errorf("kind = %v, quoted true must not ignore", out.Kind)
	}
}

func TestApply_PreserveKeys(t *testing.T) {
	f := newFixture(t)
	f.s.PreserveKeys = []string{"rating", "aliases"}
	testutil.WriteNote(t, f.store, "Sync/p.md",
		"---\nnoteId: p\nrating: 4\naliases:\n  - Pee\n---\nold body")

	f.apply(t, models.RemoteNote{NoteID: "p", Content: "---\nnoteId: p\ntitle: New\n---\nnew body"})

	got := testutil.ReadNote(t, f.store, "Sync/p.md")
	fm, body := frontmatter.Parse(got)
	if body != "new body" {
		t.Errorf("body = %q", body)
	}
	if r, _ := fm.Scalar("rating"); r != "4" {
		t.Errorf("rating = %q", r)
	}
	if a := fm.Strings("aliases"); len(a) != 1 || a[0] != "Pee" {
		t.Errorf("aliases = %v", a)
	}
	if title, _ := fm.String("title"); title != "New" {
		t.Errorf("title = %q", title)
	}
}

func TestApply_MovesOnLayoutChange(t *testing.T) {
	f := newFixture(t)
	f.apply(t, models.RemoteNote{NoteID: "m1", Title: "Moving", Content: "Body"})

	f.s.FilenameFormat = settings.FilenameTitle
	out := f.apply(t, models.RemoteNote{NoteID: "m1", Title: "Moving", Content: "Body v2"})
	if out.Kind != Moved || out.Path != "Sync/Moving.md" || out.PrevPath != "Sync/m1.md" {
		t.Fatalf("outcome = %+v", out)
	}
	if vault.IsFile(f.store, "Sync/m1.md") {
		t.Error("old path should be gone")
	}
	if !strings.HasSuffix(testutil.ReadNote(t, f.store, "Sync/Moving.md"), "Body v2") {
		t.Error("moved file should carry new content")
	}
}

func TestApply_StaleMappingFallsBackToScan(t *testing.T) {
	f := newFixture(t)
	testutil.WriteNote(t, f.store, "Sync/elsewhere.md", "---\nnoteId: s1\n---\nold")
	f.ids["s1"] = "Sync/deleted.md"
	scan := identity.Index{ByID: map[string]string{"s1": "Sync/elsewhere.md"}}

	out, err := f.rec.Apply(models.RemoteNote{NoteID: "s1", Content: "new"}, "", f.ids, scan, f.s)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Kind != Moved || out.PrevPath != "Sync/elsewhere.md" || out.Path != "Sync/s1.md" {
		t.Errorf("outcome = %+v", out)
	}
	if f.ids["s1"] != "Sync/s1.md" {
		t.Errorf("ids = %v", f.ids)
	}
}

func TestApply_UntrackedAtDesiredPath(t *testing.T) {
	f := newFixture(t)
	testutil.WriteNote(t, f.store, "Sync/u1.md", "---\nnoteId: u1\n---\nold")
	out := f.apply(t, models.RemoteNote{NoteID: "u1", Content: "new"})
	if out.Kind != Updated || out.Path != "Sync/u1.md" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestApply_CollisionGetsSuffix(t *testing.T) {
	f := newFixture(t)
	f.s.FilenameFormat = settings.FilenameTitle

	first := f.apply(t, models.RemoteNote{NoteID: "aaaa1111-x", Title: "Same", Content: "one"})
	second := f.apply(t, models.RemoteNote{NoteID: "bbbb2222-y", Title: "Same", Content: "two"})

	if first.Path != "Sync/Same.md" {
		t.Errorf("first = %q", first.Path)
	}
	if second.Path != "Sync/Same (bbbb2222).md" {
		t.Errorf("second = %q", second.Path)
	}
	if !strings.HasSuffix(testutil.ReadNote(t, f.store, first.Path), "one") {
		t.Error("first file overwritten")
	}
}

func TestApply_CleansImageURLs(t *testing.T) {
	f := newFixture(t)
	f.apply(t, models.RemoteNote{NoteID: "img", Content: "![alt](https://x.test/img.png?token=secret)"})
	got := testutil.ReadNote(t, f.store, "Sync/img.md")
	if !strings.HasSuffix(got, "![alt](https://x.test/img.png)") {
		t.Errorf("content = %q", got)
	}
}

func TestApply_InvalidFrontmatterWrittenAsReceived(t *testing.T) {
	f := newFixture(t)
	content := "---\ntitle: Meeting: Q3 plan\nnoteId: abc123\n---\nBody"
	out := f.apply(t, models.RemoteNote{NoteID: "abc123", Title: "Meeting: Q3 plan", Content: content})

	if out.Kind != Created {
		t.Fatalf("outcome = %+v", out)
	}
	if got := testutil.ReadNote(t, f.store, out.Path); got != content {
		t.Errorf("content = %q", got)
	}

	// Later passes keep working on the same note.
	out = f.apply(t, models.RemoteNote{NoteID: "abc123", Title: "Meeting: Q3 plan", Content: content})
	if out.Kind != Unchanged {
		t.Errorf("second pass kind = %v", out.Kind)
	}
}
