package reconcile

// Kind is what the reconciler did with one remote note.
type Kind int

const (
	// Created means a new file was written.
	Created Kind = iota
	// Updated means an existing file was overwritten in place.
	Updated
	// Moved means an existing file was relocated and then overwritten.
	Moved
	// Unchanged means the file already held the rendered content.
	Unchanged
	// Deleted means the file was moved to the trash.
	Deleted
	// SkippedIgnored means the local file opted out of sync.
	SkippedIgnored
	// SkippedMissing means a deleted note had no local file.
	SkippedMissing
)

var kindNames = [...]string{
	Created:        "created",
	Updated:        "updated",
	Moved:          "moved",
	Unchanged:      "unchanged",
	Deleted:        "deleted",
	SkippedIgnored: "skipped_ignored",
	SkippedMissing: "skipped_missing",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Outcome describes the effect of reconciling one note.
type Outcome struct {
	Kind     Kind
	NoteID   string
	Path     string
	PrevPath string
	Title    string
	Preview  string
	// Date is the day bucket the note arrived in.
	Date string
}

// Processed reports whether the note's content is now on disk.
func (o Outcome) Processed() bool {
	switch o.Kind {
	case Created, Updated, Moved, Unchanged:
		return true
	}
	return false
}

// Wrote reports whether the vault changed.
func (o Outcome) Wrote() bool {
	switch o.Kind {
	case Created, Updated, Moved, Deleted:
		return true
	}
	return false
}
