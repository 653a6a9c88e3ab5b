package gmail

import (
	"fmt"
	"sync"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/satwhiz/inboxtriage/internal/classify"
)

// labelDisplayNames maps triage labels to the Gmail label names shown to
// the user.
var labelDisplayNames = map[classify.Label]string{
	classify.LabelToDo:          "📋 To Do",
	classify.LabelAwaitingReply: "⏳ Awaiting Reply",
	classify.LabelFYI:           "ℹ️ FYI",
	classify.LabelDone:          "✅ Done",
	classify.LabelSpam:          "🗑️ Promotional",
	classify.LabelHistory:       "📜 History",
}

// LabelDisplayName returns the Gmail label name for a triage label.
func LabelDisplayName(label classify.Label) (string, error) {
	name, ok := labelDisplayNames[label]
	if !ok {
		return "", fmt.Errorf("unknown label %q", label)
	}
	return name, nil
}

// AppliedLabel records one label application for auditing and undo.
type AppliedLabel struct {
	ThreadID  string
	Label     classify.Label
	LabelID   string
	Removed   []string
	AppliedAt time.Time
}

// LabelClient is the part of the Gmail client the Labeler needs.
type LabelClient interface {
	ListLabels() ([]*gmail.Label, error)
	CreateLabel(name string) (*gmail.Label, error)
	ModifyThreadLabels(threadID string, add, remove []string) error
}

// Labeler applies triage labels to Gmail threads. Label IDs are resolved
// once and cached; every application is recorded so a run can be audited
// or reverted.
type Labeler struct {
	client LabelClient

	mu       sync.Mutex
	labelIDs map[classify.Label]string
	applied  []AppliedLabel
}

// NewLabeler creates a Labeler for the given client.
func NewLabeler(client LabelClient) *Labeler {
	return &Labeler{
		client:   client,
		labelIDs: make(map[classify.Label]string),
	}
}

// EnsureLabels resolves the Gmail label ID of every triage label, creating
// labels that do not exist yet. Returns the full label ID mapping.
func (l *Labeler) EnsureLabels() (map[classify.Label]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.client.ListLabels()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(existing))
	for _, label := range existing {
		byName[label.Name] = label.Id
	}

	for _, label := range classify.Labels() {
		name := labelDisplayNames[label]
		if id, ok := byName[name]; ok {
			l.labelIDs[label] = id
			continue
		}
		created, err := l.client.CreateLabel(name)
		if err != nil {
			return nil, err
		}
		l.labelIDs[label] = created.Id
	}

	out := make(map[classify.Label]string, len(l.labelIDs))
	for label, id := range l.labelIDs {
		out[label] = id
	}
	return out, nil
}

// Apply puts the triage label on a thread. Every label except to_do also
// archives the thread, so only actionable mail stays in the inbox.
func (l *Labeler) Apply(threadID string, label classify.Label) error {
	if !label.IsValid() {
		return fmt.Errorf("unknown label %q", label)
	}

	l.mu.Lock()
	labelID, ok := l.labelIDs[label]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("label %q has not been resolved, call EnsureLabels first", label)
	}

	var remove []string
	if label != classify.LabelToDo {
		remove = []string{"INBOX"}
	}

	if err := l.client.ModifyThreadLabels(threadID, []string{labelID}, remove); err != nil {
		return err
	}

	l.mu.Lock()
	l.applied = append(l.applied, AppliedLabel{
		ThreadID:  threadID,
		Label:     label,
		LabelID:   labelID,
		Removed:   remove,
		AppliedAt: time.Now().UTC(),
	})
	l.mu.Unlock()
	return nil
}

// Applied returns the label applications recorded so far, oldest first.
func (l *Labeler) Applied() []AppliedLabel {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AppliedLabel, len(l.applied))
	copy(out, l.applied)
	return out
}

// Revert undoes every recorded application in reverse order: the triage
// label is removed and any removed system labels are restored. Reverted
// entries are dropped from the record; the first failure stops the revert
// and leaves the remaining entries recorded.
func (l *Labeler) Revert() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.applied) - 1; i >= 0; i-- {
		entry := l.applied[i]
		if err := l.client.ModifyThreadLabels(entry.ThreadID, entry.Removed, []string{entry.LabelID}); err != nil {
			l.applied = l.applied[:i+1]
			return fmt.Errorf("revert stopped at thread %s: %w", entry.ThreadID, err)
		}
		l.applied = l.applied[:i]
	}
	return nil
}

// InboxRemoval reports whether applying the label archives the thread.
func InboxRemoval(label classify.Label) bool {
	return label != classify.LabelToDo
}
