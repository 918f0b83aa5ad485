package safety

import (
	"fmt"
	"time"

	"github.com/asdine/storm/v3"
)

// AuditRecord is one persisted safety event.
type AuditRecord struct {
	ID        int       `storm:"id,increment"`
	Timestamp time.Time `storm:"index"`
	EventType string
	Message   string
	Severity  string
	Context   map[string]string
}

// AuditLog persists safety events for post-incident review. Records are
// append-only; the increment id preserves arrival order.
type AuditLog struct {
	db *storm.DB
}

// OpenAuditLog opens or creates the bolt-backed event store at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &AuditLog{db: db}, nil
}

// Append persists one event.
func (l *AuditLog) Append(ev SafetyEvent) error {
	rec := AuditRecord{
		Timestamp: ev.Timestamp,
		EventType: string(ev.EventType),
		Message:   ev.Message,
		Severity:  ev.Severity.String(),
		Context:   ev.Context,
	}
	if err := l.db.Save(&rec); err != nil {
		return fmt.Errorf("saving audit record: %w", err)
	}
	return nil
}

// Recent returns up to n events, newest first.
func (l *AuditLog) Recent(n int) ([]AuditRecord, error) {
	var recs []AuditRecord
	if err := l.db.All(&recs, storm.Limit(n), storm.Reverse()); err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	return recs, nil
}

func (l *AuditLog) Close() error {
	return l.db.Close()
}
