package index

import (
	"fmt"
	"strconv"
	"time"
)

// Progress gives typed access to the sync progress markers.
type Progress struct {
	store Store
}

// NewProgress wraps a store.
func NewProgress(store Store) *Progress {
	return &Progress{store: store}
}

// ListComplete reports whether the full remote list has been retrieved at least once.
func (p *Progress) ListComplete() (bool, error) {
	value, ok, err := p.store.Marker(KeyListComplete)
	if err != nil || !ok {
		return false, err
	}
	complete, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("parse %s marker %q: %w", KeyListComplete, value, err)
	}
	return complete, nil
}

// SetListComplete records that the full remote list has been retrieved.
func (p *Progress) SetListComplete() error {
	return p.store.SetMarker(KeyListComplete, strconv.FormatBool(true))
}

// LastReconciliation returns when the last reconciliation pass completed. ok is false if never.
func (p *Progress) LastReconciliation() (t time.Time, ok bool, err error) {
	value, ok, err := p.store.Marker(KeyLastReconciliation)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err = time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s marker %q: %w", KeyLastReconciliation, value, err)
	}
	return t, true, nil
}

// SetLastReconciliation stamps the completion time of a reconciliation pass.
func (p *Progress) SetLastReconciliation(t time.Time) error {
	return p.store.SetMarker(KeyLastReconciliation, t.UTC().Format(time.RFC3339))
}

// ResumeMarker returns the row id an interrupted reconciliation pass stopped at.
func (p *Progress) ResumeMarker() (id int64, ok bool, err error) {
	value, ok, err := p.store.Marker(KeyResumeMarker)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err = strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s marker %q: %w", KeyResumeMarker, value, err)
	}
	return id, true, nil
}

// SetResumeMarker checkpoints the row id a reconciliation pass stopped at.
func (p *Progress) SetResumeMarker(id int64) error {
	return p.store.SetMarker(KeyResumeMarker, strconv.FormatInt(id, 10))
}

// ClearResumeMarker removes the reconciliation checkpoint.
func (p *Progress) ClearResumeMarker() error {
	return p.store.ClearMarker(KeyResumeMarker)
}
