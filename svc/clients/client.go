package clients

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Provenance tags where a measurement set came from.
type Provenance string

const (
	ProvenanceManual         Provenance = "manual"
	ProvenanceCaptureSession Provenance = "capture-session"
)

// ManualConfidence is assigned to sets typed in by the designer.
const ManualConfidence = 1.0

// MeasurementSet is one accepted set of body measurements in centimeters.
// SourceID identifies the producer (the capture session id) and makes ledger
// applies idempotent; it is empty for manual entries.
type MeasurementSet struct {
	Values     map[string]float64 `json:"values"`
	Provenance Provenance         `json:"provenance"`
	Confidence float64            `json:"confidence"`
	MeasuredAt time.Time          `json:"measured_at"`
	SourceID   string             `json:"source_id,omitempty"`
}

func (s MeasurementSet) clone() MeasurementSet {
	s.Values = maps.Clone(s.Values)
	return s
}

// Ledger is a client's measurement record. History holds previously current
// sets, oldest first.
type Ledger struct {
	Current        *MeasurementSet  `json:"current,omitempty"`
	History        []MeasurementSet `json:"history"`
	LastMeasuredAt *time.Time       `json:"last_measured_at,omitempty"`
}

// hasSource reports whether a set from sourceID was already applied.
func (l Ledger) hasSource(sourceID string) bool {
	if sourceID == "" {
		return false
	}
	if l.Current != nil && l.Current.SourceID == sourceID {
		return true
	}
	return slices.ContainsFunc(l.History, func(s MeasurementSet) bool { return s.SourceID == sourceID })
}

// push makes set current, moving the previous current to history.
func (l *Ledger) push(set MeasurementSet) {
	if l.Current != nil && len(l.Current.Values) > 0 {
		l.History = append(l.History, *l.Current)
	}
	cur := set.clone()
	l.Current = &cur
	at := set.MeasuredAt
	l.LastMeasuredAt = &at
}

func (l Ledger) clone() Ledger {
	out := Ledger{History: make([]MeasurementSet, 0, len(l.History))}
	for _, h := range l.History {
		out.History = append(out.History, h.clone())
	}
	if l.Current != nil {
		cur := l.Current.clone()
		out.Current = &cur
	}
	if l.LastMeasuredAt != nil {
		at := *l.LastMeasuredAt
		out.LastMeasuredAt = &at
	}
	return out
}

// Client is a designer's customer.
type Client struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         uuid.UUID  `json:"owner_id"`
	Name            string     `json:"name"`
	Gender          string     `json:"gender,omitempty"`
	Contact         string     `json:"contact,omitempty"`
	OriginSessionID *uuid.UUID `json:"origin_session_id,omitempty"`
	Measurements    Ledger     `json:"measurements"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (c *Client) clone() *Client {
	out := *c
	if c.OriginSessionID != nil {
		id := *c.OriginSessionID
		out.OriginSessionID = &id
	}
	out.Measurements = c.Measurements.clone()
	return &out
}
