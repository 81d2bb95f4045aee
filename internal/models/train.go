package models

import (
	"sort"
	"time"
)

// TimetableRowType tells whether a timetable row is an arrival or a departure.
type TimetableRowType string

const (
	Arrival   TimetableRowType = "ARRIVAL"
	Departure TimetableRowType = "DEPARTURE"
)

// Station identifies a timetable stop by its short code (e.g. "HKI").
type Station struct {
	ShortCode string `json:"shortCode"`
}

// TimetableRow is one scheduled arrival or departure of a train.
type TimetableRow struct {
	Type          TimetableRowType `json:"type"`
	ScheduledTime time.Time        `json:"scheduledTime"`
	Station       Station          `json:"station"`
	Cancelled     bool             `json:"cancelled"`
	TrainStopping bool             `json:"trainStopping"`
}

// TrainOfInterest is a train shown somewhere in the UI that should be
// tracked on the live map. Rows may contain nil entries. Departure and
// destination are picked by scheduled time, so row order does not matter.
type TrainOfInterest struct {
	TrainNumber    int             `json:"trainNumber"`
	CommuterLineID string          `json:"commuterLineid,omitempty"`
	TimetableRows  []*TimetableRow `json:"timeTableRows"`
}

// IsCommuter reports whether the train runs as a lettered commuter line.
func (t TrainOfInterest) IsCommuter() bool {
	return t.CommuterLineID != ""
}

// Departures returns the usable departure rows ordered by scheduled time.
// Nil rows and rows without a scheduled time are skipped.
func (t TrainOfInterest) Departures() []*TimetableRow {
	rows := make([]*TimetableRow, 0, len(t.TimetableRows))
	for _, row := range t.TimetableRows {
		if row == nil || row.Type != Departure || row.ScheduledTime.IsZero() {
			continue
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ScheduledTime.Before(rows[j].ScheduledTime)
	})
	return rows
}

// FirstDeparture returns the earliest scheduled departure row.
func (t TrainOfInterest) FirstDeparture() (*TimetableRow, bool) {
	deps := t.Departures()
	if len(deps) == 0 {
		return nil, false
	}
	return deps[0], true
}

// DepartureStation is the station of the earliest departure, or "".
func (t TrainOfInterest) DepartureStation() string {
	if row, ok := t.FirstDeparture(); ok {
		return row.Station.ShortCode
	}
	return ""
}

// DestinationStation is the station of the latest scheduled row, or "".
// Rows sharing that time resolve to the one listed last. Without any
// scheduled time the last non-nil row is used.
func (t TrainOfInterest) DestinationStation() string {
	var last, latest *TimetableRow
	for _, row := range t.TimetableRows {
		if row == nil {
			continue
		}
		last = row
		if row.ScheduledTime.IsZero() {
			continue
		}
		if latest == nil || !row.ScheduledTime.Before(latest.ScheduledTime) {
			latest = row
		}
	}
	switch {
	case latest != nil:
		return latest.Station.ShortCode
	case last != nil:
		return last.Station.ShortCode
	}
	return ""
}
