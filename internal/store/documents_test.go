package store

import (
	"testing"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/marketcfg"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

func TestTimetableDocRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	row := timetable.Row{
		Region: "de", Market: "lem", Name: "m1",
		Timestamp: ts, Timestep: ts.Add(time.Hour),
		Type: marketcfg.ExAnte, Method: marketcfg.MethodPda, Pricing: marketcfg.PricingUniform,
		Actions: []timetable.Action{timetable.ActionClear, timetable.ActionSettle},
	}

	doc := toTimetableDoc(row)
	back := fromTimetableDoc(doc)

	if back.Region != row.Region || back.Market != row.Market || back.Name != row.Name {
		t.Fatalf("dimensions did not round-trip: %+v", back)
	}
	if !back.Timestamp.Equal(row.Timestamp) || !back.Timestep.Equal(row.Timestep) {
		t.Fatalf("timestamps did not round-trip: %+v", back)
	}
	if len(back.Actions) != 2 || back.Actions[0] != timetable.ActionClear || back.Actions[1] != timetable.ActionSettle {
		t.Fatalf("actions did not round-trip: %+v", back.Actions)
	}
}

func TestStepKeyFilter(t *testing.T) {
	key := StepKey{Region: "de", Market: "lem", Name: "m1", Timestep: time.Unix(0, 0)}
	f := key.filter()
	if f["region"] != "de" || f["market"] != "lem" || f["name"] != "m1" {
		t.Fatalf("filter missing dimensions: %+v", f)
	}
}
