package timetable

import (
	"testing"
	"time"

	"github.com/hamlet-sim/lem-engine/internal/marketcfg"
)

func testMarket(opening, frequency, duration, h0, h1, closing int64, settling marketcfg.Settling) marketcfg.Market {
	return marketcfg.Market{
		Region: "de",
		Market: "lem",
		Name:   "m1",
		Clearing: marketcfg.Clearing{
			Type:    marketcfg.ExAnte,
			Method:  marketcfg.MethodPda,
			Pricing: marketcfg.PricingUniform,
			Timing: marketcfg.Timing{
				OpeningS:   opening,
				FrequencyS: frequency,
				DurationS:  duration,
				HorizonS:   [2]int64{h0, h1},
				ClosingS:   closing,
				Settling:   settling,
			},
		},
	}
}

func TestBuildRejectsFrequencyGreaterThanOpening(t *testing.T) {
	m := testMarket(900, 1800, 900, 0, 3600, 1800, marketcfg.SettlingContinuous)
	simStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Build(m, simStart, simStart.Add(24*time.Hour))
	if err == nil {
		t.Fatal("expected error for frequency > opening")
	}
}

func TestBuildRejectsUnknownSettling(t *testing.T) {
	m := testMarket(3600, 900, 900, 0, 3600, 1800, "bogus")
	simStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Build(m, simStart, simStart.Add(24*time.Hour))
	if err == nil {
		t.Fatal("expected error for unknown settling")
	}
}

func TestBuildSingleShotWhenFrequencyEqualsOpening(t *testing.T) {
	m := testMarket(3600, 3600, 900, 0, 3600, 1800, marketcfg.SettlingContinuous)
	simStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := Build(m, simStart, simStart.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	// One opening, one frequency instant, 4 delivery steps of 900s over [0,3600).
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4: %+v", len(rows), rows)
	}
	for _, r := range rows {
		if !r.Timestamp.Equal(simStart) {
			t.Errorf("row timestamp = %v, want %v", r.Timestamp, simStart)
		}
	}
}

func TestBuildContinuousSettlingNearVsFarDelivery(t *testing.T) {
	// opening=3600, frequency=900, horizon=[0,3600], duration=900, closing=1800:
	// the block for F=O covers delivery steps at offsets 0,900,1800,2700 from
	// F. The offset-0 step is both within closing and equal to F, so it ends
	// up settle-only; the offset-2700 step is neither, so it stays clear-only.
	m := testMarket(3600, 900, 900, 0, 3600, 1800, marketcfg.SettlingContinuous)
	simStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := Build(m, simStart, simStart.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	var nearDelivery, farDelivery *Row
	for i := range rows {
		r := &rows[i]
		if !r.Timestamp.Equal(simStart) {
			continue
		}
		switch r.Timestep.Sub(simStart) {
		case 0:
			nearDelivery = r
		case 2700 * time.Second:
			farDelivery = r
		}
	}
	if nearDelivery == nil || farDelivery == nil {
		t.Fatalf("expected rows at offsets 0 and 2700s in block for F=O, got %+v", rows)
	}
	if len(nearDelivery.Actions) != 1 || nearDelivery.Actions[0] != ActionSettle {
		t.Errorf("near-delivery row actions = %v, want [settle]", nearDelivery.Actions)
	}
	if len(farDelivery.Actions) != 1 || farDelivery.Actions[0] != ActionClear {
		t.Errorf("far-delivery row actions = %v, want [clear]", farDelivery.Actions)
	}
}

func TestBuildStableSortByTimestampThenTimestep(t *testing.T) {
	m := testMarket(3600, 900, 900, 0, 3600, 1800, marketcfg.SettlingContinuous)
	simStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := Build(m, simStart, simStart.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if cur.Timestamp.Before(prev.Timestamp) {
			t.Fatalf("rows not sorted by timestamp at index %d", i)
		}
		if cur.Timestamp.Equal(prev.Timestamp) && cur.Timestep.Before(prev.Timestep) {
			t.Fatalf("rows not sorted by timestep at index %d", i)
		}
	}
}

func TestBuildAnnotatesDimensions(t *testing.T) {
	m := testMarket(3600, 3600, 900, 0, 3600, 1800, marketcfg.SettlingContinuous)
	simStart := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows, err := Build(m, simStart, simStart.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Region != "de" || r.Market != "lem" || r.Name != "m1" {
			t.Fatalf("row missing dimension annotation: %+v", r)
		}
		if r.Type != marketcfg.ExAnte || r.Pricing != marketcfg.PricingUniform {
			t.Fatalf("row missing clearing annotation: %+v", r)
		}
	}
}
