package classify

import (
	"testing"
)

func TestClassify(t *testing.T) {
	c := New(Thresholds{Refill: 100, Theft: 100}, DefaultMinLevel, DefaultMaxLevel, nil)

	tests := []struct {
		name       string
		level      float64
		cumulative float64
		power      string
		want       Category
	}{
		{"refill", 500, 150, "mains", CategoryRefill},
		{"pilferage on generator", 500, -150, "DG", CategoryPilferage},
		{"drop on mains", 500, -150, "mains", CategoryNormal},
		{"sensor failure high", 3500, 0, "DG", CategorySensorFailure},
		{"sensor failure low", -1, -500, "DG", CategorySensorFailure},
		{"sensor failure beats refill", 3001, 500, "mains", CategorySensorFailure},
		{"drop at threshold", 500, -100, "DG", CategoryNormal},
		{"rise at threshold", 500, 100, "DG", CategoryNormal},
		{"unknown power state", 500, -150, "-", CategoryNormal},
		{"case insensitive state", 500, -150, "Solar-DG-Mains", CategoryPilferage},
		{"bounds inclusive", 3000, 0, "DG", CategoryNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sev := c.Classify(tt.level, tt.cumulative, tt.power)
			if got != tt.want {
				t.Errorf("Classify(%v, %v, %q) = %s, want %s", tt.level, tt.cumulative, tt.power, got, tt.want)
			}
			if sev != SeverityOf(tt.want) {
				t.Errorf("severity = %s, want %s", sev, SeverityOf(tt.want))
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	for _, cat := range Alerting {
		if SeverityOf(cat) != SeverityMajor {
			t.Errorf("expected %s to be major", cat)
		}
	}
	if SeverityOf(CategoryNormal) != SeverityNormal {
		t.Error("expected normal severity for normal")
	}
}

func TestLitres(t *testing.T) {
	c := New(Thresholds{Refill: 100, Theft: 100}, DefaultMinLevel, DefaultMaxLevel, nil)

	tests := []struct {
		cumulative float64
		theft      float64
		refill     float64
	}{
		{-150, 150, 0},
		{-100, 0, 0},
		{150, 0, 150},
		{100, 0, 0},
		{0, 0, 0},
	}

	for _, tt := range tests {
		if got := c.TheftLitres(tt.cumulative); got != tt.theft {
			t.Errorf("TheftLitres(%v) = %v, want %v", tt.cumulative, got, tt.theft)
		}
		if got := c.RefillLitres(tt.cumulative); got != tt.refill {
			t.Errorf("RefillLitres(%v) = %v, want %v", tt.cumulative, got, tt.refill)
		}
	}
}

func TestCustomGeneratorStates(t *testing.T) {
	c := New(Thresholds{Refill: 10, Theft: 10}, 0, 100, []string{"genset"})

	if !c.IsGenerator("GENSET") {
		t.Error("expected GENSET to match genset")
	}
	if c.IsGenerator("DG") {
		t.Error("expected DG not to match custom list")
	}
}
