package classify

import (
	"math"
	"strings"
)

type Category string

const (
	CategoryNormal        Category = "normal"
	CategoryRefill        Category = "refill"
	CategoryPilferage     Category = "pilferage"
	CategorySensorFailure Category = "sensor_failure"
)

// Alerting lists the categories that open alerts, in evaluation order.
var Alerting = []Category{CategorySensorFailure, CategoryRefill, CategoryPilferage}

type Severity string

const (
	SeverityNormal Severity = "normal"
	SeverityMajor  Severity = "major"
)

const (
	DefaultMinLevel = 0
	DefaultMaxLevel = 3000
)

// DefaultGeneratorStates are the power states in which the generator draws fuel.
var DefaultGeneratorStates = []string{"DG", "DG-batt", "solar-DG", "solar-dg-mains"}

type Thresholds struct {
	Refill float64
	Theft  float64
}

// Classifier maps a smoothed reading to a category.
type Classifier struct {
	Thresholds      Thresholds
	MinLevel        float64
	MaxLevel        float64
	GeneratorStates []string
}

func New(th Thresholds, minLevel, maxLevel float64, generatorStates []string) *Classifier {
	if len(generatorStates) == 0 {
		generatorStates = DefaultGeneratorStates
	}
	return &Classifier{
		Thresholds:      th,
		MinLevel:        minLevel,
		MaxLevel:        maxLevel,
		GeneratorStates: generatorStates,
	}
}

// Classify applies the rules in priority order: level out of bounds, refill,
// then pilferage while running on a generator.
func (c *Classifier) Classify(level, cumulative float64, powerState string) (Category, Severity) {
	switch {
	case level < c.MinLevel || level > c.MaxLevel:
		return CategorySensorFailure, SeverityMajor
	case cumulative > c.Thresholds.Refill:
		return CategoryRefill, SeverityMajor
	case cumulative < -c.Thresholds.Theft && c.IsGenerator(powerState):
		return CategoryPilferage, SeverityMajor
	default:
		return CategoryNormal, SeverityNormal
	}
}

// IsGenerator reports whether powerState is a generator state, ignoring case.
func (c *Classifier) IsGenerator(powerState string) bool {
	for _, s := range c.GeneratorStates {
		if strings.EqualFold(s, powerState) {
			return true
		}
	}
	return false
}

// TheftLitres is |cumulative| when the drop exceeds the theft threshold.
func (c *Classifier) TheftLitres(cumulative float64) float64 {
	if cumulative < 0 && math.Abs(cumulative) > c.Thresholds.Theft {
		return math.Abs(cumulative)
	}
	return 0
}

// RefillLitres is cumulative when the rise exceeds the refill threshold.
func (c *Classifier) RefillLitres(cumulative float64) float64 {
	if cumulative > c.Thresholds.Refill {
		return cumulative
	}
	return 0
}

func SeverityOf(cat Category) Severity {
	if cat == CategoryNormal {
		return SeverityNormal
	}
	return SeverityMajor
}
