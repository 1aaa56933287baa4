package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// PowerStateUnknown is used for fuel samples of sites that have not sent a power report yet.
	PowerStateUnknown = "-"

	DefaultPowerSourceHardware = "rectifier-1"
	DefaultFuelHardware        = "env-1"
)

var (
	ErrParse = errors.New("parse error")
	// ErrIdentifierMissing also matches ErrParse.
	ErrIdentifierMissing = fmt.Errorf("%w: site id or hardware code not found", ErrParse)
)

// RawSample is one decoded fuel report. Field names match the batch wire format.
type RawSample struct {
	SiteID     string  `json:"siteid"`
	HWCode     string  `json:"hwcode"`
	Gateway    string  `json:"gateway"`
	PowerState string  `json:"powerstate"`
	FuelLevel1 float64 `json:"fuellevel1"`
	FuelLevel2 float64 `json:"fuellevel2"`
	FuelLevel3 float64 `json:"fuellevel3"`
	UpdateTime int64   `json:"updatetime"`
}

// Levels returns the three tank readings in tank order.
func (s RawSample) Levels() [3]float64 {
	return [3]float64{s.FuelLevel1, s.FuelLevel2, s.FuelLevel3}
}

type ReportKind int

const (
	KindOther ReportKind = iota
	KindPowerSource
	KindFuel
)

func (k ReportKind) String() string {
	switch k {
	case KindPowerSource:
		return "power_source"
	case KindFuel:
		return "fuel"
	default:
		return "other"
	}
}

// Identifier is the composite `site:hwcode--gateway` base name of a report.
type Identifier struct {
	SiteID  string
	HWCode  string
	Gateway string
}

func ParseIdentifier(baseName string) (Identifier, error) {
	site, rest, ok := strings.Cut(baseName, ":")
	if !ok {
		return Identifier{}, ErrIdentifierMissing
	}

	hwcode, gateway, _ := strings.Cut(rest, "--")
	if site == "" || hwcode == "" {
		return Identifier{}, ErrIdentifierMissing
	}

	return Identifier{SiteID: site, HWCode: hwcode, Gateway: gateway}, nil
}

func (id Identifier) String() string {
	if id.Gateway == "" {
		return id.SiteID + ":" + id.HWCode
	}
	return id.SiteID + ":" + id.HWCode + "--" + id.Gateway
}
