package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const powerStateRecord = "powerstate"

// Record is a single measurement inside a report. Both the SenML keys
// (bn, n, v, vs, ut) and the plain {name, value} shape are accepted.
type Record struct {
	BaseName    string
	Name        string
	Value       *float64
	StringValue string
	UpdateTime  *float64
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		BaseName string          `json:"bn"`
		N        string          `json:"n"`
		Name     string          `json:"name"`
		V        *float64        `json:"v"`
		VS       *string         `json:"vs"`
		Value    json.RawMessage `json:"value"`
		UT       *float64        `json:"ut"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record{BaseName: raw.BaseName, Name: raw.N, Value: raw.V, UpdateTime: raw.UT}
	if r.Name == "" {
		r.Name = raw.Name
	}
	if raw.VS != nil {
		r.StringValue = *raw.VS
	}

	if r.Value == nil && len(raw.Value) > 0 {
		var num float64
		var str string
		switch {
		case json.Unmarshal(raw.Value, &num) == nil:
			r.Value = &num
		case json.Unmarshal(raw.Value, &str) == nil && r.StringValue == "":
			r.StringValue = str
		}
	}

	return nil
}

// Report is a decoded inbound message: its identifier and measurement records.
type Report struct {
	Identifier
	Records []Record
}

// ParseReport decodes a raw bus payload. Errors wrap ErrParse or ErrIdentifierMissing.
func ParseReport(payload []byte) (*Report, error) {
	records, err := ExtractRecords(decodePayload(payload))
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.BaseName == "" {
			continue
		}
		id, err := ParseIdentifier(rec.BaseName)
		if err != nil {
			return nil, fmt.Errorf("%w: base name %q", err, rec.BaseName)
		}
		return &Report{Identifier: id, Records: records}, nil
	}

	return nil, ErrIdentifierMissing
}

// decodePayload reads the payload as UTF-8, falling back to Latin-1. Every
// byte has a Latin-1 rune so the fallback cannot fail.
func decodePayload(payload []byte) string {
	if utf8.Valid(payload) {
		return string(payload)
	}

	var b strings.Builder
	b.Grow(len(payload) * 2)
	for _, c := range payload {
		b.WriteRune(charmap.ISO8859_1.DecodeByte(c))
	}
	return b.String()
}

// ExtractRecords parses the JSON array found between the first "[{" and the last "}]".
func ExtractRecords(text string) ([]Record, error) {
	start := strings.Index(text, "[{")
	end := strings.LastIndex(text, "}]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no json array in payload", ErrParse)
	}

	var records []Record
	if err := json.Unmarshal([]byte(text[start:end+2]), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return records, nil
}

// Kind routes a report by the hardware code of its identifier.
func (r *Report) Kind(powerSourceHW, fuelHW string) ReportKind {
	switch {
	case powerSourceHW != "" && strings.Contains(r.HWCode, powerSourceHW):
		return KindPowerSource
	case fuelHW != "" && strings.Contains(r.HWCode, fuelHW):
		return KindFuel
	default:
		return KindOther
	}
}

// PowerState returns the string value of the first powerstate record.
func (r *Report) PowerState() (string, bool) {
	for _, rec := range r.Records {
		if rec.Name == powerStateRecord {
			return rec.StringValue, true
		}
	}
	return "", false
}

// FuelSample builds a RawSample from a fuel report. Negative tank levels are clamped to zero.
func (r *Report) FuelSample(powerState string) RawSample {
	sample := RawSample{
		SiteID:     r.SiteID,
		HWCode:     r.HWCode,
		Gateway:    r.Gateway,
		PowerState: powerState,
	}

	for _, rec := range r.Records {
		if rec.UpdateTime != nil {
			sample.UpdateTime = int64(math.Trunc(*rec.UpdateTime))
			break
		}
	}

	for _, rec := range r.Records {
		if rec.Value == nil {
			continue
		}
		level := math.Max(*rec.Value, 0)
		switch strings.ToLower(rec.Name) {
		case "fuellevel1":
			sample.FuelLevel1 = level
		case "fuellevel2":
			sample.FuelLevel2 = level
		case "fuellevel3":
			sample.FuelLevel3 = level
		}
	}

	return sample
}
