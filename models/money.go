// ABOUTME: Conversion between stored cents and the major units used on the wire
// ABOUTME: Leads and invoices encode amounts as decimal numbers such as 499.99
package models

import (
	"encoding/json"
	"math"
)

// Cents converts a major-unit amount to cents, rounding half away from zero.
func Cents(major float64) int64 {
	return int64(math.Round(major * 100))
}

// MajorUnits converts cents to a major-unit amount.
func MajorUnits(cents int64) float64 {
	return float64(cents) / 100
}

func (l Lead) MarshalJSON() ([]byte, error) {
	type alias Lead
	return json.Marshal(struct {
		alias
		EstimatedValue float64 `json:"estimatedValue"`
	}{alias(l), MajorUnits(l.EstimatedValue)})
}

func (l *Lead) UnmarshalJSON(data []byte) error {
	type alias Lead
	aux := struct {
		*alias
		EstimatedValue float64 `json:"estimatedValue"`
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.EstimatedValue = Cents(aux.EstimatedValue)
	return nil
}

func (in LeadInput) MarshalJSON() ([]byte, error) {
	type alias LeadInput
	return json.Marshal(struct {
		alias
		EstimatedValue float64 `json:"estimatedValue,omitempty"`
	}{alias(in), MajorUnits(in.EstimatedValue)})
}

func (in *LeadInput) UnmarshalJSON(data []byte) error {
	type alias LeadInput
	aux := struct {
		*alias
		EstimatedValue float64 `json:"estimatedValue,omitempty"`
	}{alias: (*alias)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.EstimatedValue = Cents(aux.EstimatedValue)
	return nil
}

func (p LeadPatch) MarshalJSON() ([]byte, error) {
	type alias LeadPatch
	var value *float64
	if p.EstimatedValue != nil {
		v := MajorUnits(*p.EstimatedValue)
		value = &v
	}
	return json.Marshal(struct {
		alias
		EstimatedValue *float64 `json:"estimatedValue,omitempty"`
	}{alias(p), value})
}

func (p *LeadPatch) UnmarshalJSON(data []byte) error {
	type alias LeadPatch
	aux := struct {
		*alias
		EstimatedValue *float64 `json:"estimatedValue,omitempty"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.EstimatedValue = nil
	if aux.EstimatedValue != nil {
		cents := Cents(*aux.EstimatedValue)
		p.EstimatedValue = &cents
	}
	return nil
}

func (s LeadStats) MarshalJSON() ([]byte, error) {
	type alias LeadStats
	return json.Marshal(struct {
		alias
		TotalValue    float64 `json:"totalValue"`
		PipelineValue float64 `json:"pipelineValue"`
	}{alias(s), MajorUnits(s.TotalValue), MajorUnits(s.PipelineValue)})
}

func (s *LeadStats) UnmarshalJSON(data []byte) error {
	type alias LeadStats
	aux := struct {
		*alias
		TotalValue    float64 `json:"totalValue"`
		PipelineValue float64 `json:"pipelineValue"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.TotalValue = Cents(aux.TotalValue)
	s.PipelineValue = Cents(aux.PipelineValue)
	return nil
}

func (inv Invoice) MarshalJSON() ([]byte, error) {
	type alias Invoice
	return json.Marshal(struct {
		alias
		Amount float64 `json:"amount"`
	}{alias(inv), MajorUnits(inv.Amount)})
}

func (inv *Invoice) UnmarshalJSON(data []byte) error {
	type alias Invoice
	aux := struct {
		*alias
		Amount float64 `json:"amount"`
	}{alias: (*alias)(inv)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	inv.Amount = Cents(aux.Amount)
	return nil
}
