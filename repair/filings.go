// ABOUTME: Repairs tax filings whose year was stored as a nested object
// ABOUTME: Works on raw JSON so profile fields it does not know survive
package repair

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/harperreed/taxdesk/models"
)

const (
	fieldTaxFilings      = "taxFilings"
	fieldYear            = "year"
	fieldPayment         = "payment"
	fieldPricingPresetID = "pricingPresetId"
)

// Result is the outcome of repairing one profile.
type Result struct {
	UserID   string   `json:"userId,omitempty"`
	Fixed    int      `json:"fixed"`
	Dropped  int      `json:"dropped"`
	Changed  bool     `json:"changed"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type nestedYear struct {
	Year            json.RawMessage `json:"year"`
	PricingPresetID *string         `json:"pricingPresetId"`
}

type synthesizedPayment struct {
	PricingPresetID string `json:"pricingPresetId"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

// RepairProfile fixes the taxFilings array of a raw profile document. The
// returned document is nil when nothing changed. Bad records are reported in
// the result, never as an error.
func RepairProfile(raw []byte) ([]byte, Result, error) {
	res := Result{Errors: []string{}, Warnings: []string{}}

	var profile map[string]json.RawMessage
	if err := json.Unmarshal(raw, &profile); err != nil || profile == nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%v: profile is not a JSON object", models.ErrDataCorruption))
		return nil, res, nil
	}

	filingsRaw, ok := profile[fieldTaxFilings]
	if !ok || isNull(filingsRaw) {
		return nil, res, nil
	}

	var filings []json.RawMessage
	if err := json.Unmarshal(filingsRaw, &filings); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("%v: taxFilings is not an array", models.ErrDataCorruption))
		return nil, res, nil
	}

	kept := make([]json.RawMessage, 0, len(filings))
	for i, f := range filings {
		out, action, msg, err := repairFiling(f)
		if err != nil {
			return nil, res, fmt.Errorf("failed to repair filing %d: %w", i, err)
		}
		switch action {
		case actionKeep:
			kept = append(kept, f)
		case actionFix:
			res.Fixed++
			kept = append(kept, out)
			if msg != "" {
				res.Warnings = append(res.Warnings, fmt.Sprintf("filing %d: %s", i, msg))
			}
		case actionDrop:
			res.Dropped++
			res.Errors = append(res.Errors, fmt.Sprintf("filing %d: %v: %s", i, models.ErrDataCorruption, msg))
		}
	}

	if res.Fixed == 0 && res.Dropped == 0 {
		return nil, res, nil
	}

	encoded, err := json.Marshal(kept)
	if err != nil {
		return nil, res, fmt.Errorf("failed to encode filings: %w", err)
	}
	profile[fieldTaxFilings] = encoded

	out, err := json.Marshal(profile)
	if err != nil {
		return nil, res, fmt.Errorf("failed to encode profile: %w", err)
	}
	res.Changed = true
	return out, res, nil
}

type action int

const (
	actionKeep action = iota
	actionFix
	actionDrop
)

// repairFiling classifies one filing. msg is the drop reason or a warning.
func repairFiling(raw json.RawMessage) (json.RawMessage, action, string, error) {
	var filing map[string]json.RawMessage
	if err := json.Unmarshal(raw, &filing); err != nil || filing == nil {
		return nil, actionDrop, "filing is not an object", nil
	}

	year, ok := filing[fieldYear]
	if !ok {
		return nil, actionDrop, "filing has no year", nil
	}
	if isNumber(year) {
		return nil, actionKeep, "", nil
	}

	var nested nestedYear
	if !isObject(year) || json.Unmarshal(year, &nested) != nil || !isInteger(nested.Year) {
		return nil, actionDrop, "unrecoverable year " + string(compact(year)), nil
	}

	filing[fieldYear] = compact(nested.Year)

	var warning string
	if nested.PricingPresetID != nil && *nested.PricingPresetID != "" {
		preset := *nested.PricingPresetID
		payment, hasPayment := filing[fieldPayment]
		switch {
		case !hasPayment || isNull(payment):
			encoded, err := json.Marshal(synthesizedPayment{
				PricingPresetID: preset,
				Status:          models.InvoiceStatusPending,
				Amount:          0,
				Currency:        models.DefaultCurrency,
			})
			if err != nil {
				return nil, actionKeep, "", err
			}
			filing[fieldPayment] = encoded
		default:
			merged, w, err := mergePreset(payment, preset)
			if err != nil {
				return nil, actionKeep, "", err
			}
			filing[fieldPayment] = merged
			warning = w
		}
	}

	out, err := json.Marshal(filing)
	if err != nil {
		return nil, actionKeep, "", err
	}
	return out, actionFix, warning, nil
}

// mergePreset gives an existing payment the embedded preset when it has none.
// A different existing preset wins and produces a warning.
func mergePreset(payment json.RawMessage, preset string) (json.RawMessage, string, error) {
	var p map[string]json.RawMessage
	if err := json.Unmarshal(payment, &p); err != nil || p == nil {
		return payment, fmt.Sprintf("payment is not an object, pricing preset %q discarded", preset), nil
	}

	var existing string
	if rawPreset, ok := p[fieldPricingPresetID]; ok && !isNull(rawPreset) {
		if err := json.Unmarshal(rawPreset, &existing); err != nil {
			return payment, fmt.Sprintf("kept unreadable payment pricing preset %s, discarded embedded preset %q", compact(rawPreset), preset), nil
		}
	}
	switch {
	case existing == preset:
		return payment, "", nil
	case existing != "":
		return payment, fmt.Sprintf("kept payment pricing preset %q, discarded embedded preset %q", existing, preset), nil
	}

	encoded, err := json.Marshal(preset)
	if err != nil {
		return nil, "", err
	}
	p[fieldPricingPresetID] = encoded
	merged, err := json.Marshal(p)
	return merged, "", err
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

func isNumber(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 || !(t[0] == '-' || (t[0] >= '0' && t[0] <= '9')) {
		return false
	}
	_, err := strconv.ParseFloat(string(t), 64)
	return err == nil
}

func isInteger(raw json.RawMessage) bool {
	if !isNumber(raw) {
		return false
	}
	_, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	return err == nil
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
