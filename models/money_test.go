// ABOUTME: Tests for encoding amounts in major units
// ABOUTME: Stored and wire JSON carry dollars while Go values stay in cents
package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCentsRounding(t *testing.T) {
	assert.Equal(t, int64(5000), Cents(50))
	assert.Equal(t, int64(49999), Cents(499.99))
	assert.Equal(t, 50.0, MajorUnits(5000))
}

func TestLeadInputAcceptsMajorUnits(t *testing.T) {
	var in LeadInput
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Acme","estimatedValue":499.99}`), &in))
	assert.Equal(t, "Acme", in.Name)
	assert.Equal(t, int64(49999), in.EstimatedValue)

	var patch LeadPatch
	require.NoError(t, json.Unmarshal([]byte(`{"estimatedValue":1200}`), &patch))
	require.NotNil(t, patch.EstimatedValue)
	assert.Equal(t, int64(120000), *patch.EstimatedValue)

	patch = LeadPatch{}
	require.NoError(t, json.Unmarshal([]byte(`{"notes":"hi"}`), &patch))
	assert.Nil(t, patch.EstimatedValue)
	assert.Equal(t, "hi", *patch.Notes)
}

func TestLeadEncodesMajorUnits(t *testing.T) {
	lead, err := NewLead(LeadInput{Name: "Acme", EstimatedValue: 49999}, "alice", t0)
	require.NoError(t, err)

	raw, err := json.Marshal(lead)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, 499.99, fields["estimatedValue"])
	assert.Equal(t, "Acme", fields["name"])

	var back Lead
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, int64(49999), back.EstimatedValue)
	assert.Equal(t, lead.ID, back.ID)
	assert.Len(t, back.Activities, 1)
}

func TestInvoiceEncodesMajorUnits(t *testing.T) {
	raw, err := json.Marshal(&Invoice{InvoiceNumber: "0001", Amount: InitialFee, Currency: DefaultCurrency})
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, 50.0, fields["amount"])

	var back Invoice
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, InitialFee, back.Amount)
	assert.Equal(t, "0001", back.InvoiceNumber)
}

func TestLeadStatsEncodesMajorUnits(t *testing.T) {
	raw, err := json.Marshal(LeadStats{Total: 1, TotalValue: 25050, PipelineValue: 0})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalValue":250.5`)
	assert.Contains(t, string(raw), `"pipelineValue":0`)
}
