package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegacyToCustomerStatus(t *testing.T) {
	tests := []struct {
		in   LeadStatus
		want CustomerStatus
	}{
		{LeadStatusPending, CustomerStatusNew},
		{LeadStatusProcessing, CustomerStatusContacted},
		{LeadStatusCompleted, CustomerStatusQualified},
		{LeadStatusFailed, CustomerStatusLost},
		{"archived", CustomerStatusNew},
		{"", CustomerStatusNew},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, LegacyToCustomerStatus(tt.in))
		})
	}
}

func TestCustomerToLegacyStatus(t *testing.T) {
	tests := []struct {
		in   CustomerStatus
		want LeadStatus
	}{
		{CustomerStatusNew, LeadStatusPending},
		{CustomerStatusContacted, LeadStatusProcessing},
		{CustomerStatusQualified, LeadStatusCompleted},
		{CustomerStatusConverted, LeadStatusCompleted},
		{CustomerStatusLost, LeadStatusFailed},
		{"spam", LeadStatusPending},
		{"", LeadStatusPending},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, CustomerToLegacyStatus(tt.in))
		})
	}
}

func TestStatusMapping_Totality(t *testing.T) {
	customer := make(map[CustomerStatus]bool)
	for _, s := range AllCustomerStatuses() {
		customer[s] = true
	}
	legacy := make(map[LeadStatus]bool)
	for _, s := range AllLeadStatuses() {
		legacy[s] = true
	}

	for _, s := range AllLeadStatuses() {
		assert.True(t, customer[LegacyToCustomerStatus(s)], "legacy %q maps outside customer vocabulary", s)
	}
	for _, s := range AllCustomerStatuses() {
		assert.True(t, legacy[CustomerToLegacyStatus(s)], "customer %q maps outside legacy vocabulary", s)
	}
}

func TestStatusMapping_LegacyRoundTrip(t *testing.T) {
	// The customer vocabulary is finer for statuses, so legacy values survive
	// a round trip unchanged.
	for _, s := range AllLeadStatuses() {
		assert.Equal(t, s, CustomerToLegacyStatus(LegacyToCustomerStatus(s)), "status %q", s)
	}
}

func TestStatusMapping_CustomerRoundTripIsCoarse(t *testing.T) {
	got := LegacyToCustomerStatus(CustomerToLegacyStatus(CustomerStatusConverted))
	assert.Equal(t, CustomerStatusQualified, got)
}

func TestSourceMapping(t *testing.T) {
	assert.Equal(t, CustomerSourceExcelImport, LegacyToCustomerSource(LeadSourceExcel))
	assert.Equal(t, CustomerSourceManual, LegacyToCustomerSource(LeadSourceManual))
	assert.Equal(t, CustomerSourceScraped, LegacyToCustomerSource(LeadSourceScraped))
	assert.Equal(t, CustomerSourceManual, LegacyToCustomerSource("csv"))

	assert.Equal(t, LeadSourceExcel, CustomerToLegacySource(CustomerSourceExcelImport))
	assert.Equal(t, LeadSourceManual, CustomerToLegacySource(CustomerSourceManual))
	assert.Equal(t, LeadSourceScraped, CustomerToLegacySource(CustomerSourceScraped))
	assert.Equal(t, LeadSourceScraped, CustomerToLegacySource(CustomerSourceAIDiscovery))
	assert.Equal(t, LeadSourceManual, CustomerToLegacySource("referral"))
}

func TestSourceMapping_Totality(t *testing.T) {
	customer := make(map[CustomerSource]bool)
	for _, s := range AllCustomerSources() {
		customer[s] = true
	}
	legacy := make(map[LeadSource]bool)
	for _, s := range AllLeadSources() {
		legacy[s] = true
	}

	for _, s := range AllLeadSources() {
		assert.True(t, customer[LegacyToCustomerSource(s)])
		assert.Equal(t, s, CustomerToLegacySource(LegacyToCustomerSource(s)))
	}
	for _, s := range AllCustomerSources() {
		assert.True(t, legacy[CustomerToLegacySource(s)])
	}
}

func TestLeadStatus_IsTerminal(t *testing.T) {
	assert.False(t, LeadStatusPending.IsTerminal())
	assert.False(t, LeadStatusProcessing.IsTerminal())
	assert.True(t, LeadStatusCompleted.IsTerminal())
	assert.True(t, LeadStatusFailed.IsTerminal())
}

func TestResultBuilders(t *testing.T) {
	ok := CompletedResult(EmailDraft{Subject: "Hi", Body: "Hello there"})
	assert.Equal(t, LeadStatusCompleted, ok.Status)
	assert.Equal(t, "Hi", ok.Subject)
	assert.Empty(t, ok.ErrorMessage)

	bad := FailedResult("boom")
	assert.Equal(t, LeadStatusFailed, bad.Status)
	assert.Equal(t, "boom", bad.ErrorMessage)
	assert.Empty(t, bad.Subject)
}

func TestBatchProgress_Remaining(t *testing.T) {
	assert.Equal(t, 3, BatchProgress{Total: 5, Processed: 2}.Remaining())
	assert.Equal(t, 0, BatchProgress{Total: 2, Processed: 2}.Remaining())
	assert.Equal(t, 0, BatchProgress{Total: 1, Processed: 3}.Remaining())
}
