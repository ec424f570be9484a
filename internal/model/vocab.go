package model

// CustomerStatus is the status vocabulary of the customer_leads table.
type CustomerStatus string

const (
	CustomerStatusNew       CustomerStatus = "new"
	CustomerStatusContacted CustomerStatus = "contacted"
	CustomerStatusQualified CustomerStatus = "qualified"
	CustomerStatusConverted CustomerStatus = "converted"
	CustomerStatusLost      CustomerStatus = "lost"
)

// AllCustomerStatuses returns every customer_leads status.
func AllCustomerStatuses() []CustomerStatus {
	return []CustomerStatus{
		CustomerStatusNew,
		CustomerStatusContacted,
		CustomerStatusQualified,
		CustomerStatusConverted,
		CustomerStatusLost,
	}
}

// CustomerSource is the source vocabulary of the customer_leads table.
type CustomerSource string

const (
	CustomerSourceExcelImport CustomerSource = "excel_import"
	CustomerSourceManual      CustomerSource = "manual"
	CustomerSourceScraped     CustomerSource = "scraped"
	CustomerSourceAIDiscovery CustomerSource = "ai_discovery"
)

// AllCustomerSources returns every customer_leads source.
func AllCustomerSources() []CustomerSource {
	return []CustomerSource{
		CustomerSourceExcelImport,
		CustomerSourceManual,
		CustomerSourceScraped,
		CustomerSourceAIDiscovery,
	}
}

// Defaults used for values neither vocabulary recognizes.
const (
	DefaultLeadStatus     = LeadStatusPending
	DefaultCustomerStatus = CustomerStatusNew
	DefaultLeadSource     = LeadSourceManual
	DefaultCustomerSource = CustomerSourceManual
)

var legacyToCustomerStatus = map[LeadStatus]CustomerStatus{
	LeadStatusPending:    CustomerStatusNew,
	LeadStatusProcessing: CustomerStatusContacted,
	LeadStatusCompleted:  CustomerStatusQualified,
	LeadStatusFailed:     CustomerStatusLost,
}

// converted has no legacy counterpart; it is a finished lead.
var customerToLegacyStatus = map[CustomerStatus]LeadStatus{
	CustomerStatusNew:       LeadStatusPending,
	CustomerStatusContacted: LeadStatusProcessing,
	CustomerStatusQualified: LeadStatusCompleted,
	CustomerStatusConverted: LeadStatusCompleted,
	CustomerStatusLost:      LeadStatusFailed,
}

var legacyToCustomerSource = map[LeadSource]CustomerSource{
	LeadSourceExcel:   CustomerSourceExcelImport,
	LeadSourceManual:  CustomerSourceManual,
	LeadSourceScraped: CustomerSourceScraped,
}

var customerToLegacySource = map[CustomerSource]LeadSource{
	CustomerSourceExcelImport: LeadSourceExcel,
	CustomerSourceManual:      LeadSourceManual,
	CustomerSourceScraped:     LeadSourceScraped,
	CustomerSourceAIDiscovery: LeadSourceScraped,
}

// LegacyToCustomerStatus maps a canonical status to the customer vocabulary.
func LegacyToCustomerStatus(s LeadStatus) CustomerStatus {
	if v, ok := legacyToCustomerStatus[s]; ok {
		return v
	}
	return DefaultCustomerStatus
}

// CustomerToLegacyStatus maps a customer status to the canonical vocabulary.
func CustomerToLegacyStatus(s CustomerStatus) LeadStatus {
	if v, ok := customerToLegacyStatus[s]; ok {
		return v
	}
	return DefaultLeadStatus
}

// LegacyToCustomerSource maps a canonical source to the customer vocabulary.
func LegacyToCustomerSource(s LeadSource) CustomerSource {
	if v, ok := legacyToCustomerSource[s]; ok {
		return v
	}
	return DefaultCustomerSource
}

// CustomerToLegacySource maps a customer source to the canonical vocabulary.
func CustomerToLegacySource(s CustomerSource) LeadSource {
	if v, ok := customerToLegacySource[s]; ok {
		return v
	}
	return DefaultLeadSource
}
