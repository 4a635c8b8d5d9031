package domain

import "time"

// ConventionStatus tracks the processing lifecycle of an ingested convention.
type ConventionStatus string

const (
	StatusProcessing ConventionStatus = "PROCESSING"
	StatusProcessed  ConventionStatus = "PROCESSED"
	StatusError      ConventionStatus = "ERROR"
)

// DocumentFormat identifies how the source document body was produced.
type DocumentFormat string

const (
	FormatMarkup     DocumentFormat = "MARKUP"
	FormatPDFNative  DocumentFormat = "PDF_NATIVE"
	FormatPDFScanned DocumentFormat = "PDF_SCANNED"
	FormatUnknown    DocumentFormat = "UNKNOWN"
)

// AlertType tags a notification with the event that produced it.
type AlertType string

const (
	AlertNewConvention AlertType = "NEW_CONVENTION"
	AlertUrgent7       AlertType = "URGENT_7"
	AlertUrgent15      AlertType = "URGENT_15"
	AlertUpcoming30    AlertType = "UPCOMING_30"
	AlertUpcoming60    AlertType = "UPCOMING_60"
	AlertUpcoming90    AlertType = "UPCOMING_90"
	AlertExpired       AlertType = "EXPIRED"
)

// MaxExtractedTextRunes bounds stored full text; longer extractions are truncated.
const MaxExtractedTextRunes = 1_000_000

// Convention is one collective labor agreement ingested from the Mediador registry.
// InstrumentID is the registry's own primary key and is globally unique here.
type Convention struct {
	ID              string            `json:"id"`
	InstrumentID    string            `json:"instrumentId"`
	Title           string            `json:"title"`
	Type            string            `json:"type"`
	PublicationDate *time.Time        `json:"publicationDate,omitempty"`
	ValidityStart   *time.Time        `json:"validityStart,omitempty"`
	ValidityEnd     *time.Time        `json:"validityEnd,omitempty"`
	EmployerUnion   string            `json:"employerUnion,omitempty"`
	WorkerUnion     string            `json:"workerUnion,omitempty"`
	Municipality    string            `json:"municipality,omitempty"`
	State           string            `json:"state,omitempty"`
	CNAE            string            `json:"cnae,omitempty"`
	DocumentURL     string            `json:"documentUrl,omitempty"`
	DocumentPath    string            `json:"-"`
	ExtractedText   string            `json:"-"`
	Format          DocumentFormat    `json:"format"`
	Status          ConventionStatus  `json:"status"`
	Extras          map[string]string `json:"extras,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Company is a subscriber organization registered by a user. The pipeline only
// reads companies; they are managed by the excluded account surface.
type Company struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	CNPJ         string    `json:"cnpj"`
	LegalName    string    `json:"legalName"`
	CNAE         string    `json:"cnae,omitempty"`
	Municipality string    `json:"municipality,omitempty"`
	State        string    `json:"state,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConventionCompanyLink associates a convention with a company it may apply to.
// At most one link exists per (convention, company) pair; Score is 0, 50 or 100.
type ConventionCompanyLink struct {
	ID           string    `json:"id"`
	ConventionID string    `json:"conventionId"`
	CompanyID    string    `json:"companyId"`
	Score        int       `json:"score"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Notification is one message for the owner of an affected company. For a given
// (user, convention, type) at most one unread notification exists at a time.
type Notification struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	ConventionID string    `json:"conventionId,omitempty"`
	Type         AlertType `json:"type"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"createdAt"`
}
