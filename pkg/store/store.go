package store

import (
	"errors"
	"time"

	"convwatch/pkg/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Store is the persistence surface required by the ingestion pipeline.
// Companies are written by the external account surface; the pipeline only
// reads them. Transaction scopes a group of writes so one identifier's
// partial writes can be rolled back without aborting the run.
type Store interface {
	Transaction(fn func(Store) error) error

	CreateConvention(c *domain.Convention) error
	// UpdateConventionResult records the processing outcome for a convention
	// created in the PROCESSING state.
	UpdateConventionResult(id, documentPath, text string, format domain.DocumentFormat, status domain.ConventionStatus) error
	ConventionExists(instrumentID string) (bool, error)
	GetConventionByInstrumentID(instrumentID string) (domain.Convention, bool, error)
	ListActiveConventions(ref time.Time) ([]domain.Convention, error)
	ListExpiredConventions(ref time.Time) ([]domain.Convention, error)
	HasSuccessor(conv domain.Convention) (bool, error)
	ListConventionsByCNAE(cnae string) ([]domain.Convention, error)
	ListConventionsByRegion(municipality, state string) ([]domain.Convention, error)

	ListCompaniesByCNAE(cnae string) ([]domain.Company, error)
	ListCompaniesByRegion(municipality, state string) ([]domain.Company, error)
	ListCompaniesByCNAEAndRegion(cnae, municipality, state string) ([]domain.Company, error)
	ListCompaniesByIDs(ids []string) ([]domain.Company, error)

	LinkExists(conventionID, companyID string) (bool, error)
	CreateLink(l domain.ConventionCompanyLink) error
	ListLinksByConvention(conventionID string) ([]domain.ConventionCompanyLink, error)

	// UpsertUnreadNotification creates the notification unless an unread one
	// already exists for the same (user, convention, type); in that case the
	// existing row's title/message are updated in place. Returns true when a
	// new row was created.
	UpsertUnreadNotification(n domain.Notification) (bool, error)
	ListNotificationsByUser(userID string) ([]domain.Notification, error)
}
