package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"convwatch/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&ConventionModel{}, &CompanyModel{}, &ConventionCompanyLinkModel{}, &NotificationModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Transaction runs fn against a transaction-bound store. Any error rolls
// back every write made inside fn.
func (s *GormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// CreateConvention inserts a new convention record.
func (s *GormStore) CreateConvention(c *domain.Convention) error {
	model := conventionToModel(*c)
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("create convention: %w", err)
	}
	return nil
}

// UpdateConventionResult records the processing outcome for a convention.
func (s *GormStore) UpdateConventionResult(id, documentPath, text string, format domain.DocumentFormat, status domain.ConventionStatus) error {
	updates := map[string]any{
		"document_path":  documentPath,
		"extracted_text": text,
		"format":         string(format),
		"status":         string(status),
	}
	res := s.db.Model(&ConventionModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update convention result: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ConventionExists reports whether an instrument ID was already ingested.
func (s *GormStore) ConventionExists(instrumentID string) (bool, error) {
	var count int64
	if err := s.db.Model(&ConventionModel{}).Where("instrument_id = ?", instrumentID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetConventionByInstrumentID looks up a convention by its external key.
func (s *GormStore) GetConventionByInstrumentID(instrumentID string) (domain.Convention, bool, error) {
	var model ConventionModel
	if err := s.db.Where("instrument_id = ?", instrumentID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Convention{}, false, nil
		}
		return domain.Convention{}, false, err
	}
	return conventionFromModel(model), true, nil
}

// ListActiveConventions returns processed conventions still in validity at ref.
func (s *GormStore) ListActiveConventions(ref time.Time) ([]domain.Convention, error) {
	return s.listConventions("validity_end >= ? AND status = ?", ref, string(domain.StatusProcessed))
}

// ListExpiredConventions returns processed conventions whose validity ended before ref.
func (s *GormStore) ListExpiredConventions(ref time.Time) ([]domain.Convention, error) {
	return s.listConventions("validity_end < ? AND status = ?", ref, string(domain.StatusProcessed))
}

// HasSuccessor reports whether a later processed convention covers the same
// CNAE and region, indicating a new negotiation already exists.
func (s *GormStore) HasSuccessor(conv domain.Convention) (bool, error) {
	if conv.CNAE == "" || conv.Municipality == "" || conv.PublicationDate == nil {
		return false, nil
	}
	var count int64
	err := s.db.Model(&ConventionModel{}).
		Where("cnae = ? AND municipality = ? AND state = ?", conv.CNAE, conv.Municipality, conv.State).
		Where("publication_date > ? AND id <> ? AND status = ?", conv.PublicationDate, conv.ID, string(domain.StatusProcessed)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListConventionsByCNAE returns processed conventions with the given industry code.
func (s *GormStore) ListConventionsByCNAE(cnae string) ([]domain.Convention, error) {
	return s.listConventions("cnae = ? AND status = ?", cnae, string(domain.StatusProcessed))
}

// ListConventionsByRegion returns processed conventions for a municipality/state.
func (s *GormStore) ListConventionsByRegion(municipality, state string) ([]domain.Convention, error) {
	return s.listConventions("municipality = ? AND state = ? AND status = ?", municipality, state, string(domain.StatusProcessed))
}

func (s *GormStore) listConventions(query string, args ...any) ([]domain.Convention, error) {
	var models []ConventionModel
	if err := s.db.Where(query, args...).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Convention, 0, len(models))
	for _, m := range models {
		res = append(res, conventionFromModel(m))
	}
	return res, nil
}

// ListCompaniesByCNAE returns companies sharing the industry code.
func (s *GormStore) ListCompaniesByCNAE(cnae string) ([]domain.Company, error) {
	return s.listCompanies("cnae = ?", cnae)
}

// ListCompaniesByRegion returns companies in the municipality/state.
func (s *GormStore) ListCompaniesByRegion(municipality, state string) ([]domain.Company, error) {
	return s.listCompanies("municipality = ? AND state = ?", municipality, state)
}

// ListCompaniesByCNAEAndRegion returns companies matching both attributes.
func (s *GormStore) ListCompaniesByCNAEAndRegion(cnae, municipality, state string) ([]domain.Company, error) {
	return s.listCompanies("cnae = ? AND municipality = ? AND state = ?", cnae, municipality, state)
}

// ListCompaniesByIDs returns the companies with the given IDs.
func (s *GormStore) ListCompaniesByIDs(ids []string) ([]domain.Company, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.listCompanies("id IN ?", ids)
}

func (s *GormStore) listCompanies(query string, args ...any) ([]domain.Company, error) {
	var models []CompanyModel
	if err := s.db.Where(query, args...).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Company, 0, len(models))
	for _, m := range models {
		res = append(res, companyFromModel(m))
	}
	return res, nil
}

// LinkExists reports whether the (convention, company) pair is already linked.
func (s *GormStore) LinkExists(conventionID, companyID string) (bool, error) {
	var count int64
	err := s.db.Model(&ConventionCompanyLinkModel{}).
		Where("convention_id = ? AND company_id = ?", conventionID, companyID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateLink inserts a scored association.
func (s *GormStore) CreateLink(l domain.ConventionCompanyLink) error {
	model := linkToModel(l)
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// ListLinksByConvention returns all links for a convention.
func (s *GormStore) ListLinksByConvention(conventionID string) ([]domain.ConventionCompanyLink, error) {
	var models []ConventionCompanyLinkModel
	if err := s.db.Where("convention_id = ?", conventionID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ConventionCompanyLink, 0, len(models))
	for _, m := range models {
		res = append(res, linkFromModel(m))
	}
	return res, nil
}

// UpsertUnreadNotification creates or refreshes the unread notification for
// (user, convention, type). See Store for semantics.
func (s *GormStore) UpsertUnreadNotification(n domain.Notification) (bool, error) {
	var existing NotificationModel
	err := s.db.Where("user_id = ? AND convention_id = ? AND type = ? AND read = ?",
		n.UserID, n.ConventionID, string(n.Type), false).First(&existing).Error
	if err == nil {
		if existing.Title == n.Title && existing.Message == n.Message {
			return false, nil
		}
		updates := map[string]any{"title": n.Title, "message": n.Message}
		if err := s.db.Model(&NotificationModel{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return false, fmt.Errorf("update notification: %w", err)
		}
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}
	model := notificationToModel(n)
	if err := s.db.Create(&model).Error; err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	return true, nil
}

// ListNotificationsByUser returns a user's notifications, newest first.
func (s *GormStore) ListNotificationsByUser(userID string) ([]domain.Notification, error) {
	var models []NotificationModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		res = append(res, notificationFromModel(m))
	}
	return res, nil
}
