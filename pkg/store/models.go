package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"convwatch/pkg/domain"
)

// GORM models used for persistence.
type ConventionModel struct {
	ID              string `gorm:"primaryKey"`
	InstrumentID    string `gorm:"size:50;uniqueIndex;not null"`
	Title           string `gorm:"size:500"`
	Type            string `gorm:"size:50"`
	PublicationDate *time.Time `gorm:"index"`
	ValidityStart   *time.Time `gorm:"index"`
	ValidityEnd     *time.Time `gorm:"index"`
	EmployerUnion   string     `gorm:"size:255"`
	WorkerUnion     string     `gorm:"size:255"`
	Municipality    string     `gorm:"size:100;index"`
	State           string     `gorm:"size:2;index"`
	CNAE            string     `gorm:"size:7;index;column:cnae"`
	DocumentURL     string     `gorm:"type:text"`
	DocumentPath    string     `gorm:"type:text"`
	ExtractedText   string     `gorm:"type:text"`
	Format          string     `gorm:"size:20"`
	Status          string     `gorm:"size:20;not null"`
	Extras          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
}

func (ConventionModel) TableName() string { return "conventions" }

type CompanyModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	CNPJ         string    `gorm:"size:14;not null;index;column:cnpj"`
	LegalName    string    `gorm:"size:255"`
	CNAE         string    `gorm:"size:7;index;column:cnae"`
	Municipality string    `gorm:"size:100;index"`
	State        string    `gorm:"size:2;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (CompanyModel) TableName() string { return "companies" }

type ConventionCompanyLinkModel struct {
	ID           string    `gorm:"primaryKey"`
	ConventionID string    `gorm:"not null;uniqueIndex:idx_convention_company"`
	CompanyID    string    `gorm:"not null;uniqueIndex:idx_convention_company"`
	Score        int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (ConventionCompanyLinkModel) TableName() string { return "convention_company_links" }

type NotificationModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	ConventionID string    `gorm:"index"`
	Type         string    `gorm:"size:50;not null;index"`
	Title        string    `gorm:"size:255"`
	Message      string    `gorm:"type:text"`
	Read         bool      `gorm:"not null;default:false;index"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

func (NotificationModel) TableName() string { return "notifications" }

func conventionToModel(c domain.Convention) ConventionModel {
	var extras datatypes.JSON
	if len(c.Extras) > 0 {
		if raw, err := json.Marshal(c.Extras); err == nil {
			extras = raw
		}
	}
	return ConventionModel{
		ID:              c.ID,
		InstrumentID:    c.InstrumentID,
		Title:           c.Title,
		Type:            c.Type,
		PublicationDate: c.PublicationDate,
		ValidityStart:   c.ValidityStart,
		ValidityEnd:     c.ValidityEnd,
		EmployerUnion:   c.EmployerUnion,
		WorkerUnion:     c.WorkerUnion,
		Municipality:    c.Municipality,
		State:           c.State,
		CNAE:            c.CNAE,
		DocumentURL:     c.DocumentURL,
		DocumentPath:    c.DocumentPath,
		ExtractedText:   c.ExtractedText,
		Format:          string(c.Format),
		Status:          string(c.Status),
		Extras:          extras,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func conventionFromModel(m ConventionModel) domain.Convention {
	var extras map[string]string
	if len(m.Extras) > 0 {
		_ = json.Unmarshal(m.Extras, &extras)
	}
	return domain.Convention{
		ID:              m.ID,
		InstrumentID:    m.InstrumentID,
		Title:           m.Title,
		Type:            m.Type,
		PublicationDate: m.PublicationDate,
		ValidityStart:   m.ValidityStart,
		ValidityEnd:     m.ValidityEnd,
		EmployerUnion:   m.EmployerUnion,
		WorkerUnion:     m.WorkerUnion,
		Municipality:    m.Municipality,
		State:           m.State,
		CNAE:            m.CNAE,
		DocumentURL:     m.DocumentURL,
		DocumentPath:    m.DocumentPath,
		ExtractedText:   m.ExtractedText,
		Format:          domain.DocumentFormat(m.Format),
		Status:          domain.ConventionStatus(m.Status),
		Extras:          extras,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func companyFromModel(m CompanyModel) domain.Company {
	return domain.Company{
		ID:           m.ID,
		UserID:       m.UserID,
		CNPJ:         m.CNPJ,
		LegalName:    m.LegalName,
		CNAE:         m.CNAE,
		Municipality: m.Municipality,
		State:        m.State,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func linkToModel(l domain.ConventionCompanyLink) ConventionCompanyLinkModel {
	return ConventionCompanyLinkModel{
		ID:           l.ID,
		ConventionID: l.ConventionID,
		CompanyID:    l.CompanyID,
		Score:        l.Score,
		CreatedAt:    l.CreatedAt,
	}
}

func linkFromModel(m ConventionCompanyLinkModel) domain.ConventionCompanyLink {
	return domain.ConventionCompanyLink{
		ID:           m.ID,
		ConventionID: m.ConventionID,
		CompanyID:    m.CompanyID,
		Score:        m.Score,
		CreatedAt:    m.CreatedAt,
	}
}

func notificationToModel(n domain.Notification) NotificationModel {
	return NotificationModel{
		ID:           n.ID,
		UserID:       n.UserID,
		ConventionID: n.ConventionID,
		Type:         string(n.Type),
		Title:        n.Title,
		Message:      n.Message,
		Read:         n.Read,
		CreatedAt:    n.CreatedAt,
	}
}

func notificationFromModel(m NotificationModel) domain.Notification {
	return domain.Notification{
		ID:           m.ID,
		UserID:       m.UserID,
		ConventionID: m.ConventionID,
		Type:         domain.AlertType(m.Type),
		Title:        m.Title,
		Message:      m.Message,
		Read:         m.Read,
		CreatedAt:    m.CreatedAt,
	}
}
