package store

import (
	"sync"
	"time"

	"convwatch/pkg/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu            sync.Mutex
	conventions   map[string]domain.Convention // keyed by ID
	companies     map[string]domain.Company
	links         []domain.ConventionCompanyLink
	notifications []domain.Notification
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conventions: make(map[string]domain.Convention),
		companies:   make(map[string]domain.Company),
	}
}

// Transaction runs fn directly; the in-memory store offers no rollback.
func (s *MemoryStore) Transaction(fn func(Store) error) error {
	return fn(s)
}

// SeedCompany registers a company, standing in for the external account surface.
func (s *MemoryStore) SeedCompany(c domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

func (s *MemoryStore) CreateConvention(c *domain.Convention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conventions[c.ID] = *c
	return nil
}

func (s *MemoryStore) UpdateConventionResult(id, documentPath, text string, format domain.DocumentFormat, status domain.ConventionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conventions[id]
	if !ok {
		return ErrNotFound
	}
	c.DocumentPath = documentPath
	c.ExtractedText = text
	c.Format = format
	c.Status = status
	s.conventions[id] = c
	return nil
}

func (s *MemoryStore) ConventionExists(instrumentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conventions {
		if c.InstrumentID == instrumentID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetConventionByInstrumentID(instrumentID string) (domain.Convention, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conventions {
		if c.InstrumentID == instrumentID {
			return c, true, nil
		}
	}
	return domain.Convention{}, false, nil
}

func (s *MemoryStore) ListActiveConventions(ref time.Time) ([]domain.Convention, error) {
	return s.filterConventions(func(c domain.Convention) bool {
		return c.Status == domain.StatusProcessed && c.ValidityEnd != nil && !c.ValidityEnd.Before(ref)
	}), nil
}

func (s *MemoryStore) ListExpiredConventions(ref time.Time) ([]domain.Convention, error) {
	return s.filterConventions(func(c domain.Convention) bool {
		return c.Status == domain.StatusProcessed && c.ValidityEnd != nil && c.ValidityEnd.Before(ref)
	}), nil
}

func (s *MemoryStore) HasSuccessor(conv domain.Convention) (bool, error) {
	if conv.CNAE == "" || conv.Municipality == "" || conv.PublicationDate == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conventions {
		if c.ID == conv.ID || c.Status != domain.StatusProcessed || c.PublicationDate == nil {
			continue
		}
		if c.CNAE == conv.CNAE && c.Municipality == conv.Municipality && c.State == conv.State &&
			c.PublicationDate.After(*conv.PublicationDate) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListConventionsByCNAE(cnae string) ([]domain.Convention, error) {
	return s.filterConventions(func(c domain.Convention) bool {
		return c.Status == domain.StatusProcessed && c.CNAE == cnae
	}), nil
}

func (s *MemoryStore) ListConventionsByRegion(municipality, state string) ([]domain.Convention, error) {
	return s.filterConventions(func(c domain.Convention) bool {
		return c.Status == domain.StatusProcessed && c.Municipality == municipality && c.State == state
	}), nil
}

func (s *MemoryStore) filterConventions(keep func(domain.Convention) bool) []domain.Convention {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Convention
	for _, c := range s.conventions {
		if keep(c) {
			res = append(res, c)
		}
	}
	return res
}

func (s *MemoryStore) ListCompaniesByCNAE(cnae string) ([]domain.Company, error) {
	return s.filterCompanies(func(c domain.Company) bool { return c.CNAE == cnae }), nil
}

func (s *MemoryStore) ListCompaniesByRegion(municipality, state string) ([]domain.Company, error) {
	return s.filterCompanies(func(c domain.Company) bool {
		return c.Municipality == municipality && c.State == state
	}), nil
}

func (s *MemoryStore) ListCompaniesByCNAEAndRegion(cnae, municipality, state string) ([]domain.Company, error) {
	return s.filterCompanies(func(c domain.Company) bool {
		return c.CNAE == cnae && c.Municipality == municipality && c.State == state
	}), nil
}

func (s *MemoryStore) ListCompaniesByIDs(ids []string) ([]domain.Company, error) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return s.filterCompanies(func(c domain.Company) bool {
		_, ok := wanted[c.ID]
		return ok
	}), nil
}

func (s *MemoryStore) filterCompanies(keep func(domain.Company) bool) []domain.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Company
	for _, c := range s.companies {
		if keep(c) {
			res = append(res, c)
		}
	}
	return res
}

func (s *MemoryStore) LinkExists(conventionID, companyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.ConventionID == conventionID && l.CompanyID == companyID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateLink(l domain.ConventionCompanyLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = append(s.links, l)
	return nil
}

func (s *MemoryStore) ListLinksByConvention(conventionID string) ([]domain.ConventionCompanyLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.ConventionCompanyLink
	for _, l := range s.links {
		if l.ConventionID == conventionID {
			res = append(res, l)
		}
	}
	return res, nil
}

func (s *MemoryStore) UpsertUnreadNotification(n domain.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.notifications {
		if existing.UserID == n.UserID && existing.ConventionID == n.ConventionID &&
			existing.Type == n.Type && !existing.Read {
			s.notifications[i].Title = n.Title
			s.notifications[i].Message = n.Message
			return false, nil
		}
	}
	s.notifications = append(s.notifications, n)
	return true, nil
}

func (s *MemoryStore) ListNotificationsByUser(userID string) ([]domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			res = append(res, n)
		}
	}
	return res, nil
}
