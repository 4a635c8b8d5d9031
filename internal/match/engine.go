package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"convwatch/internal/util"
	"convwatch/pkg/domain"
	"convwatch/pkg/store"
)

// Notifier publishes a notification to an external channel. Publishing is best
// effort; persistence is the source of truth.
type Notifier interface {
	PublishNotification(ctx context.Context, n domain.Notification) error
}

// Engine links conventions to the companies they may apply to.
//
// Scoring is additive: 50 points for a CNAE match, 50 for a region match, so a
// link carries 50 or 100. Candidates come from the union of both axes, which
// means a company can be linked by region alone even when its CNAE differs.
type Engine struct {
	store    store.Store
	notifier Notifier
	logger   *slog.Logger
}

func NewEngine(s store.Store, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: s, notifier: notifier, logger: logger}
}

// MatchConvention finds companies affected by a newly ingested convention,
// creates the missing links and notifies each affected user once. Returns the
// number of links created.
func (e *Engine) MatchConvention(ctx context.Context, conv domain.Convention) (int, error) {
	candidates, err := e.candidateCompanies(conv)
	if err != nil {
		return 0, err
	}

	created := 0
	notify := make(map[string]domain.Company)
	var notifyOrder []string
	for _, comp := range candidates {
		points := Score(conv, comp)
		if points == 0 {
			continue
		}
		exists, err := e.store.LinkExists(conv.ID, comp.ID)
		if err != nil {
			return created, fmt.Errorf("check link: %w", err)
		}
		if exists {
			continue
		}
		link := domain.ConventionCompanyLink{
			ID:           util.NewID(),
			ConventionID: conv.ID,
			CompanyID:    comp.ID,
			Score:        points,
		}
		if err := e.store.CreateLink(link); err != nil {
			return created, fmt.Errorf("create link: %w", err)
		}
		created++
		if _, seen := notify[comp.UserID]; !seen {
			notify[comp.UserID] = comp
			notifyOrder = append(notifyOrder, comp.UserID)
		}
	}

	for _, userID := range notifyOrder {
		if err := e.notifyNewConvention(ctx, userID, conv, notify[userID]); err != nil {
			return created, err
		}
	}
	e.logger.Info("matched convention", "instrument_id", conv.InstrumentID, "candidates", len(candidates), "links_created", created)
	return created, nil
}

// MatchCompany runs the same matching from the company side, used when a
// subscriber registers a company after conventions were already ingested.
func (e *Engine) MatchCompany(ctx context.Context, comp domain.Company) (int, error) {
	candidates, err := e.candidateConventions(comp)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, conv := range candidates {
		points := Score(conv, comp)
		if points == 0 {
			continue
		}
		exists, err := e.store.LinkExists(conv.ID, comp.ID)
		if err != nil {
			return created, fmt.Errorf("check link: %w", err)
		}
		if exists {
			continue
		}
		link := domain.ConventionCompanyLink{
			ID:           util.NewID(),
			ConventionID: conv.ID,
			CompanyID:    comp.ID,
			Score:        points,
		}
		if err := e.store.CreateLink(link); err != nil {
			return created, fmt.Errorf("create link: %w", err)
		}
		created++
		if err := e.notifyNewConvention(ctx, comp.UserID, conv, comp); err != nil {
			return created, err
		}
	}
	e.logger.Info("matched company", "company_id", comp.ID, "candidates", len(candidates), "links_created", created)
	return created, nil
}

// Score rates how well a convention fits a company: 50 points per matching
// axis, so 0, 50 or 100.
func Score(conv domain.Convention, comp domain.Company) int {
	points := 0
	if conv.CNAE != "" && conv.CNAE == comp.CNAE {
		points += 50
	}
	if regionMatches(conv, comp) {
		points += 50
	}
	return points
}

func regionMatches(conv domain.Convention, comp domain.Company) bool {
	if conv.Municipality == "" || comp.Municipality == "" {
		return false
	}
	return strings.EqualFold(conv.Municipality, comp.Municipality) &&
		strings.EqualFold(conv.State, comp.State)
}

func (e *Engine) candidateCompanies(conv domain.Convention) ([]domain.Company, error) {
	var out []domain.Company
	seen := make(map[string]struct{})
	add := func(list []domain.Company) {
		for _, c := range list {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	if conv.CNAE != "" {
		byCNAE, err := e.store.ListCompaniesByCNAE(conv.CNAE)
		if err != nil {
			return nil, fmt.Errorf("list companies by cnae: %w", err)
		}
		add(byCNAE)
	}
	if conv.Municipality != "" {
		byRegion, err := e.store.ListCompaniesByRegion(conv.Municipality, conv.State)
		if err != nil {
			return nil, fmt.Errorf("list companies by region: %w", err)
		}
		add(byRegion)
	}
	return out, nil
}

func (e *Engine) candidateConventions(comp domain.Company) ([]domain.Convention, error) {
	var out []domain.Convention
	seen := make(map[string]struct{})
	add := func(list []domain.Convention) {
		for _, c := range list {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	if comp.CNAE != "" {
		byCNAE, err := e.store.ListConventionsByCNAE(comp.CNAE)
		if err != nil {
			return nil, fmt.Errorf("list conventions by cnae: %w", err)
		}
		add(byCNAE)
	}
	if comp.Municipality != "" {
		byRegion, err := e.store.ListConventionsByRegion(comp.Municipality, comp.State)
		if err != nil {
			return nil, fmt.Errorf("list conventions by region: %w", err)
		}
		add(byRegion)
	}
	return out, nil
}

func (e *Engine) notifyNewConvention(ctx context.Context, userID string, conv domain.Convention, comp domain.Company) error {
	n := domain.Notification{
		ID:           util.NewID(),
		UserID:       userID,
		ConventionID: conv.ID,
		Type:         domain.AlertNewConvention,
		Title:        "Nova convenção coletiva",
		Message:      fmt.Sprintf("A convenção \"%s\" pode se aplicar à empresa %s.", conv.Title, comp.LegalName),
	}
	if _, err := e.store.UpsertUnreadNotification(n); err != nil {
		return fmt.Errorf("upsert notification: %w", err)
	}
	if e.notifier != nil {
		if err := e.notifier.PublishNotification(ctx, n); err != nil {
			e.logger.Warn("notification publish failed", "user_id", userID, "err", err)
		}
	}
	return nil
}
