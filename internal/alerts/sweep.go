package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"convwatch/internal/util"
	"convwatch/pkg/domain"
	"convwatch/pkg/store"
)

// Notifier publishes a notification to an external channel. Publishing is best
// effort; persistence is the source of truth.
type Notifier interface {
	PublishNotification(ctx context.Context, n domain.Notification) error
}

// expiredAlertWindow caps how long after expiry a convention keeps producing
// EXPIRED alerts. Beyond it the document is considered historical.
const expiredAlertWindow = 180

// Sweeper walks the convention base and raises expiration alerts for the
// owners of affected companies.
type Sweeper struct {
	store    store.Store
	notifier Notifier
	logger   *slog.Logger
}

func NewSweeper(s store.Store, notifier Notifier, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: s, notifier: notifier, logger: logger}
}

// Sweep examines every processed convention against the reference date and
// upserts one unread notification per (user, convention, tier). A failure on
// one convention is logged and does not stop the rest. Returns the number of
// notifications created.
//
// ref is truncated to its calendar day so the active/expired split agrees
// with the day-granular tier math: a convention ending on the reference day
// is still active, with zero days remaining.
func (sw *Sweeper) Sweep(ctx context.Context, ref time.Time) (int, error) {
	ref = time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	created := 0

	active, err := sw.store.ListActiveConventions(ref)
	if err != nil {
		return 0, fmt.Errorf("list active conventions: %w", err)
	}
	for _, conv := range active {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := sw.sweepActive(ctx, conv, ref)
		if err != nil {
			sw.logger.Error("alert sweep failed for convention", "instrument_id", conv.InstrumentID, "err", err)
			continue
		}
		created += n
	}

	expired, err := sw.store.ListExpiredConventions(ref)
	if err != nil {
		return created, fmt.Errorf("list expired conventions: %w", err)
	}
	for _, conv := range expired {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := sw.sweepExpired(ctx, conv, ref)
		if err != nil {
			sw.logger.Error("alert sweep failed for convention", "instrument_id", conv.InstrumentID, "err", err)
			continue
		}
		created += n
	}

	sw.logger.Info("alert sweep finished", "ref", ref.Format("2006-01-02"), "notifications_created", created)
	return created, nil
}

func (sw *Sweeper) sweepActive(ctx context.Context, conv domain.Convention, ref time.Time) (int, error) {
	days := daysBetween(ref, *conv.ValidityEnd)
	tier, ok := tierFor(days)
	if !ok {
		return 0, nil
	}
	return sw.raise(ctx, conv, tier, days)
}

func (sw *Sweeper) sweepExpired(ctx context.Context, conv domain.Convention, ref time.Time) (int, error) {
	days := daysBetween(ref, *conv.ValidityEnd)
	if -days > expiredAlertWindow {
		return 0, nil
	}
	replaced, err := sw.store.HasSuccessor(conv)
	if err != nil {
		return 0, fmt.Errorf("check successor: %w", err)
	}
	if replaced {
		return 0, nil
	}
	return sw.raise(ctx, conv, domain.AlertExpired, days)
}

func (sw *Sweeper) raise(ctx context.Context, conv domain.Convention, tier domain.AlertType, days int) (int, error) {
	users, err := sw.affectedUsers(conv)
	if err != nil {
		return 0, err
	}
	title, message := alertText(tier, conv, days)
	created := 0
	for _, userID := range users {
		n := domain.Notification{
			ID:           util.NewID(),
			UserID:       userID,
			ConventionID: conv.ID,
			Type:         tier,
			Title:        title,
			Message:      message,
		}
		fresh, err := sw.store.UpsertUnreadNotification(n)
		if err != nil {
			return created, fmt.Errorf("upsert notification: %w", err)
		}
		if fresh {
			created++
		}
		if sw.notifier != nil {
			if err := sw.notifier.PublishNotification(ctx, n); err != nil {
				sw.logger.Warn("notification publish failed", "user_id", userID, "err", err)
			}
		}
	}
	return created, nil
}

// affectedUsers resolves the distinct owners of companies tied to the
// convention. Linked companies win; without links it falls back to companies
// sharing both the CNAE and the region.
func (sw *Sweeper) affectedUsers(conv domain.Convention) ([]string, error) {
	links, err := sw.store.ListLinksByConvention(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	var companies []domain.Company
	if len(links) > 0 {
		ids := make([]string, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.CompanyID)
		}
		companies, err = sw.store.ListCompaniesByIDs(ids)
		if err != nil {
			return nil, fmt.Errorf("list companies: %w", err)
		}
	} else if conv.CNAE != "" && conv.Municipality != "" {
		companies, err = sw.store.ListCompaniesByCNAEAndRegion(conv.CNAE, conv.Municipality, conv.State)
		if err != nil {
			return nil, fmt.Errorf("list companies by cnae and region: %w", err)
		}
	}

	seen := make(map[string]struct{})
	var users []string
	for _, c := range companies {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		users = append(users, c.UserID)
	}
	return users, nil
}

// tierFor maps days-until-expiry onto the tightest alert tier.
func tierFor(days int) (domain.AlertType, bool) {
	switch {
	case days < 0:
		return "", false
	case days <= 7:
		return domain.AlertUrgent7, true
	case days <= 15:
		return domain.AlertUrgent15, true
	case days <= 30:
		return domain.AlertUpcoming30, true
	case days <= 60:
		return domain.AlertUpcoming60, true
	case days <= 90:
		return domain.AlertUpcoming90, true
	default:
		return "", false
	}
}

// daysBetween counts whole calendar days from ref to end; negative when end is
// in the past.
func daysBetween(ref, end time.Time) int {
	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(endDay.Sub(refDay).Hours() / 24)
}

func alertText(tier domain.AlertType, conv domain.Convention, days int) (string, string) {
	endStr := conv.ValidityEnd.Format("02/01/2006")
	switch tier {
	case domain.AlertUrgent7:
		return "⚠️ Convenção vence em poucos dias",
			fmt.Sprintf("URGENTE: a convenção \"%s\" vence em %d dia(s), em %s. Inicie a renovação imediatamente.", conv.Title, days, endStr)
	case domain.AlertUrgent15:
		return "⚠️ Vencimento próximo de convenção",
			fmt.Sprintf("Atenção: a convenção \"%s\" vence em %d dias, em %s.", conv.Title, days, endStr)
	case domain.AlertUpcoming30:
		return "Convenção vence em até 30 dias",
			fmt.Sprintf("A convenção \"%s\" vence em %d dias, em %s.", conv.Title, days, endStr)
	case domain.AlertUpcoming60:
		return "Convenção vence em até 60 dias",
			fmt.Sprintf("A convenção \"%s\" vence em %d dias, em %s.", conv.Title, days, endStr)
	case domain.AlertUpcoming90:
		return "Convenção vence em até 90 dias",
			fmt.Sprintf("A convenção \"%s\" vence em %d dias, em %s.", conv.Title, days, endStr)
	case domain.AlertExpired:
		return "Convenção vencida sem substituta",
			fmt.Sprintf("A convenção \"%s\" venceu em %s e nenhum instrumento substituto foi registrado.", conv.Title, endStr)
	default:
		return "", ""
	}
}
