package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Config struct {
	MatchLimit  int
	OfferTTL    time.Duration
	MaxRefusals int
}

func (c Config) withDefaults() Config {
	if c.MatchLimit <= 0 {
		c.MatchLimit = DefaultMatchLimit
	}
	if c.OfferTTL <= 0 {
		c.OfferTTL = DefaultOfferTTL
	}
	if c.MaxRefusals <= 0 {
		c.MaxRefusals = DefaultMaxRefusals
	}
	return c
}

// Observer is notified of offers and responses.
type Observer interface {
	OffersMade(n int)
	OfferResolved(response string)
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

type Service struct {
	store    Store
	notifier Notifier
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
	observer Observer
}

func NewService(store Store, notifier Notifier, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Matches ranks the active waitlist for a slot without making offers.
func (s *Service) Matches(ctx context.Context, v Vacancy) ([]Match, error) {
	entries, err := s.store.ListActive(ctx, v.OrgID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return FindMatches(v.Date, v.Time, entries, s.now()), nil
}

// OfferVacancy offers a freed slot to the best ranked entries that are not
// already holding an offer, then hands them to the notifier.
func (s *Service) OfferVacancy(ctx context.Context, v Vacancy) ([]Match, error) {
	now := s.now()

	entries, err := s.store.ListActive(ctx, v.OrgID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}

	free := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.HasPendingOffer(now) {
			free = append(free, e)
		}
	}

	ranked := FindMatches(v.Date, v.Time, free, now)
	if len(ranked) > s.cfg.MatchLimit {
		ranked = ranked[:s.cfg.MatchLimit]
	}

	offered := make([]Match, 0, len(ranked))
	for _, m := range ranked {
		entry := m.Entry
		if err := entry.MakeOffer(v.Date, v.Time, now, s.cfg.OfferTTL); err != nil {
			continue
		}
		if err := s.store.RecordOffer(ctx, entry.ID, *entry.Offer); err != nil {
			s.logger.Error().Err(err).
				Str("entry_id", entry.ID.String()).
				Msg("failed to record waitlist offer")
			continue
		}
		m.Entry = entry
		offered = append(offered, m)
	}

	if s.observer != nil {
		s.observer.OffersMade(len(offered))
	}

	s.logger.Info().
		Str("org_id", v.OrgID.String()).
		Str("date", v.Date.String()).
		Str("time", v.Time.String()).
		Int("candidates", len(free)).
		Int("offered", len(offered)).
		Msg("vacancy offered to waitlist")

	if len(offered) == 0 || s.notifier == nil {
		return offered, nil
	}
	if err := s.notifier.NotifyMatches(ctx, v, offered); err != nil {
		return offered, fmt.Errorf("notify matches: %w", err)
	}
	return offered, nil
}

// Respond records the patient's answer to the outstanding offer. Entries of
// another org are reported as not found.
func (s *Service) Respond(ctx context.Context, orgID, entryID uuid.UUID, accepted bool) (*Entry, error) {
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.OrgID != orgID {
		return nil, ErrEntryNotFound
	}
	if entry.Offer == nil {
		return nil, ErrNoOffer
	}
	if entry.Offer.Expired(s.now()) {
		// Late answers are handled as the expiry they already are.
		if _, err := s.expire(ctx, entry); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: offer expired", ErrNoOffer)
	}

	response, err := ApplyResponse(entry, accepted, s.cfg.MaxRefusals)
	if err != nil {
		return nil, err
	}
	if err := s.store.RecordResponse(ctx, *entry, response); err != nil {
		return nil, fmt.Errorf("record response: %w", err)
	}
	if s.observer != nil {
		s.observer.OfferResolved(string(response))
	}

	s.logger.Info().
		Str("entry_id", entry.ID.String()).
		Str("response", string(response)).
		Str("status", string(entry.Status)).
		Int("refusal_count", entry.RefusalCount).
		Msg("waitlist offer answered")

	return entry, nil
}

// ExpireStaleOffers counts every offer past its deadline as a refusal and
// returns how many entries were updated.
func (s *Service) ExpireStaleOffers(ctx context.Context) (int, error) {
	entries, err := s.store.ListExpiredOffers(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list expired offers: %w", err)
	}

	var errs []error
	expired := 0
	for i := range entries {
		ok, err := s.expire(ctx, &entries[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

func (s *Service) expire(ctx context.Context, e *Entry) (bool, error) {
	changed, err := ExpireOffer(e, s.now(), s.cfg.MaxRefusals)
	if err != nil || !changed {
		return false, err
	}
	if err := s.store.RecordResponse(ctx, *e, ResponseExpired); err != nil {
		return false, fmt.Errorf("expire offer for %s: %w", e.ID, err)
	}
	if s.observer != nil {
		s.observer.OfferResolved(string(ResponseExpired))
	}
	s.logger.Info().
		Str("entry_id", e.ID.String()).
		Str("status", string(e.Status)).
		Int("refusal_count", e.RefusalCount).
		Msg("waitlist offer expired")
	return true, nil
}
