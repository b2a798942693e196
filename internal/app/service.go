// Package app is the service facade and HTTP surface. The service
// validates input and attribution, delegates document changes to the
// reconcile core as pure transforms, and fans side effects (search
// indexing, announcement mail, flight refresh) out from there.
package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"tripboard/api/internal/archive"
	"tripboard/api/internal/auth"
	"tripboard/api/internal/email"
	"tripboard/api/internal/flight"
	"tripboard/api/internal/gate"
	"tripboard/api/internal/reconcile"
	"tripboard/api/internal/search"
	"tripboard/api/internal/store"
	"tripboard/api/internal/trip"
	"tripboard/api/internal/util"
)

type Deps struct {
	Core    *reconcile.Core
	Gate    *gate.Service
	Search  *search.Service
	Archive *archive.Service
	Email   *email.Service
	Store   store.Store

	SessionSecret []byte
	SessionTTL    time.Duration
}

type Service struct {
	core    *reconcile.Core
	gate    *gate.Service
	search  *search.Service
	archive *archive.Service
	email   *email.Service
	store   store.Store

	sessionSecret []byte
	sessionTTL    time.Duration
}

func NewService(deps Deps) *Service {
	ttl := deps.SessionTTL
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Service{
		core:          deps.Core,
		gate:          deps.Gate,
		search:        deps.Search,
		archive:       deps.Archive,
		email:         deps.Email,
		store:         deps.Store,
		sessionSecret: deps.SessionSecret,
		sessionTTL:    ttl,
	}
}

// Session is an unlocked participant. The name is attribution only;
// nothing prevents two participants from picking the same name.
type Session struct {
	Token     string
	Name      string
	ExpiresAt time.Time
}

// Unlock checks the shared passphrase and issues an actor token for
// the chosen display name.
func (s *Service) Unlock(passphrase, name string) (Session, error) {
	name, ok := gate.ValidName(name)
	if !ok {
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if err := s.gate.Verify(passphrase, s.core.Document().TripInfo.Password); err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "WRONG_PASSPHRASE", "Wrong passphrase", nil)
	}

	expires := time.Now().Add(s.sessionTTL)
	token, err := auth.IssueToken(s.sessionSecret, auth.Claims{
		Name: name,
		JTI:  util.NewID("session"),
		Exp:  expires.Unix(),
	})
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Name: name, ExpiresAt: expires}, nil
}

func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken(s.sessionSecret, token)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Name: claims.Name, ExpiresAt: time.Unix(claims.Exp, 0)}, nil
}

func (s *Service) Document() trip.Document {
	return s.core.Document()
}

func (s *Service) History() []trip.HistoryEntry {
	history := s.core.Document().EditHistory
	if history == nil {
		return []trip.HistoryEntry{}
	}
	return history
}

func (s *Service) SaveStatus() reconcile.Status {
	return s.core.Status()
}

// SaveNow forces an immediate write, bypassing the debounce.
func (s *Service) SaveNow(ctx context.Context) error {
	return s.core.Flush(ctx)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

func (s *Service) Revisions(limit int) ([]archive.Revision, error) {
	revisions, err := s.archive.Revisions(limit)
	if err != nil {
		return nil, err
	}
	if revisions == nil {
		revisions = []archive.Revision{}
	}
	return revisions, nil
}

// ── Field edits ──

func (s *Service) UpdateField(session Session, field trip.Field, value string) (trip.Document, error) {
	ok := false
	doc := s.core.Apply(func(d trip.Document) trip.Document {
		d, ok = trip.SetField(d, field, value)
		return d
	})
	if !ok {
		return doc, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown field or bad value: "+string(field), nil)
	}
	return doc, nil
}

func (s *Service) UpdateFlightField(session Session, leg trip.FlightLegKey, field trip.FlightField, value string) (trip.Document, error) {
	ok := false
	doc := s.core.Apply(func(d trip.Document) trip.Document {
		d, ok = trip.SetFlightField(d, leg, field, value)
		return d
	})
	if !ok {
		return doc, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown flight leg or field", nil)
	}
	return doc, nil
}

// ── Itinerary ──

func (s *Service) EditActivity(session Session, dayID, index int, text string) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.EditActivity(d, session.Name, dayID, index, text)
	})
}

func (s *Service) AddActivity(session Session, dayID int) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.AddActivity(d, session.Name, dayID)
	})
}

func (s *Service) RemoveActivity(session Session, dayID, index int) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.RemoveActivity(d, session.Name, dayID, index)
	})
}

func (s *Service) ReorderActivities(session Session, dayID, from, to int) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.ReorderActivities(d, session.Name, dayID, from, to)
	})
}

// ── Families ──

func (s *Service) AddFamily(session Session, lastName string) (trip.Document, error) {
	lastName, ok := gate.ValidName(lastName)
	if !ok {
		return s.core.Document(), domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "lastName is required", nil)
	}
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.AddFamily(d, session.Name, lastName)
	}), nil
}

func (s *Service) RemoveFamily(session Session, familyID trip.ID) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.RemoveFamily(d, session.Name, familyID)
	})
}

func (s *Service) AddFamilyMember(session Session, familyID trip.ID) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.AddFamilyMember(d, session.Name, familyID)
	})
}

func (s *Service) RemoveFamilyMember(session Session, familyID, memberID trip.ID) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.RemoveFamilyMember(d, session.Name, familyID, memberID)
	})
}

func (s *Service) UpdateFamilyMember(session Session, familyID, memberID trip.ID, field trip.MemberField, value string) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.UpdateFamilyMember(d, session.Name, familyID, memberID, field, value)
	})
}

// ── Recommendations, polls, tips, announcements ──

func (s *Service) AddRecommendation(session Session, title, description, category string) (trip.Document, error) {
	title, ok := gate.ValidName(title)
	if !ok {
		return s.core.Document(), domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.AddRecommendation(d, session.Name, title, description, category)
	}), nil
}

func (s *Service) VoteRecommendation(session Session, id trip.ID) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.VoteRecommendation(d, session.Name, id)
	})
}

func (s *Service) AddPoll(session Session, question string, options []string) (trip.Document, error) {
	question, ok := gate.ValidName(question)
	if !ok {
		return s.core.Document(), domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "question is required", nil)
	}
	var cleaned []string
	for _, opt := range options {
		if opt, ok := gate.ValidName(opt); ok {
			cleaned = append(cleaned, opt)
		}
	}
	if len(cleaned) < 2 {
		return s.core.Document(), domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "at least two options are required", nil)
	}
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.AddPoll(d, session.Name, question, cleaned)
	}), nil
}

func (s *Service) VotePoll(session Session, pollID trip.ID, optionIndex int) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.VotePoll(d, session.Name, pollID, optionIndex)
	})
}

func (s *Service) RemovePoll(session Session, pollID trip.ID) trip.Document {
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.RemovePoll(d, session.Name, pollID)
	})
}

func (s *Service) AddBudgetTip(session Session, text, category string) (trip.Document, error) {
	text, ok := gate.ValidName(text)
	if !ok {
		return s.core.Document(), domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.AddBudgetTip(d, session.Name, text, category)
	}), nil
}

// RemoveBudgetTip deletes a participant-added tip. Seed tips stay.
func (s *Service) RemoveBudgetTip(session Session, tipID trip.ID) (trip.Document, error) {
	for _, tip := range s.core.Document().BudgetTips {
		if tip.ID == tipID && tip.AddedBy == trip.SystemActor {
			return s.core.Document(), domainError(http.StatusForbidden, "FORBIDDEN", "seed tips cannot be removed", nil)
		}
	}
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.RemoveBudgetTip(d, session.Name, tipID)
	}), nil
}

// PostAnnouncement publishes an announcement and, when SMTP is
// configured, mails it to the recipient list in the background.
func (s *Service) PostAnnouncement(session Session, text string) (trip.Document, error) {
	text, ok := gate.ValidName(text)
	if !ok {
		return s.core.Document(), domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "text is required", nil)
	}
	doc := s.core.Apply(func(d trip.Document) trip.Document {
		return trip.PostAnnouncement(d, session.Name, text)
	})
	if s.email != nil {
		go func(title, author, body string) {
			if err := s.email.SendAnnouncement(title, author, body); err != nil {
				log.Printf("app: announcement mail: %v", err)
			}
		}(doc.TripInfo.Title, session.Name, text)
	}
	return doc, nil
}

// ── Flight tracking ──

// TrackFlight stamps a FlightAware link onto a leg on demand.
func (s *Service) TrackFlight(session Session, leg trip.FlightLegKey) (trip.Document, error) {
	doc := s.core.Document()
	var current trip.FlightLeg
	switch leg {
	case trip.LegArrival:
		current = doc.Flights.Arrival
	case trip.LegDeparture:
		current = doc.Flights.Departure
	default:
		return doc, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown flight leg", nil)
	}
	status, ok := flight.Track(current, time.Now())
	if !ok {
		return doc, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "flight has no airline or number to track", nil)
	}
	return s.core.Apply(func(d trip.Document) trip.Document {
		return trip.SetFlightStatus(d, session.Name, leg, status)
	}), nil
}

// RefreshImminentFlights restamps tracking on legs departing today or
// tomorrow. Driven by RunFlightRefresher; attribution goes to the
// system actor, not a participant.
func (s *Service) RefreshImminentFlights(now time.Time) {
	doc := s.core.Document()
	legs := map[trip.FlightLegKey]trip.FlightLeg{
		trip.LegArrival:   doc.Flights.Arrival,
		trip.LegDeparture: doc.Flights.Departure,
	}
	for key, leg := range legs {
		if !flight.Imminent(leg, now) {
			continue
		}
		status, ok := flight.Track(leg, now)
		if !ok {
			continue
		}
		key := key
		s.core.Apply(func(d trip.Document) trip.Document {
			return trip.SetFlightStatus(d, trip.SystemActor, key, status)
		})
	}
}

// RunFlightRefresher keeps tracking stamps current while any leg is
// imminent. Blocks until ctx is done.
func (s *Service) RunFlightRefresher(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.RefreshImminentFlights(now)
		}
	}
}
