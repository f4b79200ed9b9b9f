package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/onetoone/internal/adapters/report"
	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/pairing"
	"github.com/okian/onetoone/internal/domain/roster"
	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

// EventInfo returns the event title, description and date.
func (s *Service) EventInfo(ctx context.Context) model.EventInfo {
	var info model.EventInfo
	var g errgroup.Group
	g.Go(func() error { info.Title = s.title.Get(ctx); return nil })
	g.Go(func() error { info.Description = s.description.Get(ctx); return nil })
	g.Go(func() error { info.Date = s.date.Get(ctx); return nil })
	_ = g.Wait()
	return info
}

// SetEventInfo replaces the event info. Every field is written even when
// another one fails; the first failure is returned.
func (s *Service) SetEventInfo(ctx context.Context, info model.EventInfo) (model.EventInfo, error) {
	info.Title = strings.TrimSpace(info.Title)
	if info.Title == "" {
		return model.EventInfo{}, fmt.Errorf("%w: title is required", types.ErrInvalidInput)
	}
	if err := s.admit(ctx); err != nil {
		return model.EventInfo{}, err
	}

	var out model.EventInfo
	var g errgroup.Group
	g.Go(func() error {
		r, err := s.title.Set(ctx, info.Title)
		out.Title, err = settle(ctx, s, keyTitle, model.ChangeEventInfo, r, err)
		return err
	})
	g.Go(func() error {
		r, err := s.description.Set(ctx, strings.TrimSpace(info.Description))
		out.Description, err = settle(ctx, s, keyDescription, model.ChangeEventInfo, r, err)
		return err
	})
	g.Go(func() error {
		r, err := s.date.Set(ctx, strings.TrimSpace(info.Date))
		out.Date, err = settle(ctx, s, keyDate, model.ChangeEventInfo, r, err)
		return err
	})
	if err := g.Wait(); err != nil {
		return s.EventInfo(ctx), err
	}
	return out, nil
}

// Roster returns the normalized roster.
func (s *Service) Roster(ctx context.Context) types.RosterView {
	r := roster.Normalize(s.participants.Get(ctx))
	metrics.UpdateParticipants(model.Round1.String(), len(r.Round1))
	metrics.UpdateParticipants(model.Round2.String(), len(r.Round2))
	return view(r)
}

// SetRoster replaces the roster. raw may be the per-round object or a flat
// list, which becomes round 1. The canonical shape is stored.
func (s *Service) SetRoster(ctx context.Context, raw json.RawMessage) (types.RosterView, error) {
	r, err := roster.Parse(raw)
	if err != nil {
		return types.RosterView{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	if err := s.admit(ctx); err != nil {
		return types.RosterView{}, err
	}
	canonical, err := json.Marshal(r)
	if err != nil {
		return types.RosterView{}, fmt.Errorf("encode roster: %w", err)
	}
	res, err := s.participants.Set(ctx, canonical)
	stored, err := settle(ctx, s, keyParticipants, model.ChangeParticipants, res, err)
	if err != nil && stored == nil {
		return types.RosterView{}, err
	}
	return view(roster.Normalize(stored)), err
}

func view(r model.Roster) types.RosterView {
	return types.RosterView{Round1: r.Round1, Round2: r.Round2, All: roster.AllParticipants(r)}
}

// Meetings lists the scheduled meetings matching f.
func (s *Service) Meetings(ctx context.Context, f types.MeetingFilter) []model.Meeting {
	list := []model.Meeting(s.meetings.Get(ctx))
	if f.Round.Valid() {
		list = pairing.MeetingsInRound(list, f.Round)
	}
	if strings.TrimSpace(f.Person) != "" {
		list = pairing.MeetingsForPerson(list, f.Person)
	}
	if list == nil {
		list = []model.Meeting{}
	}
	return list
}

// RefreshMeetings drops the cached meeting list and reads it again.
func (s *Service) RefreshMeetings(ctx context.Context) []model.Meeting {
	list := s.meetings.Refresh(ctx)
	s.observeMeetings(list)
	return list
}

// CreateMeeting schedules person1 with person2 in round. A non-empty
// idempotencyKey makes retries return the meeting created by the first call.
func (s *Service) CreateMeeting(ctx context.Context, person1, person2 string, round model.Round, idempotencyKey string) (model.Meeting, error) {
	person1, person2 = strings.TrimSpace(person1), strings.TrimSpace(person2)
	switch {
	case !round.Valid():
		return model.Meeting{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, pairing.ErrInvalidRound)
	case person1 == "" || person2 == "":
		return model.Meeting{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, pairing.ErrMissingPerson)
	}
	if err := s.admit(ctx); err != nil {
		return model.Meeting{}, err
	}

	if idempotencyKey != "" {
		if id, seen := s.deduper.Claim(ctx, idempotencyKey); seen {
			metrics.RecordDuplicateRequest()
			if id == "" {
				return model.Meeting{}, types.ErrRequestInFlight
			}
			return s.meeting(ctx, id)
		}
	}

	m, err := s.createMeeting(ctx, person1, person2, round)
	if idempotencyKey != "" {
		if err != nil {
			s.deduper.Unrecord(ctx, idempotencyKey)
		} else {
			s.deduper.Resolve(ctx, idempotencyKey, m.ID)
		}
	}
	return m, err
}

func (s *Service) createMeeting(ctx context.Context, person1, person2 string, round model.Round) (model.Meeting, error) {
	r := roster.Normalize(s.participants.Get(ctx))
	for _, p := range []string{person1, person2} {
		if !roster.OnRoster(r, round, p) {
			metrics.RecordRuleRejection("not_on_roster")
			return model.Meeting{}, fmt.Errorf("%s: %w", p, pairing.ErrNotOnRoster)
		}
	}

	var created model.Meeting
	res, err := s.meetings.Update(ctx, func(list model.MeetingList) (model.MeetingList, error) {
		if err := pairing.ValidateNewMeeting(list, person1, person2, round); err != nil {
			return nil, err
		}
		created = model.Meeting{
			ID:        uuid.NewString(),
			Person1:   person1,
			Person2:   person2,
			Round:     round,
			CreatedAt: s.now().UTC(),
		}
		return append(list, created), nil
	})
	list, err := settle(ctx, s, keyMeetings, model.ChangeMeetings, res, err)
	if err != nil {
		if code, ok := pairing.RuleCode(err); ok {
			metrics.RecordRuleRejection(code)
		}
		var conflict *types.ConflictError
		if errors.As(err, &conflict) {
			s.observeMeetings(list)
		}
		return model.Meeting{}, err
	}

	metrics.RecordMeetingCreated()
	s.observeMeetings(list)
	s.logger.Info(ctx, "meeting created",
		logger.String("id", created.ID),
		logger.String("round", round.String()),
	)
	return created, nil
}

// DeleteMeeting removes the meeting with id.
func (s *Service) DeleteMeeting(ctx context.Context, id string) error {
	if err := s.admit(ctx); err != nil {
		return err
	}
	res, err := s.meetings.Update(ctx, func(list model.MeetingList) (model.MeetingList, error) {
		for i, m := range list {
			if m.ID == id {
				return append(list[:i:i], list[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("meeting %s: %w", id, types.ErrNotFound)
	})
	list, err := settle(ctx, s, keyMeetings, model.ChangeMeetings, res, err)
	if err != nil {
		return err
	}
	metrics.RecordMeetingDeleted()
	s.observeMeetings(list)
	return nil
}

func (s *Service) meeting(ctx context.Context, id string) (model.Meeting, error) {
	for _, m := range s.meetings.Get(ctx) {
		if m.ID == id {
			return m, nil
		}
	}
	return model.Meeting{}, fmt.Errorf("meeting %s: %w", id, types.ErrNotFound)
}

// Availability returns, per round, who is still free.
func (s *Service) Availability(ctx context.Context) []types.RoundAvailability {
	r, list := s.load(ctx)
	out := make([]types.RoundAvailability, 0, 2)
	for _, round := range model.AllRounds() {
		participants := roster.ParticipantsForRound(r, round)
		available := pairing.AvailableParticipantsForRound(round, list, participants)
		out = append(out, types.RoundAvailability{
			Round:          round,
			Participants:   participants,
			Available:      available,
			Total:          len(participants),
			AvailableCount: len(available),
			Meetings:       len(pairing.MeetingsInRound(list, round)),
		})
	}
	return out
}

// Eligibility returns whether person already meets someone in round and who
// they may still be paired with. Candidates are the round's roster, or every
// participant when the round has no list of its own.
func (s *Service) Eligibility(ctx context.Context, person string, round model.Round) (types.Eligibility, error) {
	person = strings.TrimSpace(person)
	switch {
	case !round.Valid():
		return types.Eligibility{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, pairing.ErrInvalidRound)
	case person == "":
		return types.Eligibility{}, fmt.Errorf("%w: person is required", types.ErrInvalidInput)
	}
	r, list := s.load(ctx)
	candidates := r.ForRound(round)
	if len(candidates) == 0 {
		candidates = roster.AllParticipants(r)
	}
	return types.Eligibility{
		Person:     person,
		Round:      round,
		HasMeeting: pairing.PersonHasMeetingInRound(person, round, list),
		Partners:   pairing.EligiblePartners(person, round, list, candidates),
	}, nil
}

// RoundSummaries groups the meetings by round.
func (s *Service) RoundSummaries(ctx context.Context) []types.RoundSummary {
	list := []model.Meeting(s.meetings.Get(ctx))
	out := make([]types.RoundSummary, 0, 2)
	for _, round := range model.AllRounds() {
		in := pairing.MeetingsInRound(list, round)
		out = append(out, types.RoundSummary{Round: round, Meetings: in, Count: len(in)})
	}
	return out
}

// PersonSummary returns the partner of person in each round. A person who is
// neither on the roster nor in any meeting is not found.
func (s *Service) PersonSummary(ctx context.Context, person string) (types.PersonSummary, error) {
	person = strings.TrimSpace(person)
	r, list := s.load(ctx)

	known := len(pairing.MeetingsForPerson(list, person)) > 0
	for _, n := range roster.AllParticipants(r) {
		if model.NameKey(n) == model.NameKey(person) {
			known = true
			break
		}
	}
	if person == "" || !known {
		return types.PersonSummary{}, fmt.Errorf("person %q: %w", person, types.ErrNotFound)
	}

	out := types.PersonSummary{Person: person, Rounds: make([]types.PersonRound, 0, 2)}
	for _, round := range model.AllRounds() {
		pr := types.PersonRound{Round: round}
		for _, m := range pairing.MeetingsInRound(list, round) {
			if m.Involves(person) {
				pr.Partner = pairing.PartnerFor(m, person)
				pr.MeetingID = m.ID
				break
			}
		}
		out.Rounds = append(out.Rounds, pr)
	}
	return out, nil
}

// Overview loads every document concurrently and returns the headline numbers.
func (s *Service) Overview(ctx context.Context) (types.Overview, error) {
	var (
		info      model.EventInfo
		r         model.Roster
		list      model.MeetingList
		attendees []model.Attendee
		payments  []model.Payment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { info = s.EventInfo(gctx); return nil })
	g.Go(func() error { r = roster.Normalize(s.participants.Get(gctx)); return nil })
	g.Go(func() error { list = s.meetings.Get(gctx); return nil })
	g.Go(func() error { attendees = s.attendees.Get(gctx); return nil })
	g.Go(func() error { payments = s.payments.Get(gctx); return nil })
	if err := g.Wait(); err != nil {
		return types.Overview{}, err
	}

	out := types.Overview{
		Event:        info,
		Participants: len(roster.AllParticipants(r)),
		ByRound:      make(map[model.Round]int, 2),
		Attendees:    len(attendees),
	}
	for _, round := range model.AllRounds() {
		n := len(pairing.MeetingsInRound(list, round))
		out.ByRound[round] = n
		out.Meetings += n
	}
	for _, p := range payments {
		if p.HasPaid {
			out.Paid++
		}
	}
	out.Unpaid = out.Participants - out.Paid
	if out.Unpaid < 0 {
		out.Unpaid = 0
	}
	return out, nil
}

// Export renders the meeting report. It returns the file name and the PDF.
func (s *Service) Export(ctx context.Context) (string, []byte, error) {
	var (
		info model.EventInfo
		list model.MeetingList
	)
	var g errgroup.Group
	g.Go(func() error { info = s.EventInfo(ctx); return nil })
	g.Go(func() error { list = s.meetings.Get(ctx); return nil })
	_ = g.Wait()

	var buf bytes.Buffer
	if err := report.Render(&buf, info, list, report.WithClock(s.now)); err != nil {
		return "", nil, fmt.Errorf("render report: %w", err)
	}
	return report.Filename(info.Title, s.now()), buf.Bytes(), nil
}

// load reads the roster and the meeting list concurrently.
func (s *Service) load(ctx context.Context) (model.Roster, []model.Meeting) {
	var (
		r    model.Roster
		list model.MeetingList
	)
	var g errgroup.Group
	g.Go(func() error { r = roster.Normalize(s.participants.Get(ctx)); return nil })
	g.Go(func() error { list = s.meetings.Get(ctx); return nil })
	_ = g.Wait()
	return r, list
}

func (s *Service) observeMeetings(list model.MeetingList) {
	for _, round := range model.AllRounds() {
		metrics.UpdateMeetings(round.String(), len(pairing.MeetingsInRound(list, round)))
	}
}
