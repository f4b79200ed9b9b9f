package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/onetoone/internal/adapters/auth"
	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/pairing"
	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

// Attendees lists the signed-in users who joined the event.
func (s *Service) Attendees(ctx context.Context) []model.Attendee {
	list := s.attendees.Get(ctx)
	metrics.UpdateAttendees(len(list))
	return list
}

// Join adds the principal to the attendees under displayName.
func (s *Service) Join(ctx context.Context, p model.Principal, displayName string) (model.Attendee, error) {
	if p.UserID == "" {
		return model.Attendee{}, auth.ErrNoPrincipal
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return model.Attendee{}, fmt.Errorf("%w: display name is required", types.ErrInvalidInput)
	}
	if err := s.admit(ctx); err != nil {
		return model.Attendee{}, err
	}

	a := model.Attendee{
		UserID:      p.UserID,
		UserDetails: p.UserDetails,
		DisplayName: displayName,
		JoinedAt:    s.now().UTC(),
	}
	res, err := s.attendees.Update(ctx, func(list model.AttendeeList) (model.AttendeeList, error) {
		for _, existing := range list {
			if existing.UserID == p.UserID {
				return nil, types.ErrAlreadyAttending
			}
		}
		return append(list, a), nil
	})
	list, err := settle(ctx, s, keyAttendees, model.ChangeAttendance, res, err)
	if err != nil {
		return model.Attendee{}, err
	}
	metrics.UpdateAttendees(len(list))
	s.logger.Info(ctx, "attendee joined", logger.String("user", p.UserID))
	return a, nil
}

// Leave removes the principal from the attendees. Their meetings are removed first.
func (s *Service) Leave(ctx context.Context, p model.Principal) error {
	if p.UserID == "" {
		return auth.ErrNoPrincipal
	}
	if err := s.admit(ctx); err != nil {
		return err
	}
	if !attending(s.attendees.Get(ctx), p.UserID) {
		return types.ErrNotAttending
	}

	res, err := s.attendeeMeetings.Update(ctx, func(list model.AttendeeMeetingList) (model.AttendeeMeetingList, error) {
		return pairing.RemoveAttendeeMeetings(list, p.UserID), nil
	})
	if _, err := settle(ctx, s, keyAttendeeMeetings, model.ChangeAttendance, res, err); err != nil {
		return err
	}

	ares, err := s.attendees.Update(ctx, func(list model.AttendeeList) (model.AttendeeList, error) {
		out := make([]model.Attendee, 0, len(list))
		for _, a := range list {
			if a.UserID != p.UserID {
				out = append(out, a)
			}
		}
		if len(out) == len(list) {
			return nil, types.ErrNotAttending
		}
		return out, nil
	})
	list, err := settle(ctx, s, keyAttendees, model.ChangeAttendance, ares, err)
	if err != nil {
		return err
	}
	metrics.UpdateAttendees(len(list))
	s.logger.Info(ctx, "attendee left", logger.String("user", p.UserID))
	return nil
}

// AttendeeMeetings lists the attendee meetings, or only those of userID when set.
func (s *Service) AttendeeMeetings(ctx context.Context, userID string) []model.AttendeeMeeting {
	list := s.attendeeMeetings.Get(ctx)
	if userID == "" {
		return list
	}
	return pairing.AttendeeMeetingsForUser(list, userID)
}

// CreateAttendeeMeeting schedules the principal with partnerID in round. Both
// must be attending.
func (s *Service) CreateAttendeeMeeting(ctx context.Context, p model.Principal, partnerID string, round model.Round) (model.AttendeeMeeting, error) {
	if p.UserID == "" {
		return model.AttendeeMeeting{}, auth.ErrNoPrincipal
	}
	partnerID = strings.TrimSpace(partnerID)
	switch {
	case !round.Valid():
		return model.AttendeeMeeting{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, pairing.ErrInvalidRound)
	case partnerID == "":
		return model.AttendeeMeeting{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, pairing.ErrMissingPerson)
	}
	if err := s.admit(ctx); err != nil {
		return model.AttendeeMeeting{}, err
	}

	attendees := s.attendees.Get(ctx)
	self, ok := find(attendees, p.UserID)
	if !ok {
		return model.AttendeeMeeting{}, types.ErrNotAttending
	}
	partner, ok := find(attendees, partnerID)
	if !ok {
		return model.AttendeeMeeting{}, fmt.Errorf("partner: %w", types.ErrNotAttending)
	}

	var created model.AttendeeMeeting
	res, err := s.attendeeMeetings.Update(ctx, func(list model.AttendeeMeetingList) (model.AttendeeMeetingList, error) {
		if err := pairing.ValidateNewAttendeeMeeting(list, self.UserID, partner.UserID, round); err != nil {
			return nil, err
		}
		created = model.AttendeeMeeting{
			ID:           uuid.NewString(),
			UserID1:      self.UserID,
			UserID2:      partner.UserID,
			DisplayName1: self.DisplayName,
			DisplayName2: partner.DisplayName,
			Round:        round,
			CreatedAt:    s.now().UTC(),
		}
		return append(list, created), nil
	})
	if _, err := settle(ctx, s, keyAttendeeMeetings, model.ChangeAttendance, res, err); err != nil {
		if code, ok := pairing.RuleCode(err); ok {
			metrics.RecordRuleRejection(code)
		}
		return model.AttendeeMeeting{}, err
	}
	metrics.RecordMeetingCreated()
	return created, nil
}

// DeleteAttendeeMeeting removes a meeting the principal takes part in. Meetings
// of other users are reported as not found.
func (s *Service) DeleteAttendeeMeeting(ctx context.Context, p model.Principal, id string) error {
	if p.UserID == "" {
		return auth.ErrNoPrincipal
	}
	if err := s.admit(ctx); err != nil {
		return err
	}
	res, err := s.attendeeMeetings.Update(ctx, func(list model.AttendeeMeetingList) (model.AttendeeMeetingList, error) {
		for i, m := range list {
			if m.ID == id && m.Involves(p.UserID) {
				return append(list[:i:i], list[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("meeting %s: %w", id, types.ErrNotFound)
	})
	if _, err := settle(ctx, s, keyAttendeeMeetings, model.ChangeAttendance, res, err); err != nil {
		return err
	}
	metrics.RecordMeetingDeleted()
	return nil
}

// EligibleAttendees lists the attendees the principal may still meet in round.
func (s *Service) EligibleAttendees(ctx context.Context, p model.Principal, round model.Round) ([]model.Attendee, error) {
	if p.UserID == "" {
		return nil, auth.ErrNoPrincipal
	}
	if !round.Valid() {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidInput, pairing.ErrInvalidRound)
	}
	return pairing.EligibleAttendees(p.UserID, round, s.attendeeMeetings.Get(ctx), s.attendees.Get(ctx)), nil
}

func attending(list []model.Attendee, userID string) bool {
	_, ok := find(list, userID)
	return ok
}

func find(list []model.Attendee, userID string) (model.Attendee, bool) {
	for _, a := range list {
		if a.UserID == userID {
			return a, true
		}
	}
	return model.Attendee{}, false
}
