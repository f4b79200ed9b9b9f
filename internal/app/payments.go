package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/onetoone/internal/adapters/auth"
	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/roster"
	"github.com/okian/onetoone/internal/domain/types"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

// Payments returns the payment records whose name contains query, ignoring
// case. Every participant on the roster gets a record; missing ones are
// created unpaid and stored.
func (s *Service) Payments(ctx context.Context, query string) types.PaymentsView {
	all := s.syncPayments(ctx)

	out := types.PaymentsView{Payments: []model.Payment{}, Total: len(all)}
	q := strings.ToLower(strings.TrimSpace(query))
	for _, p := range all {
		if p.HasPaid {
			out.Paid++
		}
		if q == "" || strings.Contains(strings.ToLower(p.Person), q) {
			out.Payments = append(out.Payments, p)
		}
	}
	out.Unpaid = out.Total - out.Paid
	metrics.UpdatePayments(out.Paid, out.Unpaid)
	return out
}

// syncPayments adds a record for every roster name without one. A failed
// write is logged; the merged list is still returned.
func (s *Service) syncPayments(ctx context.Context) []model.Payment {
	names := roster.AllParticipants(roster.Normalize(s.participants.Get(ctx)))
	stored := s.payments.Get(ctx)
	if missing(stored, names) == 0 {
		return sortPayments(stored)
	}

	res, err := s.payments.Update(ctx, func(list model.PaymentList) (model.PaymentList, error) {
		return merge(list, names), nil
	})
	list, err := settle(ctx, s, keyPayments, model.ChangePayments, res, err)
	if err != nil {
		s.logger.Warn(ctx, "payment records not stored", logger.Error(err))
		var conflict *types.ConflictError
		if errors.As(err, &conflict) {
			return sortPayments(merge(list, names))
		}
		return sortPayments(merge(stored, names))
	}
	return sortPayments(list)
}

// TogglePayment flips the paid flag of person. Becoming paid records the time
// and amount; becoming unpaid clears both.
func (s *Service) TogglePayment(ctx context.Context, person string, amount *float64) (model.Payment, error) {
	person = strings.TrimSpace(person)
	if person == "" {
		return model.Payment{}, fmt.Errorf("%w: person is required", types.ErrInvalidInput)
	}
	if amount != nil && *amount < 0 {
		return model.Payment{}, fmt.Errorf("%w: amount must not be negative", types.ErrInvalidInput)
	}
	if err := s.admit(ctx); err != nil {
		return model.Payment{}, err
	}
	names := roster.AllParticipants(roster.Normalize(s.participants.Get(ctx)))

	var toggled model.Payment
	res, err := s.payments.Update(ctx, func(list model.PaymentList) (model.PaymentList, error) {
		list = merge(list, names)
		for i := range list {
			if model.NameKey(list[i].Person) != model.NameKey(person) {
				continue
			}
			p := &list[i]
			p.HasPaid = !p.HasPaid
			if p.HasPaid {
				at := s.now().UTC()
				p.PaidAt = &at
				p.Amount = amount
			} else {
				p.PaidAt = nil
				p.Amount = nil
			}
			toggled = *p
			return list, nil
		}
		return nil, fmt.Errorf("payment of %q: %w", person, types.ErrNotFound)
	})
	if _, err := settle(ctx, s, keyPayments, model.ChangePayments, res, err); err != nil {
		return model.Payment{}, err
	}
	s.logger.Info(ctx, "payment toggled",
		logger.String("person", toggled.Person),
		logger.Bool("paid", toggled.HasPaid),
	)
	return toggled, nil
}

// Login exchanges the treasurer password for a session token.
func (s *Service) Login(ctx context.Context, password string) (types.Session, error) {
	sessions, err := s.session()
	if err != nil {
		return types.Session{}, err
	}
	if err := auth.CheckPassword(s.treasurer.Get(ctx), password); err != nil {
		s.logger.Warn(ctx, "treasurer login refused", logger.Error(err))
		return types.Session{}, err
	}
	token, exp, err := sessions.Issue()
	if err != nil {
		return types.Session{}, err
	}
	return types.Session{Token: token, ExpiresAt: exp}, nil
}

// VerifyTreasurer checks a treasurer session token.
func (s *Service) VerifyTreasurer(token string) error {
	sessions, err := s.session()
	if err != nil {
		return err
	}
	return sessions.Verify(token)
}

func missing(list []model.Payment, names []string) int {
	have := make(map[string]struct{}, len(list))
	for _, p := range list {
		have[model.NameKey(p.Person)] = struct{}{}
	}
	n := 0
	for _, name := range names {
		k := model.NameKey(name)
		if _, ok := have[k]; !ok && k != "" {
			n++
		}
	}
	return n
}

// merge appends an unpaid record for each name without one. Records of names
// no longer on the roster are kept.
func merge(list []model.Payment, names []string) []model.Payment {
	have := make(map[string]struct{}, len(list))
	out := make([]model.Payment, 0, len(list)+len(names))
	for _, p := range list {
		have[model.NameKey(p.Person)] = struct{}{}
		out = append(out, p)
	}
	for _, name := range names {
		k := model.NameKey(name)
		if _, ok := have[k]; ok || k == "" {
			continue
		}
		have[k] = struct{}{}
		out = append(out, model.Payment{Person: name})
	}
	return out
}

func sortPayments(list []model.Payment) []model.Payment {
	out := append([]model.Payment(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		return model.NameKey(out[i].Person) < model.NameKey(out[j].Person)
	})
	if out == nil {
		out = []model.Payment{}
	}
	return out
}
