package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/onetoone/internal/adapters/auth"
	"github.com/okian/onetoone/internal/domain/model"
	"github.com/okian/onetoone/internal/domain/pairing"
	"github.com/okian/onetoone/internal/domain/timer"
	"github.com/okian/onetoone/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestKindErrors(t *testing.T) {
	Convey("Given an error wrapped with a kind", t, func() {
		cause := errors.New("unexpected EOF")
		err := WrapKind("api.test", ErrBadRequest, cause)

		Convey("Then it matches both the kind and the cause", func() {
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.test: unexpected EOF")
		})

		Convey("Then a bare kind names the operation", func() {
			err := NewKind("api.test", ErrBackpressure)
			So(errors.Is(err, ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.test: backpressure")
		})
	})
}

func TestFailureMapping(t *testing.T) {
	Convey("Given the failures a handler can see", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{WrapKind("op", ErrBadRequest, errors.New("x")), http.StatusBadRequest, "bad_request"},
			{fmt.Errorf("%w: %w", types.ErrInvalidInput, pairing.ErrInvalidRound), http.StatusBadRequest, "bad_request"},
			{timer.ErrInvalidDuration, http.StatusBadRequest, "bad_request"},
			{auth.ErrNoPrincipal, http.StatusUnauthorized, "unauthenticated"},
			{auth.ErrMalformedPrincipal, http.StatusUnauthorized, "unauthenticated"},
			{auth.ErrMissingToken, http.StatusUnauthorized, "unauthorized"},
			{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
			{auth.ErrInvalidPassword, http.StatusUnauthorized, "invalid_password"},
			{auth.ErrNotConfigured, http.StatusConflict, "treasurer_not_configured"},
			{fmt.Errorf("meeting x: %w", types.ErrNotFound), http.StatusNotFound, "not_found"},
			{timer.ErrUnknownItem, http.StatusNotFound, "not_found"},
			{pairing.ErrPersonBusy, http.StatusUnprocessableEntity, "person_busy"},
			{fmt.Errorf("wrapped: %w", pairing.ErrAlreadyMet), http.StatusUnprocessableEntity, "already_met"},
			{types.ErrAlreadyAttending, http.StatusUnprocessableEntity, "already_attending"},
			{types.ErrNotAttending, http.StatusUnprocessableEntity, "not_attending"},
			{types.ErrRequestInFlight, http.StatusConflict, "in_flight"},
			{timer.ErrNotIdle, http.StatusConflict, "invalid_state"},
			{timer.ErrTooManyTimers, http.StatusTooManyRequests, "too_many_timers"},
			{types.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
			{types.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
			{types.ErrNotStarted, http.StatusServiceUnavailable, "not_started"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}

		Convey("Then each maps to its status and code", func() {
			for _, c := range cases {
				status, code := failure(c.err)
				So(status, ShouldEqual, c.status)
				So(code, ShouldEqual, c.code)
			}
		})
	})

	Convey("Given a superseded write", t, func() {
		latest := model.MeetingList{{ID: "m1", Person1: "Anna", Person2: "Bob", Round: model.Round1}}
		err := &types.ConflictError{Key: "meetings", Version: "v2", Latest: latest}

		Convey("Then the response carries the stored value", func() {
			w := httptest.NewRecorder()
			writeFailure(w, "api.test", err)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(w.Body.String(), ShouldContainSubstring, `"code":"superseded"`)
			So(w.Body.String(), ShouldContainSubstring, `"latest":[{"id":"m1"`)
		})
	})
}
