package errors_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	errorsfeature "github.com/dalemusser/joinlink/internal/app/features/errors"
	"github.com/dalemusser/joinlink/internal/app/rollover"
	"go.uber.org/zap"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errorsfeature.ErrBadRequest, http.StatusBadRequest},
		{rollover.ErrInvalidTarget, http.StatusBadRequest},
		{rollover.ErrInvalidCount, http.StatusBadRequest},
		{rollover.ErrInvalidSlug, http.StatusBadRequest},
		{rollover.ErrUnauthenticated, http.StatusUnauthorized},
		{rollover.ErrPlanLimit, http.StatusForbidden},
		{rollover.ErrNotOwner, http.StatusForbidden},
		{rollover.ErrNotFound, http.StatusNotFound},
		{rollover.ErrSlugTaken, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", rollover.ErrSlugTaken), http.StatusConflict},
		{fmt.Errorf("mongo exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorsfeature.Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWrite_HidesInternalErrors(t *testing.T) {
	el := errorsfeature.NewErrorLogger(zap.NewNop())
	rec := httptest.NewRecorder()
	el.Write(rec, httptest.NewRequest("GET", "/x", nil), fmt.Errorf("dial tcp 10.0.0.1: refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.1") {
		t.Errorf("body leaks internal error: %s", rec.Body.String())
	}
}

func TestWrite_PlanLimitCarriesMessage(t *testing.T) {
	el := errorsfeature.NewErrorLogger(zap.NewNop())
	rec := httptest.NewRecorder()
	el.Write(rec, httptest.NewRequest("POST", "/x", nil), fmt.Errorf("%w: at most 1 groups", rollover.ErrPlanLimit))

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusForbidden || !strings.Contains(body.Error, "at most 1 groups") {
		t.Errorf("got %d %q", rec.Code, body.Error)
	}
}

func TestDecode(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/x", strings.NewReader(`{"name":"a"}`))
	if err := errorsfeature.Decode(rec, req, 1024, &dst); err != nil || dst.Name != "a" {
		t.Fatalf("Decode = %v, %+v", err, dst)
	}

	for _, body := range []string{"", "{", `{"name":` + strings.Repeat(`"x"`, 1000) + `}`} {
		req := httptest.NewRequest("POST", "/x", strings.NewReader(body))
		if err := errorsfeature.Decode(rec, req, 64, &dst); errorsfeature.Status(err) != http.StatusBadRequest {
			t.Errorf("Decode(%.20q) err = %v, want bad request", body, err)
		}
	}
}
