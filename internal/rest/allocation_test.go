package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"promoHub/business/allocation"
	"promoHub/business/dispatch"
	"promoHub/business/eligibility"
	"promoHub/business/selector"
	"promoHub/business/ticketing"
	"promoHub/business/wallet"
	"promoHub/domain"
	"promoHub/internal/middleware"
	"promoHub/internal/repository/postgres"
	"promoHub/pkg/database"
	"promoHub/pkg/utils"
)

func init() {
	utils.SetJWTSecret("rest-test-secret")
}

type fakeAllocation struct {
	result   allocation.Result
	err      error
	decision eligibility.Decision
	got      allocation.AttemptRequest
}

func (f *fakeAllocation) Attempt(ctx context.Context, principalID, poolID uint, req allocation.AttemptRequest) (allocation.Result, error) {
	f.got = req
	return f.result, f.err
}

func (f *fakeAllocation) Check(ctx context.Context, principalID, poolID uint) (eligibility.Decision, error) {
	return f.decision, f.err
}

func (f *fakeAllocation) ListWheel(ctx context.Context, poolID uint) (allocation.WheelListing, error) {
	return allocation.WheelListing{}, f.err
}

func newAllocationEcho(svc AllocationService) *echo.Echo {
	e := echo.New()
	h := NewAllocationHandler(svc, 30*time.Second)
	g := e.Group("/api/v1", middleware.AuthMiddleware())
	g.POST("/pools/:id/attempts", h.Attempt)
	g.GET("/pools/:id/eligibility", h.Eligibility)
	return e
}

func bearer(t *testing.T, id uint) string {
	t.Helper()
	token, err := utils.GenerateJWT(fmt.Sprint(id), domain.RoleCustomer)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + token
}

func postAttempt(t *testing.T, e *echo.Echo, principalID, poolID uint, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/pools/%d/attempts", poolID), strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", bearer(t, principalID))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestAttemptSuccessBody(t *testing.T) {
	unit := &domain.RewardUnit{ID: 9, Label: "ten"}
	balance := decimal.NewFromInt(30)
	svc := &fakeAllocation{result: allocation.Result{
		Allowed:           true,
		Outcome:           domain.OutcomeAllocated,
		AttemptID:         77,
		Unit:              unit,
		RemainingAttempts: 2,
		Award: dispatch.AwardResult{
			Type:       domain.RewardCash,
			Value:      decimal.NewFromInt(10),
			Currency:   domain.CurrencyCash,
			NewBalance: &balance,
		},
	}}

	rec, body := postAttempt(t, newAllocationEcho(svc), 1, 3, `{"metadata":{"channel":"app"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if body["success"] != true || body["remainingAttempts"] != float64(2) {
		t.Fatalf("body = %v", body)
	}
	reward := body["reward"].(map[string]any)
	if reward["type"] != "CASH" || reward["value"] != "10.00" || reward["unitId"] != float64(9) {
		t.Fatalf("reward = %v", reward)
	}
	if svc.got.Metadata["channel"] != "app" {
		t.Fatalf("metadata not forwarded: %v", svc.got)
	}
}

func TestAttemptUnlimitedOmitsRemaining(t *testing.T) {
	svc := &fakeAllocation{result: allocation.Result{
		Allowed:           true,
		Outcome:           domain.OutcomeAllocated,
		RemainingAttempts: eligibility.Unlimited,
		Award:             dispatch.AwardResult{Type: domain.RewardNoWin},
	}}

	_, body := postAttempt(t, newAllocationEcho(svc), 1, 3, `{}`)
	if _, ok := body["remainingAttempts"]; ok {
		t.Fatalf("body = %v", body)
	}
}

func TestAttemptRejectionIsNotAnError(t *testing.T) {
	next := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	svc := &fakeAllocation{result: allocation.Result{
		Rejection: &allocation.Rejection{Reason: eligibility.ReasonQuotaExceeded, NextAvailableAt: &next},
	}}

	rec, body := postAttempt(t, newAllocationEcho(svc), 1, 3, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["success"] != false || body["reason"] != "quota exceeded" || body["nextAvailableAt"] != "2026-10-17T00:00:00Z" {
		t.Fatalf("body = %v", body)
	}
}

func TestAttemptErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		body string
	}{
		{allocation.ErrStockExhausted, http.StatusInternalServerError, "STOCK_EXHAUSTED"},
		{fmt.Errorf("%w: lock wait", allocation.ErrTransient), http.StatusServiceUnavailable, "TRY_AGAIN"},
		{allocation.ErrPoolNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: unknown ticket", allocation.ErrInvalidContext), http.StatusBadRequest, "BAD_REQUEST"},
		{wallet.ErrWalletFrozen, http.StatusConflict, "WALLET_FROZEN"},
		{errors.New("pq: relation missing"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			rec, _ := postAttempt(t, newAllocationEcho(&fakeAllocation{err: tc.err}), 1, 3, `{}`)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("body = %s", rec.Body)
			}
			if strings.Contains(rec.Body.String(), "relation missing") {
				t.Fatalf("internal detail leaked: %s", rec.Body)
			}
		})
	}
}

func TestAttemptCancelledIsNotAnInternalError(t *testing.T) {
	err := fmt.Errorf("%w: failed to dispatch reward", context.Canceled)
	rec, _ := postAttempt(t, newAllocationEcho(&fakeAllocation{err: err}), 1, 3, `{}`)
	if rec.Code != statusClientClosedRequest {
		t.Fatalf("status = %d, want %d", rec.Code, statusClientClosedRequest)
	}
	if strings.Contains(rec.Body.String(), "INTERNAL_ERROR") {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestAttemptBadInput(t *testing.T) {
	e := newAllocationEcho(&fakeAllocation{})

	if rec, _ := postAttempt(t, e, 1, 0, `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("pool 0: status = %d", rec.Code)
	}
	if rec, _ := postAttempt(t, e, 1, 3, `{"context_id":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("broken json: status = %d", rec.Code)
	}
	long := strings.Repeat("x", 65)
	if rec, _ := postAttempt(t, e, 1, 3, `{"context_id":"`+long+`"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("long context: status = %d", rec.Code)
	}
}

func TestEligibilityEndpoint(t *testing.T) {
	svc := &fakeAllocation{decision: eligibility.Decision{Allowed: true, Remaining: 4}}
	e := newAllocationEcho(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pools/3/eligibility", nil)
	req.Header.Set("Authorization", bearer(t, 1))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"remaining":4`) {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
}

// The losing side of an instant-win race still gets a 200 with a no-win
// reward.
func TestInstantWinRaceOverHTTP(t *testing.T) {
	name := strings.ReplaceAll(t.Name(), "/", "_") + "_" + uuid.NewString()[:8]
	db, err := database.OpenInMemory(name)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	ctx := context.Background()
	txm := postgres.NewTxManager(db, 0)
	pools := postgres.NewPoolRepository(db)
	units := postgres.NewRewardUnitRepository(db)
	principals := postgres.NewPrincipalRepository(db)
	attempts := postgres.NewAttemptRepository(db)
	grants := postgres.NewBonusGrantRepository(db)
	tickets := ticketing.NewTicketingService(postgres.NewTicketRepository(db), txm)
	ledger := wallet.NewLedger(postgres.NewWalletRepository(db), txm)

	pool := domain.Pool{Name: "scratch", Kind: domain.PoolKindInstantWin, PeriodKey: "ALL_TIME", Active: true, Version: 1}
	if err := pools.Upsert(ctx, &pool); err != nil {
		t.Fatal(err)
	}
	capacity, number := 1, int64(1)
	prize := domain.RewardUnit{
		PoolID: pool.ID, Label: "jackpot", Type: domain.RewardCash,
		Magnitude: decimal.NewFromInt(100), Capacity: &capacity, TicketNumber: &number,
	}
	if err := units.Upsert(ctx, &prize); err != nil {
		t.Fatal(err)
	}
	var players []uint
	for _, handle := range []string{"ana", "ben"} {
		p := domain.Principal{Handle: handle, Tier: 1, Role: domain.RoleCustomer}
		if err := principals.Upsert(ctx, &p); err != nil {
			t.Fatal(err)
		}
		players = append(players, p.ID)
	}
	codes, err := tickets.IssueOpenCodes(ctx, pool.ID, "print", 1)
	if err != nil {
		t.Fatal(err)
	}

	svc := allocation.NewAllocationService(allocation.Deps{
		Tx:          txm,
		Pools:       pools,
		Principals:  principals,
		Units:       units,
		Attempts:    attempts,
		Tickets:     tickets,
		Grants:      grants,
		Eligibility: eligibility.NewEvaluator(attempts, grants),
		Selector:    selector.New(selector.NewSeededSource(1)),
		Dispatcher:  dispatch.NewDispatcher(ledger, tickets, grants),
		Locker:      allocation.NewKeyedLocker(),
	}, allocation.WithTxTimeout(30*time.Second))
	e := newAllocationEcho(svc)

	bodies := make([]map[string]any, len(players))
	var g errgroup.Group
	for i, id := range players {
		g.Go(func() error {
			rec, body := postAttempt(t, e, id, pool.ID, `{"context_id":"`+codes[0]+`"}`)
			if rec.Code != http.StatusOK {
				return fmt.Errorf("principal %d: status %d: %s", id, rec.Code, rec.Body)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	kinds := map[string]int{}
	for _, b := range bodies {
		if b["success"] != true {
			t.Fatalf("body = %v", b)
		}
		kinds[b["reward"].(map[string]any)["type"].(string)]++
	}
	if kinds["CASH"] != 1 || kinds["NO_WIN"] != 1 {
		t.Fatalf("rewards = %v", kinds)
	}
}
