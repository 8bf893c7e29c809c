package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"nexushq/internal/dispute"
	disputeHandler "nexushq/internal/dispute/handler"
	disputeStore "nexushq/internal/dispute/store"
	"nexushq/internal/gateway"
	"nexushq/internal/ledger"
	"nexushq/internal/ledger/adapters"
	ledgerStore "nexushq/internal/ledger/store"
	"nexushq/internal/platform/middleware"
	registryModels "nexushq/internal/registry/models"
	registryService "nexushq/internal/registry/service"
	registryStore "nexushq/internal/registry/store"
	"nexushq/pkg/testutil"
)

// Round trips through the real registry, ledger and dispute services backed
// by in-memory stores.
type PhoneHomeSuite struct {
	suite.Suite
	router   http.Handler
	registry *registryService.Service
	apiKey   string
	clientID string
}

func TestPhoneHomeSuite(t *testing.T) {
	suite.Run(t, new(PhoneHomeSuite))
}

func (s *PhoneHomeSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.registry = registryService.New(registryStore.NewInMemory(), registryService.WithKeyCost(bcrypt.MinCost))
	lookup := adapters.NewRegistryAdapter(s.registry)
	ledgerSvc := ledger.New(ledgerStore.NewInMemory(lookup.Exists), lookup)
	disputeSvc := dispute.New(disputeStore.NewInMemory(), ledgerSvc)
	svc := gateway.New(s.registry, ledgerSvc, disputeSvc, gateway.WithLogger(logger))

	r := chi.NewRouter()
	r.Use(middleware.RequestContext)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(logger))
		New(svc, logger).Register(r)
	})
	s.router = r

	reg, err := s.registry.Register(context.Background(), &registryModels.RegisterRequest{
		Name: "Pioneer Cards",
		Tier: "professional",
	})
	s.Require().NoError(err)
	s.apiKey = reg.APIKey
	s.clientID = reg.Client.ID.String()
}

func (s *PhoneHomeSuite) post(path string, body any, opts ...testutil.RequestOption) *httptest.ResponseRecorder {
	opts = append([]testutil.RequestOption{testutil.WithAPIKey(s.apiKey)}, opts...)
	return testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, path, body, opts...))
}

func (s *PhoneHomeSuite) TestSale() {
	body := map[string]any{
		"deck_name":  "Mono Red",
		"format":     "modern",
		"card_count": 60,
		"sale_value": 49.99,
		"cards":      []map[string]any{{"name": "Lightning Bolt", "qty": 4}},
	}

	rec := s.post("/api/phone-home/sale", body, testutil.WithHeader(HeaderIdempotencyKey, "order-1"))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	first := testutil.UnmarshalResponse[SaleResponse](s.T(), rec)
	s.True(first.Success)
	s.False(first.Replayed)
	s.Equal("49.99", first.SaleValue.String())
	s.Equal("3.00", first.NexusFee.String())
	s.Equal("46.99", first.ClientKeeps.String())
	s.Equal("6", first.CommissionRate.String())

	s.Run("replay by header", func() {
		rec := s.post("/api/phone-home/sale", body, testutil.WithHeader(HeaderIdempotencyKey, "order-1"))
		s.Require().Equal(http.StatusOK, rec.Code)
		again := testutil.UnmarshalResponse[SaleResponse](s.T(), rec)
		s.True(again.Replayed)
		s.Equal(first.SaleID, again.SaleID)
	})

	s.Run("replay by body field", func() {
		withKey := map[string]any{"sale_value": "49.99", "idempotency_key": "order-1"}
		rec := s.post("/api/phone-home/sale", withKey)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(first.SaleID, testutil.UnmarshalResponse[SaleResponse](s.T(), rec).SaleID)
	})

	s.Run("no key records a new sale", func() {
		rec := s.post("/api/phone-home/sale", body)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Greater(testutil.UnmarshalResponse[SaleResponse](s.T(), rec).SaleID, first.SaleID)
	})

	s.Run("invalid values", func() {
		for _, v := range []any{0, -5, "12.345", nil, "abc", "", true, map[string]any{"amount": 5}} {
			rec := s.post("/api/phone-home/sale", map[string]any{"sale_value": v})
			testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "invalid_sale_value")
		}
	})

	s.Run("numeric strings are accepted", func() {
		rec := s.post("/api/phone-home/sale", map[string]any{"sale_value": "15.50"})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("15.50", testutil.UnmarshalResponse[SaleResponse](s.T(), rec).SaleValue.String())
	})

	s.Run("missing field", func() {
		rec := s.post("/api/phone-home/sale", map[string]any{"deck_name": "Mono Red"})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "invalid_sale_value")
	})
}

func (s *PhoneHomeSuite) TestAuthentication() {
	s.Run("missing key", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/phone-home/sale", map[string]any{"sale_value": 10})
		testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized, "unauthenticated")
	})

	s.Run("wrong key", func() {
		rec := s.post("/api/phone-home/scan", map[string]any{"card_name": "Opt"},
			testutil.WithAPIKey("nxs_000000000000_notarealsecret"))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthenticated")
	})

	s.Run("bearer header", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/phone-home/scan",
			map[string]any{"card_name": "Opt"}, testutil.WithHeader("Authorization", "Bearer "+s.apiKey))
		s.Equal(http.StatusOK, testutil.DoRequest(s.router, req).Code)
	})

	s.Run("unknown key is reported before a bad body", func() {
		bogus := testutil.WithAPIKey("nxs_000000000000_bogus")
		rec := s.post("/api/phone-home/sale", map[string]any{"sale_value": "abc"}, bogus)
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthenticated")

		for _, path := range []string{"/api/phone-home/scan", "/api/phone-home/batch-scans", "/api/phone-home/disputes"} {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"scans": 7`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(middleware.HeaderAPIKey, "nxs_000000000000_bogus")
			testutil.AssertStatusAndError(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized, "unauthenticated")
		}
	})

	s.Run("suspended", func() {
		c, err := s.registry.Resolve(context.Background(), s.apiKey)
		s.Require().NoError(err)
		_, err = s.registry.Suspend(context.Background(), c.ID)
		s.Require().NoError(err)

		rec := s.post("/api/phone-home/sale", map[string]any{"sale_value": 10})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "suspended")

		rec = s.post("/api/phone-home/sale", map[string]any{"sale_value": "abc"})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "suspended")
		rec = s.post("/api/phone-home/batch-scans", map[string]any{"scans": []any{}})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "suspended")
	})
}

func (s *PhoneHomeSuite) TestScans() {
	sale := testutil.UnmarshalResponse[SaleResponse](s.T(), s.post("/api/phone-home/sale", map[string]any{"sale_value": 20}))

	rec := s.post("/api/phone-home/scan", map[string]any{
		"card_name":  "Thoughtseize",
		"set_code":   "THS",
		"rarity":     "rare",
		"price":      "14.50",
		"confidence": 0.97,
		"sale_id":    sale.SaleID,
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	single := testutil.UnmarshalResponse[ScanResponse](s.T(), rec)
	s.True(single.Success)

	rec = s.post("/api/phone-home/batch-scans", map[string]any{
		"scans": []map[string]any{{"card_name": "Opt"}, {"card_name": "Ponder"}},
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	batch := testutil.UnmarshalResponse[BatchScansResponse](s.T(), rec)
	s.Equal(2, batch.Recorded)
	s.Equal([]int64{single.ScanID + 1, single.ScanID + 2}, batch.ScanIDs)

	s.Run("batch is atomic", func() {
		rec := s.post("/api/phone-home/batch-scans", map[string]any{
			"scans": []map[string]any{{"card_name": "Opt"}, {"card_name": ""}},
		})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "validation_error")

		rec = s.post("/api/phone-home/scan", map[string]any{"card_name": "Brainstorm"})
		s.Equal(batch.ScanIDs[1]+1, testutil.UnmarshalResponse[ScanResponse](s.T(), rec).ScanID)
	})

	s.Run("empty batch", func() {
		rec := s.post("/api/phone-home/batch-scans", map[string]any{"scans": []any{}})
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "validation_error")
	})
}

func (s *PhoneHomeSuite) TestDispute() {
	sale := testutil.UnmarshalResponse[SaleResponse](s.T(), s.post("/api/phone-home/sale", map[string]any{"sale_value": 20}))

	rec := s.post("/api/phone-home/disputes", map[string]any{
		"ref_type":       "sale",
		"ref_id":         sale.SaleID,
		"card_name":      "Urza's Saga",
		"system_grade":   "MP",
		"reported_grade": "NM",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	d := testutil.UnmarshalResponse[disputeHandler.DisputeResponse](s.T(), rec)
	s.Equal(s.clientID, d.ClientID)
	s.Equal("open", d.Status)

	rec = s.post("/api/phone-home/disputes", map[string]any{
		"ref_type":       "sale",
		"ref_id":         sale.SaleID + 100,
		"card_name":      "Urza's Saga",
		"reported_grade": "NM",
	})
	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "not_found")

	rec = s.post("/api/phone-home/disputes", map[string]any{"ref_type": "deck", "ref_id": 1})
	testutil.AssertStatusAndError(s.T(), rec, http.StatusUnprocessableEntity, "validation_error")
}
