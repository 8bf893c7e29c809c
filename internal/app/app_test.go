package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	aggregatorHandler "nexushq/internal/aggregator/handler"
	gatewayHandler "nexushq/internal/gateway/handler"
	"nexushq/internal/platform/config"
	registryHandler "nexushq/internal/registry/handler"
	"nexushq/pkg/testutil"
)

const adminToken = "test-admin-token"

// Drives the assembled in-memory process over HTTP: register a client, report
// sales and scans, then read the dashboard.
type AppSuite struct {
	suite.Suite
	app *App
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppSuite))
}

func (s *AppSuite) SetupTest() {
	cfg := config.Defaults()
	cfg.AdminToken = adminToken
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	s.Require().NoError(err)
	s.app = a
}

func (s *AppSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *AppSuite) admin(method, path string, body any) (int, []byte) {
	rec := testutil.DoRequest(s.app.Handler,
		testutil.NewJSONRequest(s.T(), method, path, body, testutil.WithAdminToken(adminToken)))
	return rec.Code, rec.Body.Bytes()
}

func (s *AppSuite) register(name, tier string) registryHandler.RegisterResponse {
	rec := testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/clients/register",
		map[string]string{"name": name, "tier": tier}, testutil.WithAdminToken(adminToken)))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return *testutil.UnmarshalResponse[registryHandler.RegisterResponse](s.T(), rec)
}

func (s *AppSuite) sell(apiKey string, value any, token string) gatewayHandler.SaleResponse {
	opts := []testutil.RequestOption{testutil.WithAPIKey(apiKey)}
	if token != "" {
		opts = append(opts, testutil.WithHeader(gatewayHandler.HeaderIdempotencyKey, token))
	}
	rec := testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/phone-home/sale",
		map[string]any{"deck_name": "Affinity", "sale_value": value}, opts...))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return *testutil.UnmarshalResponse[gatewayHandler.SaleResponse](s.T(), rec)
}

func (s *AppSuite) TestEndToEnd() {
	starter := s.register("Starter Shop", "starter")
	enterprise := s.register("Enterprise Shop", "enterprise")

	first := s.sell(starter.APIKey, "100.00", "a-1")
	s.Equal("8.00", first.NexusFee.String())
	replay := s.sell(starter.APIKey, "100.00", "a-1")
	s.True(replay.Replayed)
	s.Equal(first.SaleID, replay.SaleID)

	s.sell(enterprise.APIKey, "250.00", "")
	s.sell(enterprise.APIKey, "50.00", "")

	rec := testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/phone-home/batch-scans",
		map[string]any{"scans": []map[string]any{{"card_name": "Ornithopter"}, {"card_name": "Memnite"}}},
		testutil.WithAPIKey(starter.APIKey)))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/dashboard/stats", nil,
		testutil.WithAdminToken(adminToken)))
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	stats := testutil.UnmarshalResponse[aggregatorHandler.StatsResponse](s.T(), rec)
	s.Equal(int64(3), stats.Sales.Total)
	s.Equal("400.00", stats.Volume.Total.String())
	s.Equal("20.00", stats.Fees.Total.String())
	s.Equal(int64(2), stats.TotalScans)
	s.Equal(2, stats.ActiveClients)

	rec = testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/dashboard/leaderboard?limit=1", nil,
		testutil.WithAdminToken(adminToken)))
	s.Require().Equal(http.StatusOK, rec.Code)
	board := testutil.UnmarshalResponse[aggregatorHandler.LeaderboardResponse](s.T(), rec)
	s.Require().Len(board.Entries, 1)
	s.Equal(enterprise.ClientID, board.Entries[0].ClientID)

	rec = testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/status", nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	status := testutil.UnmarshalResponse[aggregatorHandler.StatusResponse](s.T(), rec)
	s.Equal("online", status.Status)
	s.Equal(int64(3), status.TotalSales)

	code, body := s.admin(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, code)
	s.Contains(string(body), `nexushq_ingest_requests_total{kind="sale",outcome="replayed"} 1`)
}

func (s *AppSuite) TestSuspendedClientCannotReport() {
	reg := s.register("Soon Suspended", "founders")
	code, _ := s.admin(http.MethodPost, "/api/clients/"+reg.ClientID+"/suspend", nil)
	s.Require().Equal(http.StatusOK, code)

	rec := testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/phone-home/sale",
		map[string]any{"sale_value": 10}, testutil.WithAPIKey(reg.APIKey)))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "suspended")

	code, _ = s.admin(http.MethodGet, "/api/dashboard/stats", nil)
	s.Equal(http.StatusOK, code)
}

func (s *AppSuite) TestPhoneHomeIsRateLimitedPerKey() {
	cfg := config.Defaults()
	cfg.AdminToken = adminToken
	cfg.RateLimit.Requests = 2
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	s.Require().NoError(err)
	s.Require().NoError(s.app.Close())
	s.app = a

	noisy := s.register("Noisy Shop", "starter")
	quiet := s.register("Quiet Shop", "starter")
	s.sell(noisy.APIKey, "1.00", "")
	s.sell(noisy.APIKey, "2.00", "")

	rec := testutil.DoRequest(s.app.Handler, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/phone-home/sale",
		map[string]any{"sale_value": "3.00"}, testutil.WithAPIKey(noisy.APIKey)))
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))

	s.sell(quiet.APIKey, "4.00", "")
}

func (s *AppSuite) TestRejectsUnknownDuplicatePolicy() {
	cfg := config.Defaults()
	cfg.Registry.DuplicatePolicy = "by-hat-size"
	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	s.Error(err)
}
