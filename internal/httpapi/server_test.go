package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/app"
	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/lifecycle"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/testutil"
)

var epoch = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv  *Server
	app  *app.App
	fake *testutil.FakePlatform
	clk  *clock.Fake
}

func newFixture(t *testing.T, token string) fixture {
	t.Helper()
	st := testutil.NewStore(t)
	reg := prometheus.NewRegistry()
	fake := testutil.NewFakePlatform("g")
	clk := clock.NewFake(epoch)
	a := app.New(app.Options{
		Store:    st,
		Config:   testutil.NewResolver(st),
		Platform: fake,
		GuildID:  "g",
		Clock:    clk,
		Metrics:  metrics.New(reg),
		Logger:   testutil.DiscardLogger(),
	})
	return fixture{srv: New(a, Options{AdminToken: token, Gatherer: reg}), app: a, fake: fake, clk: clk}
}

func (f fixture) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (f fixture) pending(t *testing.T, inviter, invitee string) {
	t.Helper()
	_, err := f.app.Machine.CreatePending(context.Background(), lifecycle.PendingRequest{
		InviterID: inviter, InviteCode: "abc", InviteeID: invitee,
		JoinedAt: f.clk.Now(), TTLDays: 7, ConsumeToken: true,
	})
	require.NoError(t, err)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")
	rec, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t, "s3cret")

	rec, body := f.do(t, http.MethodPost, "/admin/tokens/reset", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid admin token", body["error"])

	rec, _ = f.do(t, http.MethodPost, "/admin/tokens/reset", "", AdminTokenHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = f.do(t, http.MethodPost, "/admin/tokens/reset", "", AdminTokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Weekly token reset executed.", body["message"])

	// Read-only routes stay open.
	rec, _ = f.do(t, http.MethodGet, "/referrals/holding", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSweepEndpoint(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	require.NoError(t, f.app.Config.Set(ctx, config.KeyRequiredRoleID, "member"))
	f.fake.AddMember(platform.Member{ID: "bob", Roles: []string{"member"}})
	f.pending(t, "alice", "bob")
	_, err := f.app.Machine.StartHold(ctx, "bob")
	require.NoError(t, err)

	rec, body := f.do(t, http.MethodPost, "/admin/sweep?force=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "invalid force")

	rec, body = f.do(t, http.MethodPost, "/admin/sweep?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sum := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, sum["confirmed"])
	assert.Equal(t, "http", sum["trigger"])
	assert.Contains(t, body["message"], "confirmed=1")
}

func TestGrantTokens(t *testing.T) {
	f := newFixture(t, "")

	rec, _ := f.do(t, http.MethodPost, "/admin/tokens/grant", `{"member_id":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := f.do(t, http.MethodPost, "/admin/tokens/grant", `{"member_id":"alice","delta":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 8, body["tokens_left"])
	assert.Equal(t, "Assigned 3 tokens to <@alice>.", body["message"])

	rec, body = f.do(t, http.MethodPost, "/admin/tokens/grant", `{"member_id":"alice","delta":-20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["tokens_left"])
}

func TestConfigEndpoints(t *testing.T) {
	f := newFixture(t, "")

	rec, _ := f.do(t, http.MethodPut, "/admin/config/nope", `{"value":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/admin/config/confirm_hold_days", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := f.do(t, http.MethodPut, "/admin/config/confirm_hold_days", `{"value":"3"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", body["value"])
	assert.Equal(t, "store", body["source"])

	rec, body = f.do(t, http.MethodGet, "/admin/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["config"], len(config.Defaults))
}

func TestFailReferral(t *testing.T) {
	f := newFixture(t, "")
	f.pending(t, "alice", "bob")

	rec, body := f.do(t, http.MethodPost, "/admin/referrals/bob/fail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["refunded"])
	ref := body["referral"].(map[string]any)
	assert.Equal(t, "manual", ref["failure_reason"])

	rec, _ = f.do(t, http.MethodPost, "/admin/referrals/bob/fail", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.fake.AddMember(platform.Member{ID: "bob"})

	rec, _ := f.do(t, http.MethodPost, "/admin/members/bob/validate", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, f.app.Config.Set(context.Background(), config.KeyRequiredRoleID, "member"))
	rec, body := f.do(t, http.MethodPost, "/admin/members/bob/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Validation role assigned to <@bob>.", body["message"])
	assert.True(t, f.fake.HasRole("bob", "member"))

	rec, _ = f.do(t, http.MethodPost, "/admin/members/ghost/validate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryEndpoints(t *testing.T) {
	f := newFixture(t, "")
	f.pending(t, "alice", "bob")
	f.pending(t, "alice", "carol")
	_, err := f.app.Machine.StartHold(context.Background(), "carol")
	require.NoError(t, err)

	rec, body := f.do(t, http.MethodGet, "/referrals/stats/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tokens: 3\nPending: 2\nConfirmed: 0\nFailed: 0", body["text"])

	rec, body = f.do(t, http.MethodGet, "/referrals/invitee/bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["text"], "Invited by: <@alice>")

	rec, _ = f.do(t, http.MethodGet, "/referrals/invitee/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/referrals/inviter/alice?status=holding&limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 50, body["limit"])
	assert.Len(t, body["referrals"], 1)

	rec, _ = f.do(t, http.MethodGet, "/referrals/inviter/alice?status=done", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/referrals/inviter/alice?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/referrals/holding", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items := body["referrals"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "🔵 7 days remaining", items[0].(map[string]any)["remaining"])

	rec, body = f.do(t, http.MethodGet, "/referrals/leaderboard?period=week", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "No leaderboard data yet.", body["text"])
	assert.Empty(t, body["entries"])

	rec, _ = f.do(t, http.MethodGet, "/referrals/leaderboard?period=year", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLinkEndpoint(t *testing.T) {
	f := newFixture(t, "")

	rec, _ := f.do(t, http.MethodPost, "/referrals/link/alice", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, f.app.Config.Set(context.Background(), config.KeyInviteChannelID, "invites"))
	rec, body := f.do(t, http.MethodPost, "/referrals/link/alice", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Your link: https://discord.gg/code1 | Tokens left: 5", body["text"])

	rec, _ = f.do(t, http.MethodPost, "/referrals/link/alice", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, "")
	f.do(t, http.MethodGet, "/healthz", "")

	rec, _ := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
