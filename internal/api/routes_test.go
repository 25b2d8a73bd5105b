package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nil-match/backend/internal/matching"
	"nil-match/backend/internal/scoring"
	"nil-match/backend/internal/store"
)

type testServer struct {
	*Server
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	srv := newServer(db, scoring.Default(), Config{DefaultPageSize: 10})
	seq := 0
	srv.newID = func() string {
		seq++
		return fmt.Sprintf("id-%02d", seq)
	}
	clock := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	srv.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	router, err := srv.Router()
	require.NoError(t, err)
	return &testServer{Server: srv, router: router}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type createdBrand struct {
	Item           BrandDTO          `json:"item"`
	Recompute      *matching.Summary `json:"recompute"`
	RecomputeError string            `json:"recompute_error"`
}

type createdAthlete struct {
	Item      AthleteDTO        `json:"item"`
	Recompute *matching.Summary `json:"recompute"`
}

func apparelBrand() gin.H {
	return gin.H{
		"name":            "Peach State Apparel",
		"category":        "Apparel",
		"location":        "Atlanta, GA",
		"budget":          15000,
		"target_audience": "College athletes",
	}
}

func footballAthlete() gin.H {
	return gin.H{
		"name":            "Jordan Miles",
		"sport":           "Football",
		"school":          "Georgia Tech",
		"location":        "Atlanta, GA",
		"followers":       45000,
		"engagement_rate": 4.2,
	}
}

func TestHealthAndConfig(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[map[string]any](t, rec)
	assert.Contains(t, cfg["categories"], "Apparel")
	assert.Contains(t, cfg["sports"], "Swimming")
	assert.EqualValues(t, 10, cfg["page_size"])

	rec = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBrandValidation(t *testing.T) {
	ts := newTestServer(t)

	missing := apparelBrand()
	delete(missing, "budget")
	rec := ts.do(t, http.MethodPost, "/api/brands", missing)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "budget is required")

	negative := apparelBrand()
	negative["budget"] = -1
	rec = ts.do(t, http.MethodPost, "/api/brands", negative)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/brands", gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "name is required")

	count, err := ts.db.CountBrands()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCatalogCreationRecomputesMatches(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/brands", apparelBrand())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	brand := decode[createdBrand](t, rec)
	assert.Equal(t, "id-01", brand.Item.ID)
	require.NotNil(t, brand.Recompute)
	assert.Equal(t, matching.TriggerBrand, brand.Recompute.Trigger)
	assert.Zero(t, brand.Recompute.Total)

	rec = ts.do(t, http.MethodPost, "/api/athletes", footballAthlete())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	athlete := decode[createdAthlete](t, rec)
	require.NotNil(t, athlete.Recompute)
	assert.Equal(t, 1, athlete.Recompute.Total)
	assert.Equal(t, 1, athlete.Recompute.TopMatches)

	rec = ts.do(t, http.MethodGet, "/api/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decode[MatchesResponse](t, rec)
	require.EqualValues(t, 1, matches.Total)
	match := matches.Items[0]
	assert.Equal(t, matching.EvaluationID(brand.Item.ID, athlete.Item.ID), match.ID)
	assert.Equal(t, 86, match.Score)
	assert.Equal(t, "excellent", match.Band)
	assert.Equal(t, "Peach State Apparel", match.BrandName)
	assert.Equal(t, "Football", match.AthleteSport)
	assert.Equal(t, []string{}, match.RiskFactors)

	rec = ts.do(t, http.MethodGet, "/api/matches/"+match.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	single := decode[MatchDTO](t, rec)
	assert.Equal(t, match.Explanation, single.Explanation)

	rec = ts.do(t, http.MethodGet, "/api/matches/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/brands/"+brand.Item.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/athletes/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	last := ts.matcher.LastSummary()
	require.NotNil(t, last)
	assert.Equal(t, matching.TriggerAthlete, last.Trigger)
	status := ts.notifier.LastStatus()
	require.NotNil(t, status)
	require.Len(t, status.Top, 1)
	assert.Equal(t, match.ID, status.Top[0].ID)
}

func TestAthleteEngagementDefaults(t *testing.T) {
	ts := newTestServer(t)

	body := footballAthlete()
	delete(body, "engagement_rate")
	rec := ts.do(t, http.MethodPost, "/api/athletes", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	athlete := decode[createdAthlete](t, rec)
	assert.Equal(t, 3.8, athlete.Item.EngagementRate)

	tests := []struct {
		followers int64
		want      float64
	}{
		{60000, 4.2},
		{50000, 3.8},
		{20001, 3.8},
		{20000, 3.5},
		{0, 3.5},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, store.DefaultEngagementRate(tc.followers), "followers %d", tc.followers)
	}
}

func TestMatchFilters(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/brands", apparelBrand()).Code)
	casino := gin.H{"name": "Lucky", "category": "Gambling", "location": "Las Vegas, NV", "budget": 0, "target_audience": "Adults"}
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/brands", casino).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/athletes", footballAthlete()).Code)

	rec := ts.do(t, http.MethodGet, "/api/matches?band=excellent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	excellent := decode[MatchesResponse](t, rec)
	assert.EqualValues(t, 1, excellent.Total)

	rec = ts.do(t, http.MethodGet, "/api/matches?min_score=0&sort=score_asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	asc := decode[MatchesResponse](t, rec)
	require.Len(t, asc.Items, 2)
	assert.Equal(t, "Gambling", asc.Items[0].BrandCategory)
	assert.Contains(t, asc.Items[0].RiskFactors, scoring.RiskProhibited)

	rec = ts.do(t, http.MethodGet, "/api/matches?page=1&pageSize=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[MatchesResponse](t, rec)
	assert.EqualValues(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Items[0].Rank)

	rec = ts.do(t, http.MethodGet, "/api/matches?max_score=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	none := decode[MatchesResponse](t, rec)
	assert.Zero(t, none.Total)
	assert.Empty(t, none.Items)

	rec = ts.do(t, http.MethodGet, "/api/matches?band=excellent&max_score=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[MatchesResponse](t, rec).Total)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/matches?band=legendary", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/matches?min_score=abc", nil).Code)
}

func TestEvaluateInline(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/evaluate", gin.H{"brand": apparelBrand(), "athlete": footballAthlete()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[EvaluateResponse](t, rec)
	assert.Equal(t, 86, resp.Score)
	assert.Equal(t, "excellent", resp.Band)
	assert.Equal(t, 100.0, resp.LocationMatch)
	assert.Equal(t, []string{"athlete", "college"}, resp.MatchedKeywords)

	_, total, err := ts.db.ListEvaluations(store.EvaluationQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)

	rec = ts.do(t, http.MethodPost, "/api/evaluate", gin.H{"athlete": footballAthlete()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/evaluate", gin.H{"brand_id": "missing", "athlete": footballAthlete()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDealLifecycleAndStats(t *testing.T) {
	ts := newTestServer(t)
	brand := decode[createdBrand](t, ts.do(t, http.MethodPost, "/api/brands", apparelBrand()))
	athlete := decode[createdAthlete](t, ts.do(t, http.MethodPost, "/api/athletes", footballAthlete()))

	rec := ts.do(t, http.MethodPost, "/api/deals", gin.H{"brand_id": "ghost", "athlete_id": athlete.Item.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/deals", gin.H{"brand_id": brand.Item.ID, "athlete_id": athlete.Item.ID, "start_date": "2026-05-01", "end_date": "2026-04-01"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/deals", gin.H{
		"brand_id":   brand.Item.ID,
		"athlete_id": athlete.Item.ID,
		"value":      7500,
		"start_date": "2026-05-01",
		"end_date":   "2026-08-31T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	deal := decode[DealDTO](t, rec)
	assert.Equal(t, store.DealPending, deal.Status)
	require.NotNil(t, deal.StartDate)
	assert.Equal(t, time.May, deal.StartDate.Month())

	rec = ts.do(t, http.MethodPatch, "/api/deals/"+deal.ID, gin.H{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPatch, "/api/deals/"+deal.ID, gin.H{"status": "pending"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = ts.do(t, http.MethodPatch, "/api/deals/"+deal.ID, gin.H{"status": "signed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPatch, "/api/deals/unknown", gin.H{"status": "active"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/deals?status=active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), deal.ID)

	rec = ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsResponse](t, rec)
	assert.EqualValues(t, 1, stats.TotalBrands)
	assert.EqualValues(t, 1, stats.TotalAthletes)
	assert.EqualValues(t, 1, stats.ActiveDeals)
	assert.EqualValues(t, 1, stats.TopMatches)
	require.NotNil(t, stats.LastRecompute)
}

func TestExportAndRecompute(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/brands", apparelBrand()).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/athletes", footballAthlete()).Code)

	rec := ts.do(t, http.MethodPost, "/api/matches/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[matching.Summary](t, rec)
	assert.Equal(t, matching.TriggerManual, summary.Trigger)
	assert.Equal(t, 1, summary.Total)

	rec = ts.do(t, http.MethodGet, "/api/export.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "rank,brand_id,brand_name"))
	assert.True(t, strings.HasPrefix(lines[1], "1,id-01,Peach State Apparel,id-02,Jordan Miles,86,excellent"))

	rec = ts.do(t, http.MethodGet, "/api/export.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "nil-matches.json")
	rows := decode[[]MatchDTO](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, 86, rows[0].Score)
}

func readMatchEvent(t *testing.T, conn *websocket.Conn) MatchEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event MatchEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestMatchStreamReplaysAndPushes(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/brands", apparelBrand()).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/athletes", footballAthlete()).Code)

	httpSrv := httptest.NewServer(ts.router)
	t.Cleanup(httpSrv.Close)

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/matches/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	replayed := readMatchEvent(t, conn)
	assert.Equal(t, "recomputed", replayed.Type)
	require.NotNil(t, replayed.Summary)
	assert.Equal(t, matching.TriggerAthlete, replayed.Summary.Trigger)
	assert.Equal(t, 1, replayed.Summary.Total)
	require.Len(t, replayed.Top, 1)
	assert.Equal(t, 86, replayed.Top[0].Score)

	require.Eventually(t, func() bool { return ts.notifier.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	second := apparelBrand()
	second["name"] = "Midtown Threads"
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/brands", second).Code)

	pushed := readMatchEvent(t, conn)
	assert.Equal(t, "recomputed", pushed.Type)
	require.NotNil(t, pushed.Summary)
	assert.Equal(t, matching.TriggerBrand, pushed.Summary.Trigger)
	assert.Equal(t, 2, pushed.Summary.Total)
	assert.Len(t, pushed.Top, 2)
}
