package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/matchd/internal/adapters/http/api"
	"github.com/okian/matchd/internal/domain/model"
	"github.com/okian/matchd/internal/domain/types"
	"github.com/okian/matchd/internal/scheduler"
	"github.com/okian/matchd/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type getCall struct {
	userID  string
	scene   model.Scene
	max     int
	refresh bool
}

type mockDeps struct {
	mu          sync.Mutex
	list        model.RecommendationList
	fromCache   bool
	getErr      error
	gets        []getCall
	invalidated [][]model.Scene
	actions     []model.Action
	actionErr   error
	runs        map[string]scheduler.JobRun
	triggerErr  error
}

func (m *mockDeps) GetRecommendations(_ context.Context, userID string, sc model.Scene, maxResults int, refresh bool) (model.RecommendationList, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, getCall{userID, sc, maxResults, refresh})
	if m.getErr != nil {
		return model.RecommendationList{}, false, m.getErr
	}
	return m.list, m.fromCache, nil
}

func (m *mockDeps) Invalidate(_ context.Context, _ string, scenes ...model.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, scenes)
	return nil
}

func (m *mockDeps) RecordAction(_ context.Context, a model.Action) (model.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actionErr != nil {
		return model.Action{}, m.actionErr
	}
	a.ID = "act-1"
	m.actions = append(m.actions, a)
	return a, nil
}

func (m *mockDeps) Jobs() []string {
	return []string{scheduler.JobStatisticsRefresh, scheduler.JobDailyRegeneration}
}

func (m *mockDeps) SchedulerStatus() map[string]scheduler.JobRun { return m.runs }

func (m *mockDeps) TriggerJob(_ context.Context, name string) (scheduler.JobRun, error) {
	if m.triggerErr != nil {
		return scheduler.JobRun{}, m.triggerErr
	}
	return scheduler.JobRun{JobName: name, Trigger: scheduler.TriggerManual, Success: true}, nil
}

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "cacheEntries": 3}
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func TestRecommendationsRoutes(t *testing.T) {
	Convey("Given an API server over a mock service", t, func() {
		deps := &mockDeps{
			list: model.RecommendationList{
				UserID: "u1", Scene: model.SceneDating, GenerationID: "g1",
				Entries: []model.RecommendationEntry{{CandidateID: "c1", Score: 88}, {CandidateID: "c2", Score: 51}},
			},
			fromCache: true,
		}
		h := api.NewServer(deps, api.WithRequestTimeout(time.Second)).Handler()

		Convey("GET recommendations passes the query through", func() {
			w := do(h, http.MethodGet, "/v1/users/u1/recommendations?scene=Dating&limit=5&refresh=true", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(deps.gets, ShouldResemble, []getCall{{"u1", model.SceneDating, 5, true}})

			body := decode[types.Recommendations](w)
			So(body.FromCache, ShouldBeTrue)
			So(body.Count, ShouldEqual, 2)
			So(body.Entries[0].Rank, ShouldEqual, 1)
			So(body.Entries[1].CandidateID, ShouldEqual, "c2")
		})

		Convey("Limit and refresh are optional", func() {
			w := do(h, http.MethodGet, "/v1/users/u1/recommendations?scene=housing", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gets[0].max, ShouldEqual, 0)
			So(deps.gets[0].refresh, ShouldBeFalse)
		})

		Convey("Bad query parameters are rejected before the service", func() {
			for _, q := range []string{"scene=chess", "", "scene=dating&limit=-1", "scene=dating&limit=ten", "scene=dating&refresh=maybe"} {
				w := do(h, http.MethodGet, "/v1/users/u1/recommendations?"+q, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
			So(deps.gets, ShouldBeEmpty)
		})

		Convey("Service errors map onto statuses", func() {
			cases := map[error]int{
				model.ErrNotFound:                        http.StatusNotFound,
				model.Invalid(model.ErrInvalidRole, "x"): http.StatusBadRequest,
				model.ErrUpstreamUnavailable:             http.StatusServiceUnavailable,
				model.ErrCancelled:                       http.StatusGatewayTimeout,
				errors.New("surprise"):                   http.StatusInternalServerError,
			}
			for err, status := range cases {
				deps.getErr = err
				w := do(h, http.MethodGet, "/v1/users/u1/recommendations?scene=dating", "")
				So(w.Code, ShouldEqual, status)
			}
			deps.getErr = model.ErrNotFound
			w := do(h, http.MethodGet, "/v1/users/u1/recommendations?scene=dating", "")
			So(decode[map[string]string](w)["code"], ShouldEqual, "not_found")
		})

		Convey("DELETE drops one scene or all of them", func() {
			w := do(h, http.MethodDelete, "/v1/users/u1/recommendations?scene=housing", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			w = do(h, http.MethodDelete, "/v1/users/u1/recommendations", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(deps.invalidated, ShouldResemble, [][]model.Scene{{model.SceneHousing}, nil})

			w = do(h, http.MethodDelete, "/v1/users/u1/recommendations?scene=chess", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestActionsRoute(t *testing.T) {
	Convey("Given an API server over a mock service", t, func() {
		deps := &mockDeps{}
		h := api.NewServer(deps).Handler()

		Convey("A valid action is recorded for the path user", func() {
			w := do(h, http.MethodPost, "/v1/users/u1/actions", `{"target_user_id":"u2","scene":"Housing","type":"like"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(deps.actions, ShouldHaveLength, 1)
			So(deps.actions[0].UserID, ShouldEqual, "u1")
			So(deps.actions[0].Scene, ShouldEqual, model.SceneHousing)

			body := decode[types.Action](w)
			So(body.ID, ShouldEqual, "act-1")
			So(body.TargetUserID, ShouldEqual, "u2")
		})

		Convey("Malformed bodies are rejected", func() {
			w := do(h, http.MethodPost, "/v1/users/u1/actions", `{"target_user_id":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)

			w = do(h, http.MethodPost, "/v1/users/u1/actions", `{"scene":"housing","type":"like"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "target_user_id is required")

			w = do(h, http.MethodPost, "/v1/users/u1/actions", `{"target_user_id":"u2","scene":"housing","type":"like","extra":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.actions, ShouldBeEmpty)
		})

		Convey("Domain validation failures are 400s", func() {
			deps.actionErr = model.Invalid(model.ErrInvalidAction, "wink")
			w := do(h, http.MethodPost, "/v1/users/u1/actions", `{"target_user_id":"u2","scene":"housing","type":"wink"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode[map[string]string](w)["code"], ShouldEqual, "invalid_action")
		})
	})
}

func TestSchedulerRoutes(t *testing.T) {
	Convey("Given an API server over a mock service", t, func() {
		deps := &mockDeps{runs: map[string]scheduler.JobRun{
			scheduler.JobDailyRegeneration: {JobName: scheduler.JobDailyRegeneration, Success: true, Summary: "regenerated 4 of 5 lists"},
		}}
		h := api.NewServer(deps).Handler()

		Convey("Jobs are listed by name with their last run", func() {
			w := do(h, http.MethodGet, "/v1/scheduler/jobs", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode[map[string][]map[string]any](w)
			So(body["jobs"], ShouldHaveLength, 2)
			So(body["jobs"][0]["name"], ShouldEqual, scheduler.JobDailyRegeneration)
			So(body["jobs"][0]["last_run"], ShouldNotBeNil)
			So(body["jobs"][1]["last_run"], ShouldBeNil)
		})

		Convey("A manual run returns the JobRun", func() {
			w := do(h, http.MethodPost, "/v1/scheduler/jobs/hourly_cleanup/run", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[scheduler.JobRun](w).JobName, ShouldEqual, "hourly_cleanup")
		})

		Convey("Unknown and busy jobs map to 404 and 409", func() {
			deps.triggerErr = scheduler.ErrUnknownJob
			So(do(h, http.MethodPost, "/v1/scheduler/jobs/nope/run", "").Code, ShouldEqual, http.StatusNotFound)
			deps.triggerErr = scheduler.ErrJobRunning
			So(do(h, http.MethodPost, "/v1/scheduler/jobs/hourly_cleanup/run", "").Code, ShouldEqual, http.StatusConflict)
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given an API server over a mock service", t, func() {
		h := api.NewServer(&mockDeps{}).Handler()

		Convey("Health, stats and metrics respond", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](w)["status"], ShouldEqual, "ok")

			w = do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]any](w)["started"], ShouldEqual, true)

			w = do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "matchd_recommendation_http_requests_total")
		})

		Convey("Unknown routes and methods are rejected", func() {
			So(do(h, http.MethodGet, "/leaderboard", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodPut, "/stats", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
