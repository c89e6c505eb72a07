package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sakif/intra-rank/internal/apperror"
	"github.com/sakif/intra-rank/internal/handler"
	"github.com/sakif/intra-rank/internal/model"
	"github.com/stretchr/testify/assert"
)

// MockUserRepo implements repository.UserRepository for handler testing
// without a real database.
type MockUserRepo struct {
	Users          map[string]*model.IntraUser
	Cohort         []model.IntraUser
	CapturedCampus int
	CapturedPromo  int
	ReturnErr      error
}

func (m *MockUserRepo) Upsert(context.Context, *model.RankedUser) error { return nil }

func (m *MockUserRepo) GetByLogin(_ context.Context, login string) (*model.IntraUser, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	u, ok := m.Users[login]
	if !ok {
		return nil, apperror.NotFound("user", login)
	}
	return u, nil
}

func (m *MockUserRepo) ListByCohort(_ context.Context, campusID, promo int) ([]model.IntraUser, error) {
	m.CapturedCampus = campusID
	m.CapturedPromo = promo
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.Cohort, nil
}

// MockTaskRepo reports a fixed guard state.
type MockTaskRepo struct {
	Task model.SyncTask
}

func (m *MockTaskRepo) TryAcquire(context.Context) (bool, error) { return true, nil }
func (m *MockTaskRepo) Release(context.Context) error            { return nil }
func (m *MockTaskRepo) GetTask(context.Context) (*model.SyncTask, error) {
	t := m.Task
	return &t, nil
}

// MockSyncer records trigger calls instead of fetching anything.
type MockSyncer struct {
	CapturedToken string
	Calls         int
	ReturnStarted bool
}

func (m *MockSyncer) Trigger(_ context.Context, token string) bool {
	m.CapturedToken = token
	m.Calls++
	return m.ReturnStarted
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func intraUser(login string, level float64, rank int) model.IntraUser {
	return model.IntraUser{
		ID:       "u-" + login,
		Login:    login,
		Name:     "User " + login,
		Level:    level,
		CampusID: 55,
		Promo:    2024,
		Rank:     rank,
	}
}

// allowAll is a TokenValidator that accepts any non-empty token, so the
// middleware path can be exercised without an upstream server.
func allowAll(_ context.Context, token string) error {
	if token == "" {
		return apperror.Unauthorized("missing token")
	}
	return nil
}

func TestUserHandler_HandleCohort(t *testing.T) {
	logger := testLogger()

	t.Run("returns mirrored cohort and triggers sync", func(t *testing.T) {
		lastRun := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		userRepo := &MockUserRepo{
			Cohort: []model.IntraUser{
				intraUser("alice", 12.5, 1),
				intraUser("bob", 9.1, 2),
			},
		}
		taskRepo := &MockTaskRepo{Task: model.SyncTask{UpdatedAt: lastRun}}
		syncer := &MockSyncer{ReturnStarted: true}

		h := handler.NewUserHandler(userRepo, taskRepo, syncer, logger)
		protected := handler.RequireBearer(allowAll)(http.HandlerFunc(h.HandleCohort))

		req := httptest.NewRequest(http.MethodGet, "/api/users?campusId=15&year=2023", nil)
		req.Header.Set("Authorization", "Bearer user-token-1")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var res struct {
			Message    string            `json:"message"`
			LastUpdate time.Time         `json:"lastUpdate"`
			Users      []model.IntraUser `json:"users"`
		}
		err := json.NewDecoder(rr.Body).Decode(&res)
		assert.NoError(t, err)
		assert.Equal(t, "OK", res.Message)
		assert.Equal(t, lastRun, res.LastUpdate)
		assert.Len(t, res.Users, 2)
		assert.Equal(t, "alice", res.Users[0].Login)

		// query parameters reached the repository
		assert.Equal(t, 15, userRepo.CapturedCampus)
		assert.Equal(t, 2023, userRepo.CapturedPromo)

		// the validated token was forwarded to the trigger
		assert.Equal(t, 1, syncer.Calls)
		assert.Equal(t, "user-token-1", syncer.CapturedToken)
	})

	t.Run("defaults campus and year when omitted", func(t *testing.T) {
		userRepo := &MockUserRepo{Cohort: []model.IntraUser{}}
		h := handler.NewUserHandler(userRepo, &MockTaskRepo{}, &MockSyncer{}, logger)
		protected := handler.RequireBearer(allowAll)(http.HandlerFunc(h.HandleCohort))

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer user-token-1")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 55, userRepo.CapturedCampus)
		assert.Equal(t, 2024, userRepo.CapturedPromo)
	})

	t.Run("empty cohort serializes as empty array", func(t *testing.T) {
		userRepo := &MockUserRepo{Cohort: []model.IntraUser{}}
		h := handler.NewUserHandler(userRepo, &MockTaskRepo{}, &MockSyncer{}, logger)
		protected := handler.RequireBearer(allowAll)(http.HandlerFunc(h.HandleCohort))

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer user-token-1")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"users":[]`)
	})

	t.Run("repository failure returns 500", func(t *testing.T) {
		userRepo := &MockUserRepo{ReturnErr: errors.New("disk full")}
		syncer := &MockSyncer{}
		h := handler.NewUserHandler(userRepo, &MockTaskRepo{}, syncer, logger)
		protected := handler.RequireBearer(allowAll)(http.HandlerFunc(h.HandleCohort))

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer user-token-1")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		// the raw error text stays out of the response
		assert.NotContains(t, rr.Body.String(), "disk full")
		assert.Equal(t, 0, syncer.Calls)
	})
}

func TestUserHandler_HandleLookup(t *testing.T) {
	logger := testLogger()

	t.Run("returns known user", func(t *testing.T) {
		u := intraUser("jdoe", 11.42, 3)
		userRepo := &MockUserRepo{Users: map[string]*model.IntraUser{"jdoe": &u}}
		h := handler.NewUserHandler(userRepo, &MockTaskRepo{}, &MockSyncer{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/user?login=jdoe", nil)
		rr := httptest.NewRecorder()

		h.HandleLookup(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var res struct {
			Message string           `json:"message"`
			User    *model.IntraUser `json:"user"`
		}
		err := json.NewDecoder(rr.Body).Decode(&res)
		assert.NoError(t, err)
		assert.NotNil(t, res.User)
		assert.Equal(t, "jdoe", res.User.Login)
		assert.Equal(t, 3, res.User.Rank)
	})

	t.Run("unknown login is 200 with null user", func(t *testing.T) {
		userRepo := &MockUserRepo{Users: map[string]*model.IntraUser{}}
		h := handler.NewUserHandler(userRepo, &MockTaskRepo{}, &MockSyncer{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/user?login=ghost", nil)
		rr := httptest.NewRecorder()

		h.HandleLookup(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"user":null`)
	})

	t.Run("missing login is 400", func(t *testing.T) {
		h := handler.NewUserHandler(&MockUserRepo{}, &MockTaskRepo{}, &MockSyncer{}, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		rr := httptest.NewRecorder()

		h.HandleLookup(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var res handler.ErrorResponse
		err := json.NewDecoder(rr.Body).Decode(&res)
		assert.NoError(t, err)
		assert.Equal(t, "validation_error", res.Error)
	})
}

func TestRequireBearer(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header is 401", func(t *testing.T) {
		protected := handler.RequireBearer(allowAll)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)

		// same ErrorResponse shape as every other endpoint failure
		var res handler.ErrorResponse
		err := json.NewDecoder(rr.Body).Decode(&res)
		assert.NoError(t, err)
		assert.Equal(t, "unauthorized", res.Error)
		assert.NotEmpty(t, res.Message)
	})

	t.Run("rejected token is 401", func(t *testing.T) {
		reject := func(context.Context, string) error {
			return apperror.Unauthorized("upstream rejected token")
		}
		protected := handler.RequireBearer(reject)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("non-bearer scheme is 401", func(t *testing.T) {
		protected := handler.RequireBearer(allowAll)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rr := httptest.NewRecorder()

		protected.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
