package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/creditflow_server/config"
	"github.com/qs3c/creditflow_server/internal/api/middleware"
	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/pkg/generator"
	"github.com/qs3c/creditflow_server/internal/pkg/response"
	"github.com/qs3c/creditflow_server/internal/repository"
	"github.com/qs3c/creditflow_server/internal/service"
	"github.com/qs3c/creditflow_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type handlerEnv struct {
	DB         *gorm.DB
	Ledger     *LedgerHandler
	Generation *GenerationHandler
	Content    *ContentHandler
	Project    *ProjectHandler
}

func setupHandlers(t *testing.T, provider generator.Provider) *handlerEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	userRepo := repository.NewUserRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	contentRepo := repository.NewContentRepository(db)
	projectRepo := repository.NewProjectRepository(db)

	ledger := service.NewLedgerService(db, userRepo, txnRepo, config.LedgerConfig{MaxRetries: 3, RetryBackoffMs: 1}, nil)
	aggregate := service.NewAggregateMaintainer(db, projectRepo, nil)
	contents := service.NewContentService(db, contentRepo, projectRepo, aggregate, nil)
	projects := service.NewProjectService(db, projectRepo, contentRepo)

	if provider == nil {
		provider = generator.NewPlaceholder()
	}
	generation := service.NewGenerationService(db, ledger, contents, provider, time.Second, nil)

	return &handlerEnv{
		DB:         db,
		Ledger:     NewLedgerHandler(ledger),
		Generation: NewGenerationHandler(generation),
		Content:    NewContentHandler(contents),
		Project:    NewProjectHandler(projects),
	}
}

func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func balanceOf(t *testing.T, db *gorm.DB, userID int64) int {
	t.Helper()
	var user model.User
	require.NoError(t, db.First(&user, userID).Error)
	return user.CreditsRemaining
}

type failingProvider struct{}

func (failingProvider) Generate(ctx context.Context, contentType, prompt string) (*generator.Result, error) {
	return nil, generator.ErrEmptyResult
}

var _ generator.Provider = failingProvider{}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, code int) response.Response {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	require.Equal(t, code, resp.Code, "message: %s", resp.Message)
	return resp
}
