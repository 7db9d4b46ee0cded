package handler

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/pkg/response"
	"github.com/qs3c/creditflow_server/internal/testutil"
)

func projectRouter(env *handlerEnv, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(mockAuth(userID))
	router.POST("/projects", env.Project.Create)
	router.GET("/projects", env.Project.List)
	router.GET("/projects/:id", env.Project.Get)
	router.PUT("/projects/:id", env.Project.Update)
	router.DELETE("/projects/:id", env.Project.Delete)
	return router
}

func TestProjectHandler_Create(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB)
	router := projectRouter(env, user.ID)

	w := doRequest(router, "POST", "/projects", map[string]string{"name": " Launch ", "description": "Q3"})
	data := dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Equal(t, "Launch", data["name"])
	assert.Equal(t, float64(0), data["content_count"])

	w = doRequest(router, "POST", "/projects", map[string]string{"name": "   "})
	expectCode(t, w, response.CodeParamError)

	w = doRequest(router, "POST", "/projects", map[string]string{})
	expectCode(t, w, response.CodeParamError)
}

func TestProjectHandler_ListAndGet(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB)
	project := testutil.TestProject(t, env.DB, user.ID, testutil.WithContentCount(1))
	testutil.TestContent(t, env.DB, user.ID, testutil.InProject(project.ID))
	testutil.TestProject(t, env.DB, user.ID)
	router := projectRouter(env, user.ID)

	w := doRequest(router, "GET", "/projects", nil)
	data := dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Equal(t, float64(2), data["total"])
	assert.Len(t, data["projects"], 2)

	w = doRequest(router, "GET", fmt.Sprintf("/projects/%d", project.ID), nil)
	data = dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Equal(t, float64(1), data["total"])
	assert.Len(t, data["contents"], 1)
}

func TestProjectHandler_NotOwned(t *testing.T) {
	env := setupHandlers(t, nil)
	owner := testutil.TestUser(t, env.DB)
	stranger := testutil.TestUser(t, env.DB)
	project := testutil.TestProject(t, env.DB, owner.ID)
	router := projectRouter(env, stranger.ID)
	path := fmt.Sprintf("/projects/%d", project.ID)

	expectCode(t, doRequest(router, "GET", path, nil), response.CodeResourceNotFound)
	expectCode(t, doRequest(router, "PUT", path, map[string]string{"name": "mine"}), response.CodeResourceNotFound)
	expectCode(t, doRequest(router, "DELETE", path, nil), response.CodeResourceNotFound)
}

func TestProjectHandler_Update(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB)
	project := testutil.TestProject(t, env.DB, user.ID)

	w := doRequest(projectRouter(env, user.ID), "PUT", fmt.Sprintf("/projects/%d", project.ID),
		map[string]string{"name": "Renamed", "description": "updated"})
	data := dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Equal(t, "Renamed", data["name"])
	assert.Equal(t, "updated", data["description"])
}

func TestProjectHandler_Delete_KeepsContents(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB)
	project := testutil.TestProject(t, env.DB, user.ID, testutil.WithContentCount(1))
	content := testutil.TestContent(t, env.DB, user.ID, testutil.InProject(project.ID))

	w := doRequest(projectRouter(env, user.ID), "DELETE", fmt.Sprintf("/projects/%d", project.ID), nil)
	expectCode(t, w, response.CodeSuccess)

	var c model.Content
	require.NoError(t, env.DB.First(&c, content.ID).Error)
	assert.Nil(t, c.ProjectID)
}
