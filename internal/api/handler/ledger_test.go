package handler

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/creditflow_server/internal/model"
	"github.com/qs3c/creditflow_server/internal/pkg/response"
	"github.com/qs3c/creditflow_server/internal/testutil"
)

func ledgerRouter(env *handlerEnv, userID int64) *gin.Engine {
	router := gin.New()
	router.GET("/billing/plans", env.Ledger.Plans)

	auth := router.Group("")
	if userID > 0 {
		auth.Use(mockAuth(userID))
	}
	auth.GET("/user/credits", env.Ledger.GetCredits)
	auth.POST("/credits/reset", env.Ledger.ResetCredits)
	auth.POST("/billing/upgrade", env.Ledger.Upgrade)
	auth.GET("/billing/transactions", env.Ledger.Transactions)
	return router
}

func TestLedgerHandler_GetCredits(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB, testutil.WithCredits(7))

	w := doRequest(ledgerRouter(env, user.ID), "GET", "/user/credits", nil)
	data := dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Equal(t, float64(7), data["credits_remaining"])
	assert.Equal(t, model.TierFree, data["tier"])
}

func TestLedgerHandler_GetCredits_NoAuth(t *testing.T) {
	env := setupHandlers(t, nil)

	w := doRequest(ledgerRouter(env, 0), "GET", "/user/credits", nil)
	expectCode(t, w, response.CodeAuthFailed)
}

func TestLedgerHandler_GetCredits_UnknownAccount(t *testing.T) {
	env := setupHandlers(t, nil)

	w := doRequest(ledgerRouter(env, 999), "GET", "/user/credits", nil)
	expectCode(t, w, response.CodeResourceNotFound)
}

func TestLedgerHandler_Upgrade(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB)
	router := ledgerRouter(env, user.ID)

	w := doRequest(router, "POST", "/billing/upgrade", map[string]string{"plan_id": model.TierPro})
	data := dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Equal(t, float64(500), data["credits_remaining"])
	assert.Equal(t, model.TierPro, data["tier"])
	assert.Equal(t, "Successfully upgraded to pro plan", data["message"])

	assert.Equal(t, 500, balanceOf(t, env.DB, user.ID))
}

func TestLedgerHandler_Upgrade_Invalid(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB)
	router := ledgerRouter(env, user.ID)

	w := doRequest(router, "POST", "/billing/upgrade", map[string]string{"plan_id": "platinum"})
	expectCode(t, w, response.CodeParamError)

	w = doRequest(router, "POST", "/billing/upgrade", map[string]string{})
	expectCode(t, w, response.CodeParamError)

	assert.Equal(t, 10, balanceOf(t, env.DB, user.ID))
}

func TestLedgerHandler_ResetCredits(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB, testutil.WithTier(model.TierPro), testutil.WithCredits(3))

	w := doRequest(ledgerRouter(env, user.ID), "POST", "/credits/reset", nil)
	data := dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Equal(t, float64(500), data["credits_remaining"])
}

func TestLedgerHandler_Plans(t *testing.T) {
	env := setupHandlers(t, nil)

	w := doRequest(ledgerRouter(env, 0), "GET", "/billing/plans", nil)
	resp := expectCode(t, w, response.CodeSuccess)

	plans, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, plans, 3)
	first := plans[0].(map[string]interface{})
	assert.Equal(t, model.TierFree, first["tier"])
	assert.Equal(t, float64(10), first["credits"])
}

func TestLedgerHandler_Transactions(t *testing.T) {
	env := setupHandlers(t, nil)
	user := testutil.TestUser(t, env.DB)
	router := ledgerRouter(env, user.ID)

	expectCode(t, doRequest(router, "POST", "/billing/upgrade", map[string]string{"plan_id": model.TierPro}), response.CodeSuccess)
	expectCode(t, doRequest(router, "POST", "/credits/reset", nil), response.CodeSuccess)

	w := doRequest(router, "GET", "/billing/transactions", nil)
	data := dataMap(t, expectCode(t, w, response.CodeSuccess))
	txns, ok := data["transactions"].([]interface{})
	require.True(t, ok)
	require.Len(t, txns, 2)
	newest := txns[0].(map[string]interface{})
	assert.Equal(t, "Credits reset to pro allotment", newest["description"])

	w = doRequest(router, "GET", "/billing/transactions?limit=1", nil)
	data = dataMap(t, expectCode(t, w, response.CodeSuccess))
	assert.Len(t, data["transactions"], 1)
}
