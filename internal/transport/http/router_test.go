package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spout/internal/compliance/issuers"
	complianceservice "spout/internal/compliance/service"
	compliancestore "spout/internal/compliance/store"
	"spout/internal/compliance/topics"
	identityservice "spout/internal/identity/service"
	identitystore "spout/internal/identity/store"
	"spout/internal/orders/models"
	"spout/internal/orders/oracle"
	"spout/internal/orders/pricecache"
	ordersservice "spout/internal/orders/service"
	ordersstore "spout/internal/orders/store"
	"spout/internal/platform/middleware"
)

var (
	ownerAddr  = common.HexToAddress("0x0000000000000000000000000000000000005001")
	userAddr   = common.HexToAddress("0x0000000000000000000000000000000000005002")
	tokenAddr  = common.HexToAddress("0x0000000000000000000000000000000000005003")
	routerAddr = common.HexToAddress("0x0000000000000000000000000000000000005004")
)

type env struct {
	handler   http.Handler
	validator *middleware.Validator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	identities := identityservice.New(identitystore.NewInMemory())
	registry := complianceservice.New(
		compliancestore.NewInMemory(),
		topics.NewRegistry(),
		issuers.NewRegistry(),
		identities,
		complianceservice.NewStaticOwners(ownerAddr),
	)
	orders := ordersservice.New(ordersstore.NewInMemory(), pricecache.NewMemory(), oracle.NewLocal())

	validator := middleware.NewValidator("test-signing-key")
	handler := NewRouter(Deps{
		Identities:             identities,
		Registry:               registry,
		Orders:                 orders,
		Validator:              validator,
		Logger:                 slog.New(slog.DiscardHandler),
		DefaultSubscriptionRef: 1,
	})
	return &env{handler: handler, validator: validator}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) token(t *testing.T, caller common.Address, roles ...string) string {
	t.Helper()
	token, err := e.validator.IssueToken(caller, roles...)
	require.NoError(t, err)
	return token
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/prices/LQD", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/metrics", "", nil).Code)
}

func TestIdentityLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, userAddr)

	rec := e.do(t, http.MethodPost, "/identities", token, map[string]string{
		"address": userAddr.Hex(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/identities/"+userAddr.Hex(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var identity struct {
		Address string `json:"address"`
		Keys    []struct {
			Purposes []uint64 `json:"purposes"`
		} `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &identity))
	assert.Equal(t, userAddr.Hex(), identity.Address)
	require.Len(t, identity.Keys, 1)
	assert.Equal(t, []uint64{1}, identity.Keys[0].Purposes)

	rec = e.do(t, http.MethodPost, "/identities", token, map[string]string{
		"address": userAddr.Hex(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/identities/"+tokenAddr.Hex(), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistryAdminRequiresRole(t *testing.T) {
	e := newEnv(t)

	// Right address, missing role.
	rec := e.do(t, http.MethodPost, "/registry/topics", e.token(t, ownerAddr), map[string]uint64{"topic": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Role present, address not in the owner set: the service rejects it.
	rec = e.do(t, http.MethodPost, "/registry/topics", e.token(t, userAddr, middleware.RoleRegistryOwner), map[string]uint64{"topic": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/registry/topics", e.token(t, ownerAddr, middleware.RoleRegistryOwner), map[string]uint64{"topic": 1})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, http.MethodGet, "/registry/topics", e.token(t, userAddr), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"topics":[1]}`, rec.Body.String())
}

func TestOrderFlowOverHTTP(t *testing.T) {
	e := newEnv(t)
	userToken := e.token(t, userAddr)
	oracleToken := e.token(t, routerAddr, middleware.RoleOracleRouter)

	rec := e.do(t, http.MethodPost, "/orders/buy", userToken, map[string]any{
		"ticker": "LQD",
		"token":  tokenAddr.Hex(),
		"amount": "100000000",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var submitted struct {
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	_, ok := models.ParseRequestID(submitted.RequestID)
	require.True(t, ok)

	// The callback is gated on the oracle-router role.
	fulfillBody := map[string]string{
		"request_id": submitted.RequestID,
		"response":   "0x0000000000000000000000000000000000000000000000000000000000004e20",
	}
	rec = e.do(t, http.MethodPost, "/orders/fulfill", userToken, fulfillBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/orders/fulfill", oracleToken, fulfillBody)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/prices/LQD", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quote struct {
		Price string `json:"price"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "20000", quote.Price)

	rec = e.do(t, http.MethodGet, "/orders/pending", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())
}

func TestInvalidAmountRejected(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/orders/buy", e.token(t, userAddr), map[string]any{
		"ticker": "LQD",
		"token":  tokenAddr.Hex(),
		"amount": "0",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_amount")
}
