package http_server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"auctiongate/internal/authz"
	"auctiongate/internal/services/auction"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var svc auction.IAuctionService // routes below never reach the service
	srv := NewHttpServer(context.Background(), 8085, svc, authz.NewVerifier("router-test-secret-01"))
	r := srv.Router()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auctions", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auctions/auc-1/approve", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
