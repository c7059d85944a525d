package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"auctiongate/internal/http/auctionhandler"
	"auctiongate/internal/services/auction"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type httpServer struct {
	listenPort     uint16
	srv            http.Server
	ln             net.Listener
	auctionService auction.IAuctionService
	verifier       auctionhandler.TokenVerifier
	ctx            context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, auctionService auction.IAuctionService, verifier auctionhandler.TokenVerifier) *httpServer {
	return &httpServer{
		listenPort:     listenPort,
		auctionService: auctionService,
		verifier:       verifier,
		ctx:            ctx,
	}
}

// Router builds the gin engine. Everything except docs and health sits
// behind bearer authentication.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()

	// Swagger UI and the specs generated by `go generate`
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	routerEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, auctionhandler.Envelope{Status: "success", Message: "ok"})
	})

	api := routerEngine.Group("/", auctionhandler.Authenticate(h.verifier))
	auctionhandler.New(h.auctionService).Register(api)

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	zap.L().Info("http_listening", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose shuts the server down, waiting up to 10 s for in-flight requests.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	return nil
}
