package main

import (
	"context"
	"net/http"
	"promo-redemption/internal/model"
	"promo-redemption/pkg/apperrors"
	"promo-redemption/pkg/tracing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("promo-redemption/http")

type redeemer interface {
	Apply(ctx context.Context, req *model.ApplyPromoCodeRequest) (*model.ApplyPromoCodeResult, error)
}

type promoCodeService interface {
	CreatePromoCode(ctx context.Context, req *model.CreatePromoCodeRequest) (*model.PromoCode, error)
	GetPromoCode(ctx context.Context, code string) (*model.PromoCode, error)
}

type orderService interface {
	CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
}

type services struct {
	redemption redeemer
	promoCodes promoCodeService
	orders     orderService
}

func setupRouter(svc services) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api")
	{
		api.POST("/promo-codes", createPromoCodeHandler(svc.promoCodes))
		api.POST("/promo-codes/apply", applyPromoCodeHandler(svc.redemption))
		api.GET("/promo-codes/:code", getPromoCodeHandler(svc.promoCodes))
		api.POST("/orders", createOrderHandler(svc.orders))
		api.GET("/orders/:id", getOrderHandler(svc.orders))
	}

	return router
}

// requestLogger continues the caller's trace, opens a server span and
// attaches a request-scoped zerolog logger to the request context
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", requestID),
			))
		defer span.End()

		logCtx := zlog.With().Str("request_id", requestID)
		if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
			logCtx = logCtx.Str("trace_id", traceID)
		}
		logger := logCtx.Logger()
		c.Request = c.Request.WithContext(logger.WithContext(ctx))

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

func writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		zlog.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// createPromoCodeHandler handles POST /api/promo-codes
func createPromoCodeHandler(svc promoCodeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreatePromoCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		promo, err := svc.CreatePromoCode(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, promo)
	}
}

// applyPromoCodeHandler handles POST /api/promo-codes/apply
func applyPromoCodeHandler(svc redeemer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.ApplyPromoCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result, err := svc.Apply(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// getPromoCodeHandler handles GET /api/promo-codes/:code
func getPromoCodeHandler(svc promoCodeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		promo, err := svc.GetPromoCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, promo)
	}
}

// createOrderHandler handles POST /api/orders
func createOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		order, err := svc.CreateOrder(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, order)
	}
}

// getOrderHandler handles GET /api/orders/:id
func getOrderHandler(svc orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.GetOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, order)
	}
}
