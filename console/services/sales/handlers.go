package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EntityIDRequest seleciona um local ou cliente (0 limpa a seleção)
type EntityIDRequest struct {
	ID int64 `json:"id"`
}

func (r *EntityIDRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ID, validation.Min(int64(0))),
	)
}

type TimestampRequest struct {
	FechaVenta string `json:"fechaVenta"`
}

type LineProductRequest struct {
	ProductID *int64 `json:"productId"`
}

func (r *LineProductRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProductID, validation.NotNil),
	)
}

type LineQuantityRequest struct {
	Cantidad *int `json:"cantidad"`
}

func (r *LineQuantityRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Cantidad, validation.NotNil),
	)
}

type LinePriceRequest struct {
	PrecioUnitario *decimal.Decimal `json:"precioUnitario"`
}

func (r *LinePriceRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PrecioUnitario, validation.NotNil),
	)
}

type CancelRequest struct {
	Confirmed bool `json:"confirmed"`
}

type SessionRequest struct {
	Token string `json:"token"`
}

func (r *SessionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Token, validation.Required),
	)
}

// ConsoleHandler contém os handlers HTTP do console de vendas
type ConsoleHandler struct {
	composer *SaleComposer
	cache    *ReferenceCache
	session  *Session
	journal  SubmissionJournal
	logger   *zap.Logger
}

// NewConsoleHandler cria uma nova instância de ConsoleHandler
func NewConsoleHandler(composer *SaleComposer, cache *ReferenceCache, session *Session, journal SubmissionJournal, logger *zap.Logger) *ConsoleHandler {
	return &ConsoleHandler{
		composer: composer,
		cache:    cache,
		session:  session,
		journal:  journal,
		logger:   logger,
	}
}

// RegisterRoutes registra as rotas do console no router
func (h *ConsoleHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/console")
	api.GET("/reference", h.GetReference)
	api.POST("/reference/reload", h.ReloadReference)
	api.GET("/sales", h.ListSales)
	api.GET("/submissions", h.ListSubmissions)

	api.PUT("/session", h.SetSession)
	api.DELETE("/session", h.ClearSession)

	compose := api.Group("/compose")
	compose.GET("", h.GetCompose)
	compose.POST("/open", h.OpenCompose)
	compose.POST("/cancel", h.CancelCompose)
	compose.PUT("/store", h.SetStore)
	compose.PUT("/client", h.SetClient)
	compose.PUT("/timestamp", h.SetTimestamp)
	compose.POST("/lines", h.AddLine)
	compose.DELETE("/lines/:index", h.RemoveLine)
	compose.PUT("/lines/:index/product", h.SetLineProduct)
	compose.PUT("/lines/:index/quantity", h.SetLineQuantity)
	compose.PUT("/lines/:index/price", h.SetLinePrice)
	compose.POST("/submit", h.Submit)
}

// GetReference retorna as listas de seleção
func (h *ConsoleHandler) GetReference(c *gin.Context) {
	snapshot := h.cache.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"locales":   nonNil(snapshot.Stores),
		"clientes":  nonNil(snapshot.Clients),
		"productos": nonNil(snapshot.Products),
		"loadedAt":  snapshot.LoadedAt,
		"error":     h.cache.LoadError(),
	})
}

// ReloadReference recarrega os dados de referência
func (h *ConsoleHandler) ReloadReference(c *gin.Context) {
	if err := h.cache.LoadAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": h.cache.LoadError()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success", "loadedAt": h.cache.Snapshot().LoadedAt})
}

// ListSales retorna o histórico de vendas do último carregamento
func (h *ConsoleHandler) ListSales(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ventas": nonNil(h.cache.Snapshot().Sales),
		"error":  h.cache.LoadError(),
	})
}

// ListSubmissions retorna as últimas tentativas de envio registradas
func (h *ConsoleHandler) ListSubmissions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	entries, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read submission journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read submissions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": entries})
}

func (h *ConsoleHandler) SetSession(c *gin.Context) {
	var req SessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	h.session.SetToken(req.Token)
	c.JSON(http.StatusOK, gin.H{"active": h.session.Active()})
}

func (h *ConsoleHandler) ClearSession(c *gin.Context) {
	h.session.Invalidate("logout")
	c.JSON(http.StatusOK, gin.H{"active": false})
}

func (h *ConsoleHandler) GetCompose(c *gin.Context) {
	c.JSON(http.StatusOK, h.composer.View())
}

func (h *ConsoleHandler) OpenCompose(c *gin.Context) {
	c.JSON(http.StatusOK, h.composer.Open())
}

func (h *ConsoleHandler) CancelCompose(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.composer.Cancel(req.Confirmed)
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) SetStore(c *gin.Context) {
	var req EntityIDRequest
	if !bindAndValidate(c, &req) {
		return
	}
	view, err := h.composer.SetStore(req.ID)
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) SetClient(c *gin.Context) {
	var req EntityIDRequest
	if !bindAndValidate(c, &req) {
		return
	}
	view, err := h.composer.SetClient(req.ID)
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) SetTimestamp(c *gin.Context) {
	var req TimestampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.composer.SetTimestamp(req.FechaVenta)
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) AddLine(c *gin.Context) {
	view, err := h.composer.AddLine()
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) RemoveLine(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	view, err := h.composer.RemoveLine(index)
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) SetLineProduct(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req LineProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	view, err := h.composer.SetLineProduct(index, *req.ProductID)
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) SetLineQuantity(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req LineQuantityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	view, err := h.composer.SetLineQuantity(index, *req.Cantidad)
	h.renderView(c, view, err)
}

func (h *ConsoleHandler) SetLinePrice(c *gin.Context) {
	index, ok := lineIndex(c)
	if !ok {
		return
	}
	var req LinePriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	view, err := h.composer.SetLineUnitPrice(index, *req.PrecioUnitario)
	h.renderView(c, view, err)
}

// Submit envia o rascunho atual
func (h *ConsoleHandler) Submit(c *gin.Context) {
	result, err := h.composer.Submit(c.Request.Context())
	if err != nil {
		h.renderView(c, h.composer.View(), err)
		return
	}

	status := http.StatusCreated
	switch {
	case result.Ignored:
		status = http.StatusAccepted
	case result.Rejection != nil:
		status = http.StatusUnprocessableEntity
	case result.Phase == PhaseFailed:
		status = http.StatusBadGateway
	}

	c.JSON(status, gin.H{
		"result":  result,
		"compose": h.composer.View(),
	})
}

// HealthCheck verifica a saúde do serviço
func (h *ConsoleHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "sales-console",
		"reference": h.cache.LoadError() == "",
		"session":   h.session.Active(),
	})
}

func (h *ConsoleHandler) renderView(c *gin.Context, view ComposerView, err error) {
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrLineIndexOutOfRange):
		status = http.StatusNotFound
	case errors.Is(err, ErrComposeClosed),
		errors.Is(err, ErrDiscardNeedsConfirmation),
		errors.Is(err, ErrSubmissionInFlight):
		status = http.StatusConflict
	default:
		h.logger.Error("compose operation failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error(), "compose": view})
}

type validatable interface {
	Validate() error
}

func bindAndValidate(c *gin.Context, req validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func lineIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "line index must be an integer"})
		return 0, false
	}
	return index, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
