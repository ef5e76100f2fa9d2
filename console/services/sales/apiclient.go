package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	salesPath    = "/api/v1/ventas"
	productsPath = "/api/v1/productos"
	storesPath   = "/api/v1/locales"
	clientsPath  = "/api/v1/clientes"
)

const sessionExpiredMessage = "Tu sesión ha expirado. Por favor, inicia sesión nuevamente."

// SalesAPI abstrai as operações da API remota usadas pelo console
type SalesAPI interface {
	ListSales(ctx context.Context) ([]Sale, error)
	ListProducts(ctx context.Context) ([]Product, error)
	ListStores(ctx context.Context) ([]Store, error)
	ListClients(ctx context.Context) ([]Client, error)
	CreateSale(ctx context.Context, req CreateSaleRequest) error
}

// EntityRef é uma referência {id} no corpo de criação da venda
type EntityRef struct {
	ID int64 `json:"id"`
}

// CreateSaleDetail é uma linha no formato esperado por POST /api/v1/ventas
type CreateSaleDetail struct {
	Producto       EntityRef `json:"producto"`
	Cantidad       int       `json:"cantidad"`
	PrecioUnitario float64   `json:"precioUnitario"`
}

// CreateSaleRequest é o corpo de POST /api/v1/ventas. Subtotais e total são calculados no servidor.
type CreateSaleRequest struct {
	Local      EntityRef          `json:"local"`
	Cliente    EntityRef          `json:"cliente"`
	FechaVenta string             `json:"fechaVenta"`
	Detalles   []CreateSaleDetail `json:"detalles"`
}

// NewCreateSaleRequest transforma o rascunho no formato de envio
func NewCreateSaleRequest(d Draft) CreateSaleRequest {
	detalles := make([]CreateSaleDetail, 0, len(d.Lines))
	for _, line := range d.Lines {
		detalles = append(detalles, CreateSaleDetail{
			Producto:       EntityRef{ID: line.ProductID},
			Cantidad:       line.Quantity,
			PrecioUnitario: line.UnitPrice.InexactFloat64(),
		})
	}
	return CreateSaleRequest{
		Local:      EntityRef{ID: d.StoreID},
		Cliente:    EntityRef{ID: d.ClientID},
		FechaVenta: d.Timestamp,
		Detalles:   detalles,
	}
}

// envelope é o formato {data, error, message} de todas as respostas da API
type envelope[T any] struct {
	Data    T      `json:"data"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// APIError carrega a mensagem legível que deve ser exibida ao operador
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// APIClient implementa SalesAPI usando resty
type APIClient struct {
	rest    *resty.Client
	session *Session
	logger  *zap.Logger
}

// NewAPIClient cria uma nova instância de APIClient
func NewAPIClient(baseURL string, timeout time.Duration, session *Session, logger *zap.Logger) *APIClient {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	rest.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("api call",
			zap.String("method", resp.Request.Method),
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Duration("elapsed", resp.Time()),
		)
		return nil
	})

	return &APIClient{
		rest:    rest,
		session: session,
		logger:  logger,
	}
}

func (c *APIClient) ListSales(ctx context.Context) ([]Sale, error) {
	return execute[[]Sale](ctx, c, http.MethodGet, salesPath, nil)
}

func (c *APIClient) ListProducts(ctx context.Context) ([]Product, error) {
	return execute[[]Product](ctx, c, http.MethodGet, productsPath, nil)
}

func (c *APIClient) ListStores(ctx context.Context) ([]Store, error) {
	return execute[[]Store](ctx, c, http.MethodGet, storesPath, nil)
}

func (c *APIClient) ListClients(ctx context.Context) ([]Client, error) {
	return execute[[]Client](ctx, c, http.MethodGet, clientsPath, nil)
}

// CreateSale registra a venda. O registro devolvido não é interpretado:
// o resultado depende apenas do status e da flag error do envelope.
func (c *APIClient) CreateSale(ctx context.Context, req CreateSaleRequest) error {
	_, err := execute[json.RawMessage](ctx, c, http.MethodPost, salesPath, req)
	return err
}

// newRequest retorna também o token enviado, para que um 401 invalide só esse token
func (c *APIClient) newRequest(ctx context.Context) (*resty.Request, string, error) {
	token, err := c.session.Token()
	if err != nil {
		return nil, "", &APIError{StatusCode: http.StatusUnauthorized, Message: sessionExpiredMessage, Err: err}
	}

	req := c.rest.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if token != "" {
		req.SetAuthToken(token)
	}
	return req, token, nil
}

func execute[T any](ctx context.Context, c *APIClient, method, path string, body interface{}) (T, error) {
	var zero T

	req, token, err := c.newRequest(ctx)
	if err != nil {
		return zero, err
	}

	var result envelope[T]
	var failure envelope[json.RawMessage]
	req.SetResult(&result).SetError(&failure)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		return zero, c.responseError(resp.StatusCode(), failure.Message, token)
	}
	if result.Error {
		return zero, &APIError{StatusCode: resp.StatusCode(), Message: result.Message}
	}
	return result.Data, nil
}

func (c *APIClient) responseError(status int, serverMessage, token string) error {
	apiErr := &APIError{StatusCode: status, Message: serverMessage}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("Request failed with status code %d", status)
	}

	if status == http.StatusUnauthorized {
		c.session.InvalidateToken(token, "api responded 401")
		apiErr.Err = ErrSessionExpired
		if serverMessage == "" {
			apiErr.Message = sessionExpiredMessage
		}
	}
	return apiErr
}

// operatorMessage prefere a mensagem do servidor ao erro de transporte
func operatorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
