package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TimestampLayout é o formato datetime-local usado pelo console para fechaVenta
const TimestampLayout = "2006-01-02T15:04"

// StockRecord representa um registro de estoque de um produto em um local
type StockRecord struct {
	ID                 int64 `json:"id"`
	CantidadDisponible int   `json:"cantidadDisponible"`
}

// Product representa um produto do catálogo remoto
type Product struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Nombre        string          `json:"nombre"`
	Descripcion   string          `json:"descripcion"`
	PrecioBase    decimal.Decimal `json:"precioBase"`
	Categoria     string          `json:"categoria"`
	Estado        bool            `json:"estado"`
	FechaCreacion string          `json:"fechaCreacion"`
	Stocks        []StockRecord   `json:"stocks"`
}

// AvailableQuantity retorna a quantidade do primeiro registro de estoque (0 se não houver)
func (p Product) AvailableQuantity() int {
	if len(p.Stocks) == 0 {
		return 0
	}
	return p.Stocks[0].CantidadDisponible
}

// Store representa um local de venda
type Store struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

// Client representa um cliente
type Client struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

// SaleStoreRef é a referência ao local dentro de uma venda já registrada
type SaleStoreRef struct {
	LocalID int64  `json:"localId"`
	Nombre  string `json:"nombre"`
}

// SaleProductRef é a referência ao produto dentro de um detalhe de venda
type SaleProductRef struct {
	ProductID int64  `json:"productId"`
	Nombre    string `json:"nombre"`
	Cantidad  int    `json:"cantidad"`
}

// SaleDetail representa uma linha de uma venda registrada
type SaleDetail struct {
	DetailID       int64            `json:"detailId"`
	Product        SaleProductRef   `json:"product"`
	PrecioUnitario *decimal.Decimal `json:"precioUnitario,omitempty"`
	Subtotal       *decimal.Decimal `json:"subtotal,omitempty"`
}

// Sale representa uma venda já registrada no backend
type Sale struct {
	SaleID   int64           `json:"saleId"`
	Total    decimal.Decimal `json:"total"`
	Local    SaleStoreRef    `json:"local"`
	Detalles []SaleDetail    `json:"detalles"`
}

// LineItem representa uma linha do rascunho de venda
type LineItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precioUnitario"`
}

// Subtotal é derivado: quantidade x preço unitário
func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Draft representa a venda em composição
type Draft struct {
	ID        uuid.UUID  `json:"id"`
	StoreID   int64      `json:"localId"`
	ClientID  int64      `json:"clienteId"`
	Timestamp string     `json:"fechaVenta"`
	Lines     []LineItem `json:"detalles"`
}

// NewDraft cria um rascunho vazio com o timestamp atual
func NewDraft(now time.Time) Draft {
	return Draft{
		ID:        uuid.New(),
		Timestamp: now.UTC().Format(TimestampLayout),
		Lines:     []LineItem{},
	}
}

// Phase representa a fase do ciclo de envio
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Submission outcomes registrados no journal
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// SaleCreatedMessage é exibida após o backend aceitar a venda
const SaleCreatedMessage = "Venta registrada exitosamente!"
