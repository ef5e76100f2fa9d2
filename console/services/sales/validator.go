package main

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Rejection codes, na ordem em que são avaliados
const (
	ReasonDateRequired      = "date_required"
	ReasonStoreRequired     = "store_required"
	ReasonClientRequired    = "client_required"
	ReasonLinesRequired     = "lines_required"
	ReasonInsufficientStock = "insufficient_stock"
)

var rejectionMessages = map[string]string{
	ReasonDateRequired:      "Debe seleccionar una fecha y hora para la venta",
	ReasonStoreRequired:     "Debe seleccionar un local para realizar la venta",
	ReasonClientRequired:    "Debe seleccionar un cliente para realizar la venta",
	ReasonLinesRequired:     "Debe agregar al menos un producto a la venta",
	ReasonInsufficientStock: "No hay stock suficiente para el producto seleccionado",
}

// Rejection é o motivo pelo qual um rascunho não pode ser enviado
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("sale rejected (%s): %s", r.Code, r.Message)
}

func newRejection(code string) *Rejection {
	return &Rejection{Code: code, Message: rejectionMessages[code]}
}

// StockLookup resolve a quantidade disponível de um produto
type StockLookup interface {
	AvailableQuantity(productID int64) int
}

type draftCheck struct {
	code  string
	value interface{}
	rules []validation.Rule
}

// ValidateDraft retorna nil se o rascunho pode ser enviado, ou o primeiro *Rejection
// encontrado na ordem: data, local, cliente, linhas, estoque da primeira linha.
func ValidateDraft(d Draft, stock StockLookup) error {
	checks := []draftCheck{
		{ReasonDateRequired, strings.TrimSpace(d.Timestamp), []validation.Rule{validation.Required}},
		{ReasonStoreRequired, d.StoreID, []validation.Rule{validation.Required}},
		{ReasonClientRequired, d.ClientID, []validation.Rule{validation.Required}},
		{ReasonLinesRequired, d.Lines, []validation.Rule{validation.Required}},
		{ReasonInsufficientStock, d.Lines, []validation.Rule{validation.By(firstLineInStock(stock))}},
	}

	for _, check := range checks {
		if err := validation.Validate(check.value, check.rules...); err != nil {
			return newRejection(check.code)
		}
	}
	return nil
}

// Only the first line is checked against stock.
func firstLineInStock(stock StockLookup) validation.RuleFunc {
	return func(value interface{}) error {
		lines, _ := value.([]LineItem)
		if len(lines) == 0 {
			return nil
		}
		first := lines[0]
		if stock.AvailableQuantity(first.ProductID) < first.Quantity {
			return fmt.Errorf("product %d: insufficient stock", first.ProductID)
		}
		return nil
	}
}
