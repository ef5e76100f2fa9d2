package main

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrLineIndexOutOfRange = errors.New("line index out of range")
)

// PriceLookup resolve o preço base atual de um produto
type PriceLookup interface {
	BasePrice(productID int64) decimal.Decimal
}

// Todas as transições abaixo retornam um novo Draft; o receptor nunca é alterado.

func (d Draft) clone() Draft {
	lines := make([]LineItem, len(d.Lines))
	copy(lines, d.Lines)
	d.Lines = lines
	return d
}

func (d Draft) WithStore(id int64) Draft {
	next := d.clone()
	next.StoreID = id
	return next
}

func (d Draft) WithClient(id int64) Draft {
	next := d.clone()
	next.ClientID = id
	return next
}

func (d Draft) WithTimestamp(value string) Draft {
	next := d.clone()
	next.Timestamp = value
	return next
}

// AddLine adiciona uma linha vazia ao final
func (d Draft) AddLine() Draft {
	next := d.clone()
	next.Lines = append(next.Lines, LineItem{UnitPrice: decimal.Zero})
	return next
}

// RemoveLine remove a linha i mantendo a ordem relativa das demais
func (d Draft) RemoveLine(i int) (Draft, error) {
	if !d.hasLine(i) {
		return d, ErrLineIndexOutOfRange
	}
	next := d.clone()
	next.Lines = append(next.Lines[:i], next.Lines[i+1:]...)
	return next, nil
}

// SetLineProduct troca o produto e sobrescreve o preço unitário com o preço base,
// mesmo quando o produto não muda.
func (d Draft) SetLineProduct(i int, productID int64, prices PriceLookup) (Draft, error) {
	if !d.hasLine(i) {
		return d, ErrLineIndexOutOfRange
	}
	next := d.clone()
	next.Lines[i].ProductID = productID
	next.Lines[i].UnitPrice = prices.BasePrice(productID)
	return next, nil
}

func (d Draft) SetLineQuantity(i int, qty int) (Draft, error) {
	if !d.hasLine(i) {
		return d, ErrLineIndexOutOfRange
	}
	next := d.clone()
	next.Lines[i].Quantity = qty
	return next, nil
}

func (d Draft) SetLineUnitPrice(i int, price decimal.Decimal) (Draft, error) {
	if !d.hasLine(i) {
		return d, ErrLineIndexOutOfRange
	}
	next := d.clone()
	next.Lines[i].UnitPrice = price
	return next, nil
}

// Total soma os subtotais; recalculado a cada leitura
func (d Draft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range d.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

func (d Draft) hasLine(i int) bool {
	return i >= 0 && i < len(d.Lines)
}
