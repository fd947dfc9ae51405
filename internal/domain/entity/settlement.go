package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de evento de liquidación para el libro contable.
const (
	SettlementKindAuto    = "AUTO_SETTLED"    // liquidado al emitir (FRE, TVE, NCE)
	SettlementKindPending = "PENDING_PAYMENT" // cuenta por cobrar abierta (FTE)
)

// SettlementEvent evento emitido tras la emisión. Es una unión cerrada:
// solo AutoSettlement y PendingSettlement la implementan.
type SettlementEvent interface {
	Kind() string
	Base() SettlementBase
	settlement()
}

// SettlementBase campos comunes a todo evento de liquidación.
type SettlementBase struct {
	ID         string
	CompanyID  string
	DocumentID string
	IUD        string
	Amount     decimal.Decimal
	OccurredAt time.Time
}

// AutoSettlement el documento se liquida en el acto (pago inmediato o reembolso).
type AutoSettlement struct {
	SettlementBase
}

func (AutoSettlement) Kind() string { return SettlementKindAuto }
func (e AutoSettlement) Base() SettlementBase { return e.SettlementBase }
func (AutoSettlement) settlement() {}

// PendingSettlement el documento queda pendiente de un evento de pago externo.
type PendingSettlement struct {
	SettlementBase
	DueDate *time.Time
}

func (PendingSettlement) Kind() string { return SettlementKindPending }
func (e PendingSettlement) Base() SettlementBase { return e.SettlementBase }
func (PendingSettlement) settlement() {}
