package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tokensale/id"
	"github.com/xraph/tokensale/sale"
	"github.com/xraph/tokensale/types"
)

// Amounts are persisted as NUMERIC(78,0) and travel through the driver as
// base-10 integer strings, so arbitrary-precision values survive the round
// trip exactly.

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:tokensale_balances"`

	Account   string    `grove:"account,pk"`
	Amount    string    `grove:"amount"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

type supplyModel struct {
	grove.BaseModel `grove:"table:tokensale_supply"`

	ID        int       `grove:"id,pk"`
	Amount    string    `grove:"amount"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// ==================== Whitelist models ====================

type whitelistModel struct {
	grove.BaseModel `grove:"table:tokensale_whitelist"`

	Account   string    `grove:"account,pk"`
	CreatedAt time.Time `grove:"created_at"`
}

// ==================== Round models ====================

type roundModel struct {
	grove.BaseModel `grove:"table:tokensale_rounds"`

	ID              uint64    `grove:"id,pk"`
	StartTime       time.Time `grove:"start_time"`
	MinPurchase     string    `grove:"min_purchase"`
	Rate            string    `grove:"rate"`
	Cap             string    `grove:"cap"`
	TotalInvestment string    `grove:"total_investment"`
	Finalized       bool      `grove:"finalized"`
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toRoundModel(r *sale.Round) *roundModel {
	return &roundModel{
		ID:              r.ID,
		StartTime:       r.StartTime,
		MinPurchase:     r.MinPurchase.String(),
		Rate:            r.Rate.String(),
		Cap:             r.Cap.String(),
		TotalInvestment: r.TotalInvestment.String(),
		Finalized:       r.Finalized,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func fromRoundModel(m *roundModel) (*sale.Round, error) {
	minPurchase, err := types.ParseAmount(m.MinPurchase)
	if err != nil {
		return nil, err
	}
	rate, err := types.ParseAmount(m.Rate)
	if err != nil {
		return nil, err
	}
	roundCap, err := types.ParseAmount(m.Cap)
	if err != nil {
		return nil, err
	}
	total, err := types.ParseAmount(m.TotalInvestment)
	if err != nil {
		return nil, err
	}

	return &sale.Round{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              m.ID,
		StartTime:       m.StartTime,
		MinPurchase:     minPurchase,
		Rate:            rate,
		Cap:             roundCap,
		TotalInvestment: total,
		Finalized:       m.Finalized,
	}, nil
}

// ==================== Purchase models ====================

type purchaseModel struct {
	grove.BaseModel `grove:"table:tokensale_purchases"`

	ID            string    `grove:"id,pk"`
	RoundID       uint64    `grove:"round_id"`
	Buyer         string    `grove:"buyer"`
	TokenAmount   string    `grove:"token_amount"`
	PaymentAmount string    `grove:"payment_amount"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toPurchaseModel(p *sale.Purchase) *purchaseModel {
	return &purchaseModel{
		ID:            p.ID.String(),
		RoundID:       p.RoundID,
		Buyer:         p.Buyer.String(),
		TokenAmount:   p.TokenAmount.String(),
		PaymentAmount: p.PaymentAmount.String(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func fromPurchaseModel(m *purchaseModel) (*sale.Purchase, error) {
	purchaseID, err := id.ParsePurchaseID(m.ID)
	if err != nil {
		return nil, err
	}
	buyer, err := id.ParseAccountID(m.Buyer)
	if err != nil {
		return nil, err
	}
	tokenAmount, err := types.ParseAmount(m.TokenAmount)
	if err != nil {
		return nil, err
	}
	paymentAmount, err := types.ParseAmount(m.PaymentAmount)
	if err != nil {
		return nil, err
	}

	return &sale.Purchase{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            purchaseID,
		RoundID:       m.RoundID,
		Buyer:         buyer,
		TokenAmount:   tokenAmount,
		PaymentAmount: paymentAmount,
	}, nil
}
