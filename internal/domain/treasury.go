package domain

// Treasury is the escrow aggregate for one market. TotalAmount always equals
// the sum of bet_amount over the market's unclaimed bets; FeeAmount and
// CreatorFeeAmount accrue on winning claims and are drawn down on withdrawal.
type Treasury struct {
	Owner    Address `json:"owner"`
	MarketID uint64  `json:"market_id"`
	Creator  Address `json:"creator"`

	TotalAmount      uint64 `json:"total_amount"`
	FeeAmount        uint64 `json:"fee_amount"` // protocol fee, accrual only
	CreatorFeeAmount uint64 `json:"creator_fee_amount"`
	YesCount         uint64 `json:"yes_count"`
	NoCount          uint64 `json:"no_count"`
	Status           Status `json:"status"`
}

// Ref returns the identity of the owning market.
func (t Treasury) Ref() MarketRef {
	return MarketRef{Owner: t.Owner, MarketID: t.MarketID}
}
