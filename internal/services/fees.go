// internal/services/fees.go
package services

import (
	"github.com/hugoapp/hugo-backend/internal/models"
)

// FeeBreakdown is the split of a gross charge. All values are integer minor
// currency units and always satisfy
// PlatformFee + ProcessorFee + SellerNet == gross.
type FeeBreakdown struct {
	PlatformFee  int64 `json:"platform_fee"`
	ProcessorFee int64 `json:"processor_fee"`
	SellerNet    int64 `json:"seller_net"`
}

// Platform fee rates by earner category, in basis points of gross.
var platformRateBps = map[models.EarnerCategory]int64{
	models.EarnerCategoryCreator:    1000,
	models.EarnerCategoryVendor:     1200,
	models.EarnerCategoryDeveloper:  1500,
	models.EarnerCategoryAdvertiser: 2000,
	models.EarnerCategoryAffiliate:  500,
	models.EarnerCategoryInfluencer: 800,
}

// PlatformRateBps returns the platform fee rate for a category. Unknown
// categories fall back to the vendor rate.
func PlatformRateBps(category models.EarnerCategory) int64 {
	if rate, ok := platformRateBps[category]; ok {
		return rate
	}
	return platformRateBps[models.EarnerCategoryVendor]
}

// roundBps applies a basis-point rate to an amount, rounding half up. This is
// the single rounding rule for all fee math; each fee is rounded exactly once.
func roundBps(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}

// ComputeFees computes platform fee, processor fee and seller net for a gross
// amount. Pure: no I/O, deterministic. Returns ErrInvalidFeeConfiguration when
// the configured rates would leave the seller with a negative net; checkout
// must be rejected before any external charge is attempted in that case.
func ComputeFees(grossAmount int64, category models.EarnerCategory, processorRateBps, processorFixedFee int64) (FeeBreakdown, error) {
	if grossAmount <= 0 || processorRateBps < 0 || processorFixedFee < 0 {
		return FeeBreakdown{}, ErrInvalidFeeConfiguration
	}

	platformFee := roundBps(grossAmount, PlatformRateBps(category))
	processorFee := roundBps(grossAmount, processorRateBps) + processorFixedFee
	sellerNet := grossAmount - platformFee - processorFee

	if sellerNet < 0 {
		return FeeBreakdown{}, ErrInvalidFeeConfiguration
	}

	return FeeBreakdown{
		PlatformFee:  platformFee,
		ProcessorFee: processorFee,
		SellerNet:    sellerNet,
	}, nil
}
