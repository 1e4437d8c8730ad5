package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
	sellertierdomain "github.com/smallbiznis/settlekit/internal/sellertier/domain"
)

const defaultTierRateTTL = 5 * time.Minute

// TierRateCache keeps hot-path seller tier lookups for settlement. Entries are
// dropped when recomputation changes a seller's state.
type TierRateCache interface {
	GetTierRate(sellerID snowflake.ID) (sellertierdomain.TierRate, bool)
	SetTierRate(rate sellertierdomain.TierRate)
	Invalidate(sellerID snowflake.ID)
}

type tierRateCache struct {
	rates Cache[snowflake.ID, sellertierdomain.TierRate]
	ttl   time.Duration
}

func NewTierRateCache() TierRateCache {
	return &tierRateCache{
		rates: NewTTLCache[snowflake.ID, sellertierdomain.TierRate](),
		ttl:   defaultTierRateTTL,
	}
}

func (c *tierRateCache) GetTierRate(sellerID snowflake.ID) (sellertierdomain.TierRate, bool) {
	return c.rates.Get(sellerID)
}

func (c *tierRateCache) SetTierRate(rate sellertierdomain.TierRate) {
	if rate.SellerID == 0 {
		return
	}
	c.rates.Set(rate.SellerID, rate, c.ttl)
}

func (c *tierRateCache) Invalidate(sellerID snowflake.ID) {
	c.rates.Delete(sellerID)
}
