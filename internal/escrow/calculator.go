package escrow

import (
	"strings"
	"time"
)

// Shipping method tags as stored on orders. Unknown tags fall into the
// MethodOther bucket.
const (
	MethodExpress       = "EXPRESS"
	MethodStandardMail  = "STANDARD_MAIL"
	MethodFreight       = "FREIGHT"
	MethodPickup        = "PICKUP"
	MethodInternational = "INTERNATIONAL"
	MethodOther         = "OTHER"
)

// minDeliveryDaysByMethod is the per-method floor applied to seller-declared
// delivery estimates. Sellers cannot shorten buyer protection by declaring
// unrealistically fast delivery for a slow method.
var minDeliveryDaysByMethod = map[string]int{
	MethodExpress:       3,
	MethodStandardMail:  10,
	MethodFreight:       12,
	MethodPickup:        1,
	MethodInternational: 20,
	MethodOther:         7,
}

// Config holds the process-wide escrow timing constants. All values come
// from the environment at startup; zero fields are replaced by defaults.
type Config struct {
	SafetyMarginDays    int // days added after the promised delivery date
	MaxEscrowDays       int // global cap so seller funds are never frozen indefinitely
	DefaultDeliveryDays int // used when the seller declared no estimate
	BlocksPerDay        int // chain constant, 14400 at 6 seconds per block
}

// Defaults for Config.
const (
	DefaultSafetyMarginDays    = 7
	DefaultMaxEscrowDays       = 30
	DefaultDefaultDeliveryDays = 7
	DefaultBlocksPerDay        = 14_400
)

func (c Config) withDefaults() Config {
	if c.SafetyMarginDays <= 0 {
		c.SafetyMarginDays = DefaultSafetyMarginDays
	}
	if c.MaxEscrowDays <= 0 {
		c.MaxEscrowDays = DefaultMaxEscrowDays
	}
	if c.DefaultDeliveryDays <= 0 {
		c.DefaultDeliveryDays = DefaultDefaultDeliveryDays
	}
	// BlocksPerDay must divide a day in seconds; otherwise the per-block
	// duration used for AutoReleaseDate truncates to zero.
	if c.BlocksPerDay <= 0 || 86_400%c.BlocksPerDay != 0 {
		c.BlocksPerDay = DefaultBlocksPerDay
	}
	return c
}

// Timeline is the full derivation of an order's auto-release deadline. It is
// computed once at order creation and recomputed from scratch only if the
// declared delivery estimate is edited before shipment.
type Timeline struct {
	InformedDeliveryDays  int       `json:"informed_delivery_days"`
	ShippingMethod        string    `json:"shipping_method"`
	MinDaysForMethod      int       `json:"min_days_for_method"`
	EffectiveDeliveryDays int       `json:"effective_delivery_days"`
	WasAdjustedByMinimum  bool      `json:"was_adjusted_by_minimum"`
	SafetyMarginDays      int       `json:"safety_margin_days"`
	AutoReleaseDays       int       `json:"auto_release_days"`
	AutoReleaseBlocks     uint64    `json:"auto_release_blocks"`
	AutoReleaseDate       time.Time `json:"auto_release_date"`
	EstimatedDeliveryDate time.Time `json:"estimated_delivery_date"`
	MaxEscrowDays         int       `json:"max_escrow_days"`
	WasLimitedByMax       bool      `json:"was_limited_by_max"`
}

// Item is one order line for multi-item aggregation.
type Item struct {
	EstimatedDeliveryDays *int
	ShippingMethod        string
}

// Calculator derives escrow auto-release timing from delivery estimates.
// It is pure and holds no mutable state, so a single instance is safe for
// concurrent use from any number of order-creation requests.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a calculator with defaults applied to cfg.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// MinDaysForMethod returns the delivery-day floor for a shipping method.
// Empty or unknown methods map to the OTHER bucket.
func (c *Calculator) MinDaysForMethod(method string) int {
	if method == "" {
		return minDeliveryDaysByMethod[MethodOther]
	}
	if min, ok := minDeliveryDaysByMethod[strings.ToUpper(method)]; ok {
		return min
	}
	return minDeliveryDaysByMethod[MethodOther]
}

// effectiveDays applies the default, the per-method floor, and the 1-day
// minimum to a declared estimate. Delivery estimates are seller-supplied
// free input, so degenerate values are clamped rather than rejected.
func (c *Calculator) effectiveDays(estimateDays *int, method string) int {
	days := c.cfg.DefaultDeliveryDays
	if estimateDays != nil {
		days = *estimateDays
	}
	if min := c.MinDaysForMethod(method); days < min {
		days = min
	}
	if days < 1 {
		days = 1
	}
	return days
}

// AutoReleaseBlocks returns the number of blocks after escrow lock at which
// funds auto-release to the seller.
func (c *Calculator) AutoReleaseBlocks(estimateDays *int, method string) uint64 {
	return uint64(c.autoReleaseDays(c.effectiveDays(estimateDays, method))) * uint64(c.cfg.BlocksPerDay)
}

func (c *Calculator) autoReleaseDays(effectiveDays int) int {
	days := effectiveDays + c.cfg.SafetyMarginDays
	if days > c.cfg.MaxEscrowDays {
		days = c.cfg.MaxEscrowDays
	}
	return days
}

// EstimatedDeliveryDate returns the buyer-facing delivery promise. This uses
// the effective delivery days, not the protection deadline.
func (c *Calculator) EstimatedDeliveryDate(estimateDays *int, method string, from time.Time) time.Time {
	if from.IsZero() {
		from = time.Now()
	}
	return from.AddDate(0, 0, c.effectiveDays(estimateDays, method))
}

// Timeline derives the complete auto-release timeline for an order. The
// deadline is never shorter than the promised delivery time, never shorter
// than the per-method floor, and never longer than the global cap; the
// adjustment flags record which bounds fired so the caller can explain why
// the shown number differs from the seller's raw input.
func (c *Calculator) Timeline(estimateDays *int, method string, from time.Time) Timeline {
	if from.IsZero() {
		from = time.Now()
	}

	informed := c.cfg.DefaultDeliveryDays
	if estimateDays != nil {
		informed = *estimateDays
	}

	minDays := c.MinDaysForMethod(method)
	effective := c.effectiveDays(estimateDays, method)
	releaseDays := c.autoReleaseDays(effective)
	blocks := uint64(releaseDays) * uint64(c.cfg.BlocksPerDay)
	secondsPerBlock := 86_400 / c.cfg.BlocksPerDay

	normalizedMethod := strings.ToUpper(method)
	if _, ok := minDeliveryDaysByMethod[normalizedMethod]; !ok {
		normalizedMethod = MethodOther
	}

	return Timeline{
		InformedDeliveryDays:  informed,
		ShippingMethod:        normalizedMethod,
		MinDaysForMethod:      minDays,
		EffectiveDeliveryDays: effective,
		WasAdjustedByMinimum:  informed < minDays,
		SafetyMarginDays:      c.cfg.SafetyMarginDays,
		AutoReleaseDays:       releaseDays,
		AutoReleaseBlocks:     blocks,
		AutoReleaseDate:       from.Add(time.Duration(blocks) * time.Duration(secondsPerBlock) * time.Second),
		EstimatedDeliveryDate: from.AddDate(0, 0, effective),
		MaxEscrowDays:         c.cfg.MaxEscrowDays,
		WasLimitedByMax:       effective+c.cfg.SafetyMarginDays > c.cfg.MaxEscrowDays,
	}
}

// MaxAcrossItems computes a single order-level delivery horizon when an
// order bundles items with different estimates and methods. Each item's
// per-method floor applies independently; the order cannot release before
// the slowest item's adjusted estimate. The returned method is the one
// carried by the item that set the maximum.
func (c *Calculator) MaxAcrossItems(items []Item) (maxDays int, method string) {
	maxDays = c.cfg.DefaultDeliveryDays
	for _, item := range items {
		days := c.effectiveDays(item.EstimatedDeliveryDays, item.ShippingMethod)
		if days > maxDays {
			maxDays = days
			method = item.ShippingMethod
		}
	}
	return maxDays, method
}
