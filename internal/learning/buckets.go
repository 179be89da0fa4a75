package learning

// User-count ranges stored in user_count_range.
const (
	UsersSmall      = "1-25"
	UsersMedium     = "26-100"
	UsersLarge      = "101-500"
	UsersEnterprise = "500+"
)

// Price-per-user buckets.
const (
	PriceBudget     = "budget"
	PriceMid        = "mid"
	PricePremium    = "premium"
	PriceEnterprise = "enterprise"
)

// PriceBucketNames lists the price buckets from cheapest to dearest.
var PriceBucketNames = []string{PriceBudget, PriceMid, PricePremium, PriceEnterprise}

// PriceRange bounds a price bucket. Max is nil for the open-ended top bucket.
type PriceRange struct {
	Bucket string   `json:"bucket"`
	Min    float64  `json:"min"`
	Max    *float64 `json:"max,omitempty"`
}

// UserCountRange buckets a user count.
func UserCountRange(users int) string {
	switch {
	case users <= 25:
		return UsersSmall
	case users <= 100:
		return UsersMedium
	case users <= 500:
		return UsersLarge
	default:
		return UsersEnterprise
	}
}

// PriceBucket buckets a price per user.
func PriceBucket(perUser float64) string {
	switch {
	case perUser < 500:
		return PriceBudget
	case perUser < 800:
		return PriceMid
	case perUser < 1200:
		return PricePremium
	default:
		return PriceEnterprise
	}
}

func ptr(f float64) *float64 { return &f }

// RangeFor returns the bounds of a price bucket.
func RangeFor(bucket string) PriceRange {
	switch bucket {
	case PriceBudget:
		return PriceRange{Bucket: bucket, Min: 0, Max: ptr(500)}
	case PriceMid:
		return PriceRange{Bucket: bucket, Min: 500, Max: ptr(800)}
	case PricePremium:
		return PriceRange{Bucket: bucket, Min: 800, Max: ptr(1200)}
	default:
		return PriceRange{Bucket: PriceEnterprise, Min: 1200}
	}
}
