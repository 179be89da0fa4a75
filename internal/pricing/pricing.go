// Package pricing holds the fixed commercial rules used to turn a radio
// system recommendation into priced line items: accessory ratios, inter-site
// linking surcharges, licensing, installation labor, and tax.
//
// Everything here is pure. Money is rounded to cents with shopspring/decimal
// so totals computed twice from the same inputs are identical.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// LaborRate is the hourly installation rate in dollars.
	LaborRate = 85.0
	// TaxRate applies to parts plus labor.
	TaxRate = 0.08

	// NetworkingFee is charged once per multi-site quote on top of per-site linking.
	NetworkingFee = 1200.0

	LicenseBase           = 800.0
	LicensePerExtraSite   = 150.0
	LicenseInterSiteFee   = 400.0
	radiosPerCharger      = 5
	minSingleSiteLabor    = 4.0
	baseSingleSiteLabor   = 2.0
	laborPerRepeater      = 8.0
	programmingPerUser    = 0.25
	laborPerSite          = 12.0
	travelPerSite         = 2.0
	interSiteCoordination = 8.0
	localCoordination     = 4.0
)

// Accessories is the accessory bundle derived from a radio count.
type Accessories struct {
	Batteries int
	Chargers  int
	BeltClips int
}

// AccessoriesFor returns one battery and one belt clip per radio and one
// charger per five radios, never fewer than one charger.
func AccessoriesFor(radios int) Accessories {
	if radios < 0 {
		radios = 0
	}
	return Accessories{
		Batteries: radios,
		Chargers:  ChargerCount(radios),
		BeltClips: radios,
	}
}

// ChargerCount returns max(1, ceil(radios/5)).
func ChargerCount(radios int) int {
	n := (radios + radiosPerCharger - 1) / radiosPerCharger
	if n < 1 {
		return 1
	}
	return n
}

// LicensingFee returns the software licensing charge for a deployment.
func LicensingFee(sites int, interSite bool) float64 {
	fee := LicenseBase
	if sites > 1 {
		fee += LicensePerExtraSite * float64(sites-1)
	}
	if interSite {
		fee += LicenseInterSiteFee
	}
	return fee
}

// SingleSiteLaborHours is 2h base, 8h per repeater and a quarter hour of
// radio programming per user (rounded up), with a 4h floor.
func SingleSiteLaborHours(repeaters, users int) float64 {
	hours := baseSingleSiteLabor +
		laborPerRepeater*float64(repeaters) +
		math.Ceil(float64(users)*programmingPerUser)
	return math.Max(hours, minSingleSiteLabor)
}

// MultiSiteLaborHours is 12h per site, 2h travel per site and a coordination
// block that doubles when the sites are linked.
func MultiSiteLaborHours(sites int, interSite bool) float64 {
	coordination := localCoordination
	if interSite {
		coordination = interSiteCoordination
	}
	return (laborPerSite+travelPerSite)*float64(sites) + coordination
}

// LaborCost converts hours to dollars at LaborRate.
func LaborCost(hours float64) float64 {
	return Round(hours * LaborRate)
}

// Breakdown is the set of totals written back to a quote.
type Breakdown struct {
	Parts  float64 `json:"total_parts"`
	Labor  float64 `json:"total_labor"`
	Tax    float64 `json:"total_tax"`
	Amount float64 `json:"total_amount"`
}

// Totals computes parts/labor/tax/amount from raw sums. Each component is
// rounded to cents before the next is derived from it.
func Totals(partsSum, laborHours float64) Breakdown {
	parts := decimal.NewFromFloat(partsSum).Round(2)
	labor := decimal.NewFromFloat(laborHours).Mul(decimal.NewFromFloat(LaborRate)).Round(2)
	subtotal := parts.Add(labor)
	tax := subtotal.Mul(decimal.NewFromFloat(TaxRate)).Round(2)
	amount := subtotal.Add(tax)
	return Breakdown{
		Parts:  parts.InexactFloat64(),
		Labor:  labor.InexactFloat64(),
		Tax:    tax.InexactFloat64(),
		Amount: amount.InexactFloat64(),
	}
}

// LineTotal returns unitPrice * quantity rounded to cents.
func LineTotal(unitPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).Round(2).InexactFloat64()
}

// Round rounds a dollar amount to cents.
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
