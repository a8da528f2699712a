// Package shipping prices delivery options. The calculator is a pure
// function of zip, order total and weight; it never performs IO.
package shipping

import "github.com/shopspring/decimal"

type Option struct {
	CarrierID      int             `json:"carrierId"`
	CarrierName    string          `json:"carrierName"`
	ShippingTypeID int             `json:"shippingTypeId"`
	ShippingType   string          `json:"shippingType"`
	Price          decimal.Decimal `json:"price"`
	EstimatedDays  int             `json:"estimatedDays"`
	IsFree         bool            `json:"isFree"`
	IsSameDay      bool            `json:"isSameDay"`
}

type Calculator interface {
	Calculate(zip string, orderTotal decimal.Decimal, weightGrams int) []Option
}

const (
	CarrierNationalPost = 1
	CarrierRoadExpress  = 2
	CarrierCityCourier  = 3

	TypeStandard = 1
	TypeExpress  = 2
	TypeSameDay  = 3
)

var (
	freeShippingThreshold = decimal.NewFromInt(200)
	standardBase          = decimal.RequireFromString("19.90")
	expressBase           = decimal.RequireFromString("34.90")
	sameDayPrice          = decimal.RequireFromString("49.90")
	perExtraKg            = decimal.RequireFromString("4.50")
)

// TableCalculator prices against a fixed carrier table. Orders at or above
// the free-shipping threshold get standard shipping for free; same-day is
// offered only for zips under the configured local prefix.
type TableCalculator struct {
	sameDayZIPPrefix string
}

func NewTableCalculator(sameDayZIPPrefix string) *TableCalculator {
	return &TableCalculator{sameDayZIPPrefix: sameDayZIPPrefix}
}

func (c *TableCalculator) Calculate(zip string, orderTotal decimal.Decimal, weightGrams int) []Option {
	surcharge := weightSurcharge(weightGrams)

	standard := Option{
		CarrierID:      CarrierNationalPost,
		CarrierName:    "National Post",
		ShippingTypeID: TypeStandard,
		ShippingType:   "standard",
		Price:          standardBase.Add(surcharge),
		EstimatedDays:  7,
	}
	if orderTotal.GreaterThanOrEqual(freeShippingThreshold) {
		standard.Price = decimal.Zero
		standard.IsFree = true
	}

	express := Option{
		CarrierID:      CarrierRoadExpress,
		CarrierName:    "Road Express",
		ShippingTypeID: TypeExpress,
		ShippingType:   "express",
		Price:          expressBase.Add(surcharge),
		EstimatedDays:  2,
	}

	options := []Option{standard, express}

	if c.sameDayZIPPrefix != "" && len(zip) >= len(c.sameDayZIPPrefix) && zip[:len(c.sameDayZIPPrefix)] == c.sameDayZIPPrefix {
		options = append(options, Option{
			CarrierID:      CarrierCityCourier,
			CarrierName:    "City Courier",
			ShippingTypeID: TypeSameDay,
			ShippingType:   "same-day",
			Price:          sameDayPrice.Add(surcharge),
			EstimatedDays:  0,
			IsSameDay:      true,
		})
	}

	return options
}

// weightSurcharge adds a flat fee per started kilogram above the first.
func weightSurcharge(weightGrams int) decimal.Decimal {
	if weightGrams <= 1000 {
		return decimal.Zero
	}
	extraKg := (weightGrams - 1000 + 999) / 1000
	return perExtraKg.Mul(decimal.NewFromInt(int64(extraKg)))
}
