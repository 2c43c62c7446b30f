package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a price tier of a race option.
type Lot struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	StartsAt *time.Time      `json:"startsAt,omitempty"`
	EndsAt   *time.Time      `json:"endsAt,omitempty"`
}

// RaceOption is a purchasable distance or category of a race.
type RaceOption struct {
	Distance string `json:"distance"`
	Modality string `json:"modality,omitempty"`
	Lots     []Lot  `json:"lots"`
}

// UnitPrice returns the price of the first lot, or zero when the option has no lots.
// Lot date ranges are not consulted.
func (o RaceOption) UnitPrice() decimal.Decimal {
	if len(o.Lots) == 0 {
		return decimal.Zero
	}
	return o.Lots[0].Price
}

// Race represents a race event in the catalogue.
type Race struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Image     string       `json:"image" db:"image"`
	Location  string       `json:"location" db:"location"`
	Date      time.Time    `json:"date" db:"race_date"`
	Options   []RaceOption `json:"options" db:"options"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
}

// Option looks up an option by distance.
func (r *Race) Option(distance string) (RaceOption, bool) {
	for _, opt := range r.Options {
		if opt.Distance == distance {
			return opt, true
		}
	}
	return RaceOption{}, false
}
