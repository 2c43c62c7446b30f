package model

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLineKey(t *testing.T) {
	tests := []struct {
		input   string
		want    LineKey
		wantErr bool
	}{
		{input: "R1|5K", want: LineKey{RaceID: "R1", Distance: "5K"}},
		{input: "R1|Kids|1K", want: LineKey{RaceID: "R1", Distance: "Kids|1K"}},
		{input: "R1", wantErr: true},
		{input: "|5K", wantErr: true},
		{input: "R1|", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLineKey(tt.input)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLineKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestOwner(t *testing.T) {
	guest := Owner{SessionID: "s-1"}
	user := Owner{UserID: "u-1", SessionID: "s-1", Email: "ana@example.com"}

	assert.False(t, guest.Authenticated())
	assert.Equal(t, "s-1", guest.Key())

	assert.True(t, user.Authenticated())
	assert.Equal(t, "u-1", user.Key())
	assert.Equal(t, Owner{SessionID: "s-1"}, user.Guest())
}

func TestRaceOption_UnitPrice(t *testing.T) {
	opt := RaceOption{Distance: "5K", Lots: []Lot{
		{Name: "1st lot", Price: decimal.NewFromInt(50)},
		{Name: "2nd lot", Price: decimal.NewFromInt(65)},
	}}

	assert.True(t, opt.UnitPrice().Equal(decimal.NewFromInt(50)))
	assert.True(t, RaceOption{Distance: "5K"}.UnitPrice().IsZero())
}

func TestKitStatusFor(t *testing.T) {
	assert.Equal(t, KitAwaitingShipment, KitStatusFor(DeliveryHome))
	assert.Equal(t, KitPending, KitStatusFor(DeliveryPickup))
}

func TestCoupon_Discount(t *testing.T) {
	maxUses := 2

	tests := []struct {
		name   string
		coupon Coupon
		amount int64
		want   string
	}{
		{name: "Percent", coupon: Coupon{DiscountType: DiscountPercent, DiscountValue: decimal.NewFromInt(10)}, amount: 170, want: "17"},
		{name: "Percent rounds to cents", coupon: Coupon{DiscountType: DiscountPercent, DiscountValue: decimal.NewFromInt(15)}, amount: 33, want: "4.95"},
		{name: "Fixed", coupon: Coupon{DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(50)}, amount: 120, want: "50"},
		{name: "Fixed capped at amount", coupon: Coupon{DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(100)}, amount: 70, want: "70"},
		{name: "Unknown type", coupon: Coupon{DiscountType: "bogo", DiscountValue: decimal.NewFromInt(10), MaxUses: &maxUses}, amount: 70, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.Discount(decimal.NewFromInt(tt.amount))

			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCoupon_Exhausted(t *testing.T) {
	two := 2

	assert.False(t, (&Coupon{}).Exhausted(), "unlimited coupon")
	assert.False(t, (&Coupon{MaxUses: &two, CurrentUses: 1}).Exhausted())
	assert.True(t, (&Coupon{MaxUses: &two, CurrentUses: 2}).Exhausted())
}

func TestValidate(t *testing.T) {
	address := &Address{Street: "Rua A", Number: "10", City: "Sao Paulo", State: "SP", ZipCode: "01000-000"}

	tests := []struct {
		name    string
		value   any
		wantErr bool
	}{
		{name: "Valid payer", value: PayerInfo{Name: "Ana", Email: "ana@example.com"}},
		{name: "Payer without name", value: PayerInfo{Email: "ana@example.com"}, wantErr: true},
		{name: "Payer with bad email", value: PayerInfo{Name: "Ana", Email: "ana"}, wantErr: true},
		{name: "Pickup without address", value: DeliveryInfo{Method: DeliveryPickup}},
		{name: "Home with address", value: DeliveryInfo{Method: DeliveryHome, Address: address}},
		{name: "Home without address", value: DeliveryInfo{Method: DeliveryHome}, wantErr: true},
		{name: "Home with incomplete address", value: DeliveryInfo{Method: DeliveryHome, Address: &Address{Street: "Rua A"}}, wantErr: true},
		{name: "Unknown delivery method", value: DeliveryInfo{Method: "drone"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.value)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var domainErr *DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, ErrCodeValidation, domainErr.Code)
		})
	}
}
