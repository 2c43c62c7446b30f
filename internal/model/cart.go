package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineKey identifies a cart line. A cart never holds two lines with the same key.
type LineKey struct {
	RaceID   string `json:"raceId"`
	Distance string `json:"distance"`
}

const lineKeySeparator = "|"

// String renders the key as raceId|distance.
func (k LineKey) String() string {
	return k.RaceID + lineKeySeparator + k.Distance
}

// ParseLineKey parses the raceId|distance form produced by LineKey.String.
func ParseLineKey(s string) (LineKey, error) {
	raceID, distance, ok := strings.Cut(s, lineKeySeparator)
	if !ok || raceID == "" || distance == "" {
		return LineKey{}, ErrInvalidLineKey
	}
	return LineKey{RaceID: raceID, Distance: distance}, nil
}

// CartItem is one line of a cart.
type CartItem struct {
	RaceID    string     `json:"raceId" validate:"required"`
	RaceName  string     `json:"raceName"`
	RaceImage string     `json:"raceImage,omitempty"`
	Option    RaceOption `json:"option"`
	Quantity  int        `json:"quantity" validate:"gt=0"`
}

// Key returns the line identity of the item.
func (i CartItem) Key() LineKey {
	return LineKey{RaceID: i.RaceID, Distance: i.Option.Distance}
}

// UnitPrice returns the price charged for one unit of the item.
func (i CartItem) UnitPrice() decimal.Decimal {
	return i.Option.UnitPrice()
}

// Owner identifies whose cart is being worked on. A set UserID means the
// caller is authenticated; otherwise SessionID names the guest session.
type Owner struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Authenticated reports whether the owner is a signed-in user.
func (o Owner) Authenticated() bool {
	return o.UserID != ""
}

// Key returns the identity records are stored under: the user id once
// authenticated, the guest session id before.
func (o Owner) Key() string {
	if o.Authenticated() {
		return o.UserID
	}
	return o.SessionID
}

// Guest returns the guest-session view of the owner.
func (o Owner) Guest() Owner {
	return Owner{SessionID: o.SessionID}
}

// CartTotals is the priced view of a cart.
type CartTotals struct {
	TotalItems    int             `json:"totalItems"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	BonusApplied  bool            `json:"bonusApplied"`
	FreeItem      *LineKey        `json:"freeItem"`
	FreeItemPrice decimal.Decimal `json:"freeItemPrice"`
}

// CartResponse is the payload returned by the cart endpoints.
type CartResponse struct {
	Items  []CartItem `json:"items"`
	Totals CartTotals `json:"totals"`
}

// AddToCartRequest is the request payload for adding a cart line.
type AddToCartRequest struct {
	RaceID   string `json:"raceId"`
	Distance string `json:"distance"`
	Quantity int    `json:"quantity"`
}

// UpdateQuantityRequest is the request payload for changing a line's quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}
