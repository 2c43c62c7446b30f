package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentSchemaVersion is stamped on every persisted document.
const CurrentSchemaVersion = 1

// DeliveryMethod is how the race kit reaches the buyer.
type DeliveryMethod string

const (
	DeliveryHome   DeliveryMethod = "home"
	DeliveryPickup DeliveryMethod = "pickup"
)

// ParticipantStatus is the registration state of a participant.
type ParticipantStatus string

// ParticipantPendingIdentification is the initial participant status.
const ParticipantPendingIdentification ParticipantStatus = "PENDENTE_IDENTIFICACAO"

// KitStatus is the delivery state of a participant's race kit.
type KitStatus string

const (
	KitAwaitingShipment KitStatus = "AGUARDANDO_ENVIO"
	KitPending          KitStatus = "PENDENTE"
)

// KitStatusFor returns the initial kit status for a delivery method.
func KitStatusFor(method DeliveryMethod) KitStatus {
	if method == DeliveryHome {
		return KitAwaitingShipment
	}
	return KitPending
}

// OrderStatus is the state of an order.
type OrderStatus string

// OrderStatusPaid is the status an order is created with; payment is confirmed before placement.
const OrderStatusPaid OrderStatus = "PAID"

// Address is a delivery address.
type Address struct {
	Street       string `json:"street" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	ZipCode      string `json:"zipCode" validate:"required"`
}

// PayerInfo is the responsible party of an order.
type PayerInfo struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

// DeliveryInfo describes how the kits are delivered.
type DeliveryInfo struct {
	Method  DeliveryMethod  `json:"method" validate:"required,oneof=home pickup"`
	Fee     decimal.Decimal `json:"fee"`
	Address *Address        `json:"address,omitempty" validate:"required_if=Method home"`
}

// AppliedCoupon is a validated coupon with the discount it grants on an order.
type AppliedCoupon struct {
	CouponID       string          `json:"couponId" validate:"required"`
	Code           string          `json:"code" validate:"required"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
}

// Order represents a placed order.
type Order struct {
	SchemaVersion       int             `json:"schemaVersion" db:"schema_version"`
	ID                  string          `json:"id" db:"id"`
	OrderNumber         string          `json:"orderNumber" db:"order_number" validate:"required,len=10,alphanum"`
	UserID              string          `json:"userId" db:"user_id" validate:"required"`
	RaceID              string          `json:"raceId" db:"race_id" validate:"required"`
	RaceName            string          `json:"raceName" db:"race_name"`
	ParticipantIDs      []string        `json:"participantIds" db:"participant_ids" validate:"min=1"`
	ResponsibleName     string          `json:"responsibleName" db:"responsible_name" validate:"required"`
	ResponsibleEmail    string          `json:"responsibleEmail" db:"responsible_email" validate:"required,email"`
	ResponsiblePhone    string          `json:"responsiblePhone,omitempty" db:"responsible_phone"`
	ResponsibleDocument string          `json:"responsibleDocument,omitempty" db:"responsible_document"`
	Subtotal            decimal.Decimal `json:"subtotal" db:"subtotal"`
	BonusDiscount       decimal.Decimal `json:"bonusDiscount" db:"bonus_discount"`
	CouponDiscount      decimal.Decimal `json:"couponDiscount" db:"coupon_discount"`
	DeliveryFee         decimal.Decimal `json:"deliveryFee" db:"delivery_fee"`
	TotalAmount         decimal.Decimal `json:"totalAmount" db:"total_amount"`
	DeliveryMethod      DeliveryMethod  `json:"deliveryMethod" db:"delivery_method" validate:"oneof=home pickup"`
	DeliveryAddress     *Address        `json:"deliveryAddress,omitempty" db:"delivery_address"`
	CouponID            *string         `json:"couponId,omitempty" db:"coupon_id"`
	CouponCode          *string         `json:"couponCode,omitempty" db:"coupon_code"`
	PaymentID           string          `json:"paymentId" db:"payment_id" validate:"required"`
	Status              OrderStatus     `json:"status" db:"status"`
	CreatedAt           time.Time       `json:"createdAt" db:"created_at"`
}

// Participant is one purchased race seat.
type Participant struct {
	SchemaVersion int               `json:"schemaVersion" db:"schema_version"`
	ID            string            `json:"id" db:"id"`
	OrderID       string            `json:"orderId" db:"order_id" validate:"required"`
	UserID        string            `json:"userId" db:"user_id" validate:"required"`
	RaceID        string            `json:"raceId" db:"race_id" validate:"required"`
	RaceName      string            `json:"raceName" db:"race_name"`
	Distance      string            `json:"distance" db:"distance" validate:"required"`
	UnitPrice     decimal.Decimal   `json:"unitPrice" db:"unit_price"`
	Status        ParticipantStatus `json:"status" db:"status"`
	KitStatus     KitStatus         `json:"kitStatus" db:"kit_status"`
	EmailHistory  []EmailLogEntry   `json:"emailHistory" db:"email_history"`
	CreatedAt     time.Time         `json:"createdAt" db:"created_at"`
}

// CheckoutRequest is the request payload for checking out the current cart.
type CheckoutRequest struct {
	PaymentID  string       `json:"paymentId"`
	CouponCode *string      `json:"couponCode,omitempty"`
	Payer      PayerInfo    `json:"payer"`
	Delivery   DeliveryInfo `json:"delivery"`
}

// PlaceOrderResult is returned once an order is committed.
type PlaceOrderResult struct {
	OrderID        string   `json:"orderId"`
	OrderNumber    string   `json:"orderNumber"`
	ParticipantIDs []string `json:"participantIds"`
}

// OrderResponse represents the response payload for an order.
type OrderResponse struct {
	Order        Order         `json:"order"`
	Participants []Participant `json:"participants"`
}

// OrderPlacedEvent is published after an order commits.
type OrderPlacedEvent struct {
	OrderID          string          `json:"orderId"`
	OrderNumber      string          `json:"orderNumber"`
	UserID           string          `json:"userId"`
	RaceID           string          `json:"raceId"`
	ParticipantCount int             `json:"participantCount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	ResponsibleEmail string          `json:"responsibleEmail"`
	PlacedAt         time.Time       `json:"placedAt"`
}
