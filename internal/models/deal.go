package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrDealExists is returned when attempting to create a deal that already exists.
	ErrDealExists = errors.New("deal already exists")
	// ErrNotFound is returned when a document does not exist or is logically deleted.
	ErrNotFound = errors.New("not found")
	// ErrDealNotClaimable is returned when claiming an inactive, unapproved or expired deal.
	ErrDealNotClaimable = errors.New("deal cannot be claimed")
)

// Moderation statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// Categories are the deal categories offered as filters. CategoryOther is the catch-all.
var Categories = []string{"lodging", "flights", "tours", "dining", "transport", "activities", "packages", CategoryOther}

const CategoryOther = "other"

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `firestore:"lat" json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `firestore:"lng" json:"lng" validate:"gte=-180,lte=180"`
}

type Location struct {
	City    string    `firestore:"city,omitempty" json:"city,omitempty"`
	Country string    `firestore:"country,omitempty" json:"country,omitempty"`
	Point   *GeoPoint `firestore:"point,omitempty" json:"point,omitempty"`
}

// Deal is a travel deal offered by a business.
type Deal struct {
	ID              string     `firestore:"-" json:"_id"`
	Title           string     `firestore:"title" json:"title" validate:"required,max=200"`
	Description     string     `firestore:"description" json:"description" validate:"max=5000"`
	Category        string     `firestore:"category" json:"category" validate:"max=50"`
	Discount        string     `firestore:"discount" json:"discount" validate:"required,max=50"`
	DiscountLabel   string     `firestore:"discountLabel,omitempty" json:"discountLabel,omitempty"`
	DiscountType    string     `firestore:"discountType,omitempty" json:"discountType,omitempty" validate:"omitempty,oneof=percentage fixed"`
	BusinessName    string     `firestore:"businessName" json:"businessName" validate:"required,max=120"`
	BusinessType    string     `firestore:"businessType,omitempty" json:"businessType,omitempty"`
	OriginalPrice   float64    `firestore:"originalPrice" json:"originalPrice" validate:"gte=0"`
	DiscountedPrice float64    `firestore:"discountedPrice" json:"discountedPrice" validate:"gte=0"`
	Location        Location   `firestore:"location" json:"location"`
	Images          []string   `firestore:"images,omitempty" json:"images,omitempty" validate:"dive,url"`
	Views           int        `firestore:"views" json:"views" validate:"gte=0"`
	Claims          int        `firestore:"claims" json:"claims" validate:"gte=0"`
	ValidFrom       time.Time  `firestore:"validFrom" json:"validFrom"`
	ValidUntil      *time.Time `firestore:"validUntil,omitempty" json:"validUntil,omitempty"`
	IsActive        bool       `firestore:"isActive" json:"isActive"`
	Status          string     `firestore:"status" json:"status" validate:"omitempty,oneof=pending approved rejected"`
	Deleted         bool       `firestore:"deleted" json:"-"`
	CreatedAt       time.Time  `firestore:"createdAt" json:"createdAt"`
	LastUpdated     time.Time  `firestore:"lastUpdated" json:"lastUpdated"`
	SourceURL       string     `firestore:"sourceURL,omitempty" json:"sourceURL,omitempty" validate:"omitempty,url"`

	// Distance is the distance in km to the requesting user. Computed per request.
	Distance *float64 `firestore:"-" json:"distance,omitempty"`
}

// TrendingScore weighs claims twice as much as views.
func (d Deal) TrendingScore() int {
	return d.Views + 2*d.Claims
}

// IsExpired reports whether the deal's validity window has ended at now.
func (d Deal) IsExpired(now time.Time) bool {
	return d.ValidUntil != nil && !d.ValidUntil.After(now)
}

// Visible reports whether the deal belongs in public listings.
func (d Deal) Visible() bool {
	return d.IsActive && !d.Deleted && d.Status == StatusApproved
}

// Claimable reports whether a user may claim the deal at now.
func (d Deal) Claimable(now time.Time) bool {
	if !d.Visible() || d.IsExpired(now) {
		return false
	}
	return d.ValidFrom.IsZero() || !d.ValidFrom.After(now)
}

// Savings returns the absolute saving between original and discounted price.
func (d Deal) Savings() decimal.Decimal {
	orig := decimal.NewFromFloat(d.OriginalPrice)
	disc := decimal.NewFromFloat(d.DiscountedPrice)
	if disc.GreaterThan(orig) {
		return decimal.Zero
	}
	return orig.Sub(disc)
}

// SavingsPercent returns the saving as a percentage of the original price, rounded to 2 places.
func (d Deal) SavingsPercent() decimal.Decimal {
	orig := decimal.NewFromFloat(d.OriginalPrice)
	if !orig.IsPositive() {
		return decimal.Zero
	}
	return d.Savings().Div(orig).Mul(decimal.NewFromInt(100)).Round(2)
}

// HumanDiscountLabel builds the label shown next to the deal when none was supplied.
func (d Deal) HumanDiscountLabel() string {
	if d.DiscountLabel != "" {
		return d.DiscountLabel
	}
	if d.DiscountType == DiscountFixed && d.OriginalPrice > 0 {
		return fmt.Sprintf("%s off (save %s%%)", d.Discount, d.SavingsPercent().StringFixed(0))
	}
	return d.Discount + " off"
}

// Field returns the value stored under the JSON field name key, or nil.
func (d Deal) Field(key string) any {
	switch key {
	case "_id", "id":
		return d.ID
	case "title":
		return d.Title
	case "description":
		return d.Description
	case "category":
		return d.Category
	case "discount":
		return d.Discount
	case "discountLabel":
		return d.HumanDiscountLabel()
	case "discountType":
		return d.DiscountType
	case "businessName":
		return d.BusinessName
	case "businessType":
		return d.BusinessType
	case "originalPrice":
		return d.OriginalPrice
	case "discountedPrice":
		return d.DiscountedPrice
	case "location":
		return d.Location
	case "images":
		return d.Images
	case "views":
		return d.Views
	case "claims":
		return d.Claims
	case "trendingScore":
		return d.TrendingScore()
	case "validFrom":
		return d.ValidFrom
	case "validUntil":
		if d.ValidUntil == nil {
			return nil
		}
		return *d.ValidUntil
	case "isActive":
		return d.IsActive
	case "status":
		return d.Status
	case "createdAt":
		return d.CreatedAt
	case "sourceURL":
		return d.SourceURL
	case "distance":
		if d.Distance == nil {
			return nil
		}
		return *d.Distance
	}
	return nil
}
