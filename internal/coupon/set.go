package coupon

import "race-kart/internal/model"

// Set holds coupons keyed by code. Adding a code twice keeps the later
// terms at the position of the first occurrence.
type Set struct {
	coupons map[string]int
	list    []model.Coupon
}

// NewSet creates an empty coupon set.
func NewSet(capacity int) *Set {
	return &Set{
		coupons: make(map[string]int, capacity),
		list:    make([]model.Coupon, 0, capacity),
	}
}

// Add inserts or replaces a coupon.
func (s *Set) Add(c model.Coupon) {
	if i, ok := s.coupons[c.Code]; ok {
		s.list[i] = c
		return
	}
	s.coupons[c.Code] = len(s.list)
	s.list = append(s.list, c)
}

// AddAll adds every coupon of other.
func (s *Set) AddAll(other *Set) {
	for _, c := range other.list {
		s.Add(c)
	}
}

// Get returns the coupon with the given code.
func (s *Set) Get(code string) (model.Coupon, bool) {
	i, ok := s.coupons[code]
	if !ok {
		return model.Coupon{}, false
	}
	return s.list[i], true
}

// Contains checks if a coupon code exists in the set.
func (s *Set) Contains(code string) bool {
	_, ok := s.coupons[code]
	return ok
}

// Size returns the number of coupons in the set.
func (s *Set) Size() int {
	return len(s.list)
}

// Coupons returns the coupons in insertion order.
func (s *Set) Coupons() []model.Coupon {
	return s.list
}
