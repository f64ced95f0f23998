package types

import (
	"fmt"
	"strings"
)

// Address is the shipping address snapshot stored on an order. It is
// persisted as jsonb so historical orders keep the address they shipped to.
type Address struct {
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
	Country    string  `json:"country"`
}

// Normalize trims whitespace and applies the US default country.
func (a *Address) Normalize() {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = "US"
	}
	if a.Line2 != nil {
		line2 := strings.TrimSpace(*a.Line2)
		if line2 == "" {
			a.Line2 = nil
		} else {
			a.Line2 = &line2
		}
	}
}

// Validate reports the first missing required field.
func (a Address) Validate() error {
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return fmt.Errorf("address: missing line1")
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("address: missing city")
	case strings.TrimSpace(a.State) == "":
		return fmt.Errorf("address: missing state")
	case strings.TrimSpace(a.PostalCode) == "":
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}
