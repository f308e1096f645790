package prediction

import (
	"fmt"
	"strings"
)

// Request is one user-submitted single-part prediction query.
type Request struct {
	DealerCode string `json:"dealer_code"`
	PartNumber string `json:"part_number"`
	Month      string `json:"month"`
}

// ValidationError reports a missing or malformed input. It is raised before
// any row is created or any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Normalize trims every field and returns the parsed month.
func (r Request) Normalize() (Request, Month, error) {
	r.DealerCode = strings.TrimSpace(r.DealerCode)
	r.PartNumber = strings.TrimSpace(r.PartNumber)
	r.Month = strings.TrimSpace(r.Month)

	switch {
	case r.DealerCode == "":
		return r, 0, &ValidationError{Field: "dealer_code"}
	case r.PartNumber == "":
		return r, 0, &ValidationError{Field: "part_number"}
	case r.Month == "":
		return r, 0, &ValidationError{Field: "month"}
	}

	m, err := ParseMonth(r.Month)
	if err != nil {
		return r, 0, &ValidationError{Field: "month", Message: err.Error()}
	}
	r.Month = m.String()
	return r, m, nil
}
