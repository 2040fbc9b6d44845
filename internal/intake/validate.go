package intake

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/emberthread/storefront/pkg/models"
)

// MaxOrdersPerSession caps how many orders a single session may submit.
// Exceeding it is enforced by the caller (it disables submission), not
// reported as a field validation error.
const MaxOrdersPerSession = 5

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9()+\- ]{7,20}$`)
)

// Form carries the raw field values as submitted.
type Form struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	Item                string `json:"item"`
	Quantity            string `json:"quantity"`
	Color               string `json:"color"`
	Size                string `json:"size"`
	SpecialInstructions string `json:"special_instructions"`
}

// Draft is a normalized order draft ready for pricing and initiation.
type Draft struct {
	Name                string
	Email               string
	Phone               string
	Item                string
	Quantity            int
	Color               string
	Size                models.Size
	SpecialInstructions string
}

// Validate checks a raw form and returns either a normalized draft or a map
// of field-level error messages. It is pure: no network, no storage. It
// exists so the flow fails fast before any payment or database call.
func Validate(f Form) (*Draft, map[string]string) {
	errs := map[string]string{}

	name := strings.TrimSpace(f.Name)
	if len(name) < 2 {
		errs["name"] = "name is required (at least 2 characters)"
	}

	email := strings.TrimSpace(f.Email)
	if email == "" {
		errs["email"] = "email is required"
	} else if !emailPattern.MatchString(email) {
		errs["email"] = "enter a valid email address"
	}

	phone := strings.TrimSpace(f.Phone)
	if phone != "" && !phonePattern.MatchString(phone) {
		errs["phone"] = "enter a valid phone number"
	}

	item := strings.TrimSpace(f.Item)
	if item == "" {
		errs["item"] = "item description is required"
	}

	quantity := 0
	qty := strings.TrimSpace(f.Quantity)
	if qty == "" {
		errs["quantity"] = "quantity is required"
	} else {
		n, err := strconv.Atoi(qty)
		if err != nil || n < 1 {
			errs["quantity"] = "quantity must be a whole number of at least 1"
		} else {
			quantity = n
		}
	}

	size := models.Size(strings.TrimSpace(f.Size))
	if size == "" {
		errs["size"] = "size is required"
	} else if !models.ValidSize(size) {
		errs["size"] = "size must be one of S, M, L, XL, Custom"
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Draft{
		Name:                name,
		Email:               email,
		Phone:               phone,
		Item:                item,
		Quantity:            quantity,
		Color:               strings.TrimSpace(f.Color),
		Size:                size,
		SpecialInstructions: strings.TrimSpace(f.SpecialInstructions),
	}, nil
}

// ClampQuantity floors a quantity at 1, for decrement controls.
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
