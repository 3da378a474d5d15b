package cart

import "fmt"

// Result reports the outcome of a cart mutation. None of the outcomes is an
// error: the cart is valid after every call.
type Result int

const (
	OK Result = iota
	// OutOfStock means the line already holds its full stock; nothing changed.
	OutOfStock
	// NotFound means the id is not in the cart; nothing changed.
	NotFound
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case OutOfStock:
		return "out_of_stock"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

func (r Result) MarshalText() ([]byte, error) {
	switch r {
	case OK, OutOfStock, NotFound:
		return []byte(r.String()), nil
	}
	return nil, fmt.Errorf("cart: invalid result %d", int(r))
}

func (r *Result) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ok":
		*r = OK
	case "out_of_stock":
		*r = OutOfStock
	case "not_found":
		*r = NotFound
	default:
		return fmt.Errorf("cart: unknown result %q", string(b))
	}
	return nil
}
