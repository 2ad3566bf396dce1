// Package order models the four order shapes the shop sells and the
// validation that used to be missing from their constructors.
package order

import (
	"fmt"

	"github.com/pkg/errors"

	"ringscoop/internal/flavor"
)

// Size names a portion shape.
type Size string

const (
	Cucurucho Size = "cucurucho"
	Cuarto    Size = "cuarto"
	Medio     Size = "medio"
	Kilo      Size = "kilo"
)

// FlavorGrams pairs a flavor with the grams an order needs of it.
type FlavorGrams struct {
	Flavor ID    `json:"flavor"`
	Grams  uint32 `json:"grams"`
}

// ID re-exports flavor.ID under the order package so callers that only need
// order-shaped data don't also need to import flavor directly.
type ID = flavor.ID

// Order is one of the four portion shapes, each carrying the flavors (and
// the grams of each) it needs scooped.
type Order struct {
	Size    Size          `json:"size"`
	Flavors []FlavorGrams `json:"flavors"`
}

const (
	kilo   = flavor.KILO
	medio  = kilo / 2
	cuarto = kilo / 4
)

// maxFlavors are the documented per-size flavor caps.
var maxFlavors = map[Size]int{
	Cucurucho: 1,
	Cuarto:    2,
	Medio:     3,
	Kilo:      4,
}

// NewCucurucho builds a single-flavor cone: always cuarto-sized (250 g).
func NewCucurucho(f flavor.ID) (Order, error) {
	if err := validateFlavors(Cucurucho, []flavor.ID{f}); err != nil {
		return Order{}, err
	}
	return Order{Size: Cucurucho, Flavors: []FlavorGrams{{Flavor: f, Grams: cuarto}}}, nil
}

// NewCuarto builds a quarter-kilo order split evenly across up to 2 flavors.
// Unlike the source this generalizes from, it validates before indexing
// instead of panicking on a short slice.
func NewCuarto(flavors []flavor.ID) (Order, error) {
	if err := validateFlavors(Cuarto, flavors); err != nil {
		return Order{}, err
	}
	per := uint32(cuarto / len(flavors))
	out := make([]FlavorGrams, len(flavors))
	for i, f := range flavors {
		out[i] = FlavorGrams{Flavor: f, Grams: per}
	}
	return Order{Size: Cuarto, Flavors: out}, nil
}

// NewMedio builds a half-kilo order split evenly across up to 3 flavors.
// Positional ordering of the output is unspecified; this implementation
// preserves input order rather than the source's shuffled [1,2,0] layout.
func NewMedio(flavors []flavor.ID) (Order, error) {
	if err := validateFlavors(Medio, flavors); err != nil {
		return Order{}, err
	}
	per := uint32(medio / len(flavors))
	out := make([]FlavorGrams, len(flavors))
	for i, f := range flavors {
		out[i] = FlavorGrams{Flavor: f, Grams: per}
	}
	return Order{Size: Medio, Flavors: out}, nil
}

// NewKilo builds a full-kilo order split evenly across up to 4 flavors.
func NewKilo(flavors []flavor.ID) (Order, error) {
	if err := validateFlavors(Kilo, flavors); err != nil {
		return Order{}, err
	}
	per := uint32(kilo / len(flavors))
	out := make([]FlavorGrams, len(flavors))
	for i, f := range flavors {
		out[i] = FlavorGrams{Flavor: f, Grams: per}
	}
	return Order{Size: Kilo, Flavors: out}, nil
}

// validateFlavors enforces the documented caps and rejects unknown flavors,
// replacing the source's index-and-panic-on-short-input behavior with a
// domain error.
func validateFlavors(size Size, flavors []flavor.ID) error {
	if len(flavors) == 0 {
		return errors.Errorf("a %s needs at least one flavor", size)
	}
	if max := maxFlavors[size]; len(flavors) > max {
		return errors.Errorf("a %s can have up to %d flavors", size, max)
	}
	for _, f := range flavors {
		if !f.Valid() {
			return errors.Errorf("a %s cannot use unknown flavor %q", size, f)
		}
	}
	return nil
}

// Info is the immutable record the Leader and an Order Manager exchange:
// the order itself plus its id and the screen that placed it.
type Info struct {
	Order      Order  `json:"order"`
	OrderID    string `json:"order_id"`
	ScreenID   int    `json:"screen_id"`
	SequenceID uint64 `json:"sequence_id,omitempty"`
}

func (i Info) String() string {
	return fmt.Sprintf("Info{order_id=%s screen=%d size=%s}", i.OrderID, i.ScreenID, i.Order.Size)
}

// Outcome is the terminal result of an order: either it finished, or it
// aborted because a flavor ran out.
type Outcome struct {
	Prepared bool        `json:"prepared"`
	Aborted  flavor.ID   `json:"aborted_flavor,omitempty"`
}

// Waiting is a result the Leader could not yet deliver because the target
// screen's connection was down when the outcome was ready.
type Waiting struct {
	OrderID  string  `json:"order_id"`
	Outcome  Outcome `json:"outcome"`
	ScreenID int     `json:"screen_id"`
}
