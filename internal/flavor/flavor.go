// Package flavor defines the closed set of ice-cream flavors that tokens and
// orders reference, and the inventory constants every robot starts from.
package flavor

import "fmt"

// ID is a closed enumeration of the seven ingredients in circulation. It has
// a stable string encoding so it can travel unchanged on the wire.
type ID string

const (
	Chocolate    ID = "chocolate"
	Vanilla      ID = "vanilla"
	Strawberry   ID = "strawberry"
	Mint         ID = "mint"
	Lemon        ID = "lemon"
	DulceDeLeche ID = "dulce_de_leche"
	Pistachio    ID = "pistachio"
)

// All lists every flavor in a fixed, deterministic order. Leader
// construction (fresh mode) seeds tokens by iterating this slice.
var All = []ID{Chocolate, Vanilla, Strawberry, Mint, Lemon, DulceDeLeche, Pistachio}

// Valid reports whether id is one of the seven known flavors.
func (id ID) Valid() bool {
	for _, known := range All {
		if id == known {
			return true
		}
	}
	return false
}

func (id ID) String() string {
	return string(id)
}

// KILO is the gram weight of a full kilo order; all portion sizes are
// expressed as fractions of it.
const KILO = 1000

// InitialAmount returns the grams of id seeded at process start. One flavor
// (Lemon) seeds 2800 g lower than the rest so small clusters can exercise
// the exhaustion path without waiting out the full kilo stock.
func InitialAmount(id ID) uint32 {
	const baseline uint32 = 20 * KILO
	if id == Lemon {
		return baseline - 2800
	}
	return baseline
}

// MustValid panics if id is not a known flavor. Reserved for call sites that
// have already validated the value (e.g. decoded from a closed JSON enum
// whose decoder rejects unknown strings); production code paths validate
// and return an error instead, see internal/order.
func MustValid(id ID) ID {
	if !id.Valid() {
		panic(fmt.Sprintf("flavor: unknown id %q", id))
	}
	return id
}
