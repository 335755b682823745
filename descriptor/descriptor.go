// Package descriptor maintains the catalog of supported dive computers.
//
// Driver packages register their models in an init function; applications query
// the catalog to present a device picker or to match a BLE advertisement to a
// driver. The registry is safe for concurrent use.
package descriptor

import (
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/william-perry/go-mares/transport"
)

// Descriptor describes one supported dive computer model.
type Descriptor struct {
	// Vendor is the manufacturer name, for example "Mares".
	Vendor string
	// Product is the marketing name of the model, for example "Quad Air".
	Product string
	// Model is the driver specific model code.
	Model uint32
	// Transports lists the links the model can be reached over.
	Transports []transport.Kind
}

// Supports reports whether the model can be reached over the given link.
func (d *Descriptor) Supports(kind transport.Kind) bool {
	for _, k := range d.Transports {
		if k == kind {
			return true
		}
	}

	return false
}

var registry = xsync.NewMapOf[string, *Descriptor]()

func key(vendor, product string) string {
	return strings.ToLower(vendor) + "/" + strings.ToLower(product)
}

// Register adds a descriptor to the catalog, replacing any existing entry for
// the same vendor and product. Driver packages call it from init.
func Register(d *Descriptor) {
	registry.Store(key(d.Vendor, d.Product), d)
}

// Find returns the descriptor for the given vendor and product. The lookup is
// case insensitive.
func Find(vendor, product string) (*Descriptor, bool) {
	return registry.Load(key(vendor, product))
}

// All returns every registered descriptor, sorted by vendor and product.
func All() []*Descriptor {
	var all []*Descriptor
	registry.Range(func(_ string, d *Descriptor) bool {
		all = append(all, d)
		return true
	})

	sort.Slice(all, func(i, j int) bool {
		if all[i].Vendor != all[j].Vendor {
			return all[i].Vendor < all[j].Vendor
		}
		return all[i].Product < all[j].Product
	})

	return all
}

// MatchName returns the descriptor whose product name appears in the given
// device name, as advertised over BLE. Longer product names win so that
// "Quad Air" is preferred over "Quad" for a device called "Mares Quad Air".
func MatchName(name string) (*Descriptor, bool) {
	lower := strings.ToLower(name)

	var best *Descriptor
	registry.Range(func(_ string, d *Descriptor) bool {
		if strings.Contains(lower, strings.ToLower(d.Product)) {
			if best == nil || len(d.Product) > len(best.Product) {
				best = d
			}
		}
		return true
	})

	return best, best != nil
}
