package stock

import (
	"fmt"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

// LocationType identifies the kind of place stock can reside
type LocationType string

const (
	LocationTypeWarehouse     LocationType = "warehouse"
	LocationTypeBinLocation   LocationType = "bin_location"
	LocationTypeOrder         LocationType = "order"
	LocationTypeReturnOrder   LocationType = "return_order"
	LocationTypeSupplierOrder LocationType = "supplier_order"
	LocationTypeUnknown       LocationType = "unknown"
	LocationTypeImport        LocationType = "import"
)

// String returns the string representation of LocationType
func (t LocationType) String() string {
	return string(t)
}

// IsValid returns true if the location type is valid
func (t LocationType) IsValid() bool {
	switch t {
	case LocationTypeWarehouse,
		LocationTypeBinLocation,
		LocationTypeOrder,
		LocationTypeReturnOrder,
		LocationTypeSupplierOrder,
		LocationTypeUnknown,
		LocationTypeImport:
		return true
	}
	return false
}

// IsSpecial reports whether the type is an unbounded sentinel location.
// Special locations keep no aggregate stock and are exempt from the
// non-negative quantity rule.
func (t LocationType) IsSpecial() bool {
	return t == LocationTypeUnknown || t == LocationTypeImport
}

// RequiresID reports whether a reference of this type must carry an entity ID
func (t LocationType) RequiresID() bool {
	return t.IsValid() && !t.IsSpecial()
}

// LocationReference identifies exactly one stock location. It is an immutable
// value: two references are equal iff they have the same type and ID.
type LocationReference struct {
	locationType LocationType
	id           uuid.UUID
}

// NewLocationReference rehydrates a reference from its persisted pair
func NewLocationReference(locationType LocationType, id uuid.UUID) (LocationReference, error) {
	if !locationType.IsValid() {
		return LocationReference{}, shared.NewDomainError("INVALID_LOCATION_TYPE", fmt.Sprintf("Invalid stock location type '%s'", locationType))
	}
	if locationType.RequiresID() && id == uuid.Nil {
		return LocationReference{}, shared.NewDomainError("INVALID_LOCATION", fmt.Sprintf("Stock location of type '%s' requires an ID", locationType))
	}
	if locationType.IsSpecial() {
		id = uuid.Nil
	}
	return LocationReference{locationType: locationType, id: id}, nil
}

// WarehouseLocation references the generic (non-bin) location of a warehouse
func WarehouseLocation(warehouseID uuid.UUID) LocationReference {
	return LocationReference{locationType: LocationTypeWarehouse, id: warehouseID}
}

// BinLocationLocation references a bin location
func BinLocationLocation(binLocationID uuid.UUID) LocationReference {
	return LocationReference{locationType: LocationTypeBinLocation, id: binLocationID}
}

// OrderLocation references the stock held by an order (shipped goods)
func OrderLocation(orderID uuid.UUID) LocationReference {
	return LocationReference{locationType: LocationTypeOrder, id: orderID}
}

// ReturnOrderLocation references the stock held by a return order
func ReturnOrderLocation(returnOrderID uuid.UUID) LocationReference {
	return LocationReference{locationType: LocationTypeReturnOrder, id: returnOrderID}
}

// SupplierOrderLocation references the incoming stock of a supplier order
func SupplierOrderLocation(supplierOrderID uuid.UUID) LocationReference {
	return LocationReference{locationType: LocationTypeSupplierOrder, id: supplierOrderID}
}

// UnknownLocation references the unbounded "unknown" sentinel
func UnknownLocation() LocationReference {
	return LocationReference{locationType: LocationTypeUnknown}
}

// ImportLocation references the unbounded "import" sentinel
func ImportLocation() LocationReference {
	return LocationReference{locationType: LocationTypeImport}
}

// Type returns the location type
func (r LocationReference) Type() LocationType {
	return r.locationType
}

// ID returns the referenced entity ID, uuid.Nil for special locations
func (r LocationReference) ID() uuid.UUID {
	return r.id
}

// IsZero reports whether the reference was never initialized
func (r LocationReference) IsZero() bool {
	return r.locationType == ""
}

// IsSpecial reports whether this is the unknown or import location
func (r LocationReference) IsSpecial() bool {
	return r.locationType.IsSpecial()
}

// Equals returns true if both references point to the same location
func (r LocationReference) Equals(other LocationReference) bool {
	return r == other
}

// String renders "type:id", or just "type" for special locations
func (r LocationReference) String() string {
	if r.IsSpecial() {
		return string(r.locationType)
	}
	return fmt.Sprintf("%s:%s", r.locationType, r.id)
}

// Less orders references by type, then ID. Used to acquire row locks in a
// stable order.
func (r LocationReference) Less(other LocationReference) bool {
	if r.locationType != other.locationType {
		return r.locationType < other.locationType
	}
	return r.id.String() < other.id.String()
}
