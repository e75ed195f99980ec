package stock

import (
	"github.com/google/uuid"
)

// ProductQuantity pairs a product with a signed quantity
type ProductQuantity struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// NewProductQuantity creates a ProductQuantity
func NewProductQuantity(productID uuid.UUID, quantity int) ProductQuantity {
	return ProductQuantity{ProductID: productID, Quantity: quantity}
}

// ProductQuantityLocation is a ProductQuantity resolved to a concrete location
type ProductQuantityLocation struct {
	ProductQuantity
	Location LocationReference
}

// NewProductQuantityLocation creates a ProductQuantityLocation
func NewProductQuantityLocation(productID uuid.UUID, quantity int, location LocationReference) ProductQuantityLocation {
	return ProductQuantityLocation{
		ProductQuantity: NewProductQuantity(productID, quantity),
		Location:        location,
	}
}

// ProductQuantities is an ordered list of product quantities
type ProductQuantities []ProductQuantity

// Merge sums quantities per product, keeping the order in which products
// first appear
func (pq ProductQuantities) Merge() ProductQuantities {
	index := make(map[uuid.UUID]int, len(pq))
	merged := make(ProductQuantities, 0, len(pq))
	for _, q := range pq {
		if i, ok := index[q.ProductID]; ok {
			merged[i].Quantity += q.Quantity
			continue
		}
		index[q.ProductID] = len(merged)
		merged = append(merged, q)
	}
	return merged
}

// NonZero drops entries with a zero quantity
func (pq ProductQuantities) NonZero() ProductQuantities {
	result := make(ProductQuantities, 0, len(pq))
	for _, q := range pq {
		if q.Quantity != 0 {
			result = append(result, q)
		}
	}
	return result
}

// Total returns the sum of all quantities
func (pq ProductQuantities) Total() int {
	total := 0
	for _, q := range pq {
		total += q.Quantity
	}
	return total
}

// ProductIDs returns the distinct product IDs in order of first appearance
func (pq ProductQuantities) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(pq))
	ids := make([]uuid.UUID, 0, len(pq))
	for _, q := range pq {
		if _, ok := seen[q.ProductID]; ok {
			continue
		}
		seen[q.ProductID] = struct{}{}
		ids = append(ids, q.ProductID)
	}
	return ids
}

// AsMap returns the merged quantities keyed by product
func (pq ProductQuantities) AsMap() map[uuid.UUID]int {
	m := make(map[uuid.UUID]int, len(pq))
	for _, q := range pq {
		m[q.ProductID] += q.Quantity
	}
	return m
}
