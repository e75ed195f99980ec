package stock

import (
	"fmt"
	"sort"

	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/google/uuid"
)

// PickLocation is a quantity taken from one stock row
type PickLocation struct {
	StockID         uuid.UUID
	Location        LocationReference
	WarehouseID     uuid.UUID
	BinLocationCode string
	Quantity        int
}

// ProductPickingRequest is the demand for one product and, once solved, the
// locations it is picked from
type ProductPickingRequest struct {
	ProductID     uuid.UUID
	Quantity      int
	pickLocations []PickLocation
}

// PickLocations returns the resolved locations in pick order
func (r *ProductPickingRequest) PickLocations() []PickLocation {
	result := make([]PickLocation, len(r.pickLocations))
	copy(result, r.pickLocations)
	return result
}

// PickedQuantity returns the quantity assigned to pick locations
func (r *ProductPickingRequest) PickedQuantity() int {
	total := 0
	for _, l := range r.pickLocations {
		total += l.Quantity
	}
	return total
}

// Shortage returns the unmet part of the demand
func (r *ProductPickingRequest) Shortage() int {
	short := r.Quantity - r.PickedQuantity()
	if short < 0 {
		return 0
	}
	return short
}

// IsCompletelyPickable reports whether the demand is fully met
func (r *ProductPickingRequest) IsCompletelyPickable() bool {
	return r.Shortage() == 0
}

// PickingRequest is a set of product demands resolved against real stock.
// Shortage is a normal result, not an error.
type PickingRequest struct {
	productRequests []*ProductPickingRequest
}

// NewPickingRequest creates a request; quantities of the same product are merged
func NewPickingRequest(quantities ProductQuantities) (*PickingRequest, error) {
	merged := quantities.Merge()
	req := &PickingRequest{productRequests: make([]*ProductPickingRequest, 0, len(merged))}
	for _, q := range merged {
		if q.ProductID == uuid.Nil {
			return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
		}
		if q.Quantity < 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", fmt.Sprintf("Picking quantity for product %s cannot be negative", q.ProductID))
		}
		req.productRequests = append(req.productRequests, &ProductPickingRequest{
			ProductID: q.ProductID,
			Quantity:  q.Quantity,
		})
	}
	return req, nil
}

// ProductPickingRequests returns the per-product demands in request order
func (r *PickingRequest) ProductPickingRequests() []*ProductPickingRequest {
	return r.productRequests
}

// ProductIDs returns the requested products in request order
func (r *PickingRequest) ProductIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(r.productRequests))
	for i, p := range r.productRequests {
		ids[i] = p.ProductID
	}
	return ids
}

// IsCompletelyPickable is true iff every demand is fully met
func (r *PickingRequest) IsCompletelyPickable() bool {
	for _, p := range r.productRequests {
		if !p.IsCompletelyPickable() {
			return false
		}
	}
	return true
}

// StockShortage returns the unmet remainder per product, empty when the
// request is completely pickable
func (r *PickingRequest) StockShortage() ProductQuantities {
	shortage := make(ProductQuantities, 0)
	for _, p := range r.productRequests {
		if s := p.Shortage(); s > 0 {
			shortage = append(shortage, NewProductQuantity(p.ProductID, s))
		}
	}
	return shortage
}

// ToStockMovements converts the resolved picks into movements to destination.
// Must only be called on a completely pickable request.
func (r *PickingRequest) ToStockMovements(destination LocationReference, opts MovementOptions) (StockMovements, error) {
	if !r.IsCompletelyPickable() {
		return nil, &NotEnoughStockError{Shortage: r.StockShortage()}
	}
	movements := make(StockMovements, 0)
	for _, p := range r.productRequests {
		for _, l := range p.pickLocations {
			m, err := NewStockMovement(p.ProductID, l.Quantity, l.Location, destination)
			if err != nil {
				return nil, err
			}
			opts.apply(m)
			movements = append(movements, m)
		}
	}
	return movements, nil
}

// PickableStock is a stock row that may be picked from
type PickableStock struct {
	StockID         uuid.UUID
	ProductID       uuid.UUID
	Location        LocationReference
	WarehouseID     uuid.UUID
	BinLocationCode string
	Quantity        int
}

// SortPickableStock orders candidates deterministically: by the rank of their
// warehouse in warehouseOrder, bin locations before the generic warehouse
// location, bin locations by code, then by stock ID.
func SortPickableStock(stocks []PickableStock, warehouseOrder []uuid.UUID) {
	rank := make(map[uuid.UUID]int, len(warehouseOrder))
	for i, id := range warehouseOrder {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	rankOf := func(id uuid.UUID) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(warehouseOrder)
	}

	sort.SliceStable(stocks, func(i, j int) bool {
		a, b := stocks[i], stocks[j]
		if ra, rb := rankOf(a.WarehouseID), rankOf(b.WarehouseID); ra != rb {
			return ra < rb
		}
		aBin := a.Location.Type() == LocationTypeBinLocation
		bBin := b.Location.Type() == LocationTypeBinLocation
		if aBin != bBin {
			return aBin
		}
		if a.BinLocationCode != b.BinLocationCode {
			return a.BinLocationCode < b.BinLocationCode
		}
		return a.StockID.String() < b.StockID.String()
	})
}

// Allocate greedily assigns the ordered candidates to the product demands.
// A candidate is never debited beyond its quantity; rows with no positive
// quantity are ignored. Any previous allocation is discarded.
func (r *PickingRequest) Allocate(candidates []PickableStock) {
	remaining := make(map[uuid.UUID]int, len(candidates))
	for _, c := range candidates {
		remaining[c.StockID] = c.Quantity
	}

	for _, p := range r.productRequests {
		p.pickLocations = nil
		need := p.Quantity
		for _, c := range candidates {
			if need <= 0 {
				break
			}
			if c.ProductID != p.ProductID {
				continue
			}
			available := remaining[c.StockID]
			if available <= 0 {
				continue
			}
			take := min(available, need)
			remaining[c.StockID] = available - take
			need -= take
			p.pickLocations = append(p.pickLocations, PickLocation{
				StockID:         c.StockID,
				Location:        c.Location,
				WarehouseID:     c.WarehouseID,
				BinLocationCode: c.BinLocationCode,
				Quantity:        take,
			})
		}
	}
}
