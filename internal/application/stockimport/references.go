package stockimport

import (
	"context"
	"errors"

	"github.com/google/uuid"

	appstock "github.com/erp/stockengine/internal/application/stock"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	csvimport "github.com/erp/stockengine/internal/infrastructure/import"
)

// referenceResolver looks up products, warehouses and bin locations by code,
// remembering every answer for the rest of the file
type referenceResolver struct {
	repos      appstock.TransactionalRepositories
	products   map[string]uuid.UUID
	warehouses map[string]*stock.Warehouse
	bins       map[uuid.UUID]map[string]*stock.BinLocation
}

func newReferenceResolver(repos appstock.TransactionalRepositories) *referenceResolver {
	return &referenceResolver{
		repos:      repos,
		products:   make(map[string]uuid.UUID),
		warehouses: make(map[string]*stock.Warehouse),
		bins:       make(map[uuid.UUID]map[string]*stock.BinLocation),
	}
}

// resolve returns the product and target location of a row. Unknown
// references are recorded in errs and yield uuid.Nil.
func (r *referenceResolver) resolve(ctx context.Context, line int, row *stockRow, errs *csvimport.ErrorCollection) (uuid.UUID, stock.LocationReference, error) {
	productID, err := r.product(ctx, row.ProductNumber)
	if err != nil {
		return uuid.Nil, stock.LocationReference{}, err
	}
	if productID == uuid.Nil {
		errs.AddReferenceError(line, "product_number", row.ProductNumber, "product")
	}

	w, err := r.warehouse(ctx, row.WarehouseCode)
	if err != nil {
		return uuid.Nil, stock.LocationReference{}, err
	}
	if w == nil {
		if row.WarehouseCode == "" {
			errs.Add(csvimport.NewRowError(line, "warehouse_code", csvimport.ErrCodeImportRequiredField,
				"no warehouse given and no default warehouse configured"))
		} else {
			errs.AddReferenceError(line, "warehouse_code", row.WarehouseCode, "warehouse")
		}
		return uuid.Nil, stock.LocationReference{}, nil
	}

	location := w.Location()
	if row.BinLocationCode != "" {
		bin, err := r.bin(ctx, w.ID, row.BinLocationCode)
		if err != nil {
			return uuid.Nil, stock.LocationReference{}, err
		}
		if bin == nil {
			errs.AddReferenceError(line, "bin_location_code", row.BinLocationCode, "bin location")
			return uuid.Nil, stock.LocationReference{}, nil
		}
		location = bin.Location()
	}
	return productID, location, nil
}

func (r *referenceResolver) product(ctx context.Context, number string) (uuid.UUID, error) {
	if id, ok := r.products[number]; ok {
		return id, nil
	}
	p, err := r.repos.ProductRepo().FindByProductNumber(ctx, number)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		r.products[number] = uuid.Nil
		return uuid.Nil, nil
	case err != nil:
		return uuid.Nil, err
	}
	r.products[number] = p.ID
	return p.ID, nil
}

// warehouse resolves a code; the empty code means the default warehouse
func (r *referenceResolver) warehouse(ctx context.Context, code string) (*stock.Warehouse, error) {
	if w, ok := r.warehouses[code]; ok {
		return w, nil
	}
	var (
		w   *stock.Warehouse
		err error
	)
	if code == "" {
		w, err = r.repos.WarehouseRepo().FindDefault(ctx)
	} else {
		w, err = r.repos.WarehouseRepo().FindByCode(ctx, code)
	}
	if errors.Is(err, shared.ErrNotFound) {
		w, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.warehouses[code] = w
	return w, nil
}

func (r *referenceResolver) bin(ctx context.Context, warehouseID uuid.UUID, code string) (*stock.BinLocation, error) {
	byCode, ok := r.bins[warehouseID]
	if !ok {
		byCode = make(map[string]*stock.BinLocation)
		r.bins[warehouseID] = byCode
	}
	if b, ok := byCode[code]; ok {
		return b, nil
	}
	b, err := r.repos.BinLocationRepo().FindByWarehouseAndCode(ctx, warehouseID, code)
	if errors.Is(err, shared.ErrNotFound) {
		b, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	byCode[code] = b
	return b, nil
}
