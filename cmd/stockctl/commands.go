package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/erp/stockengine/internal/application/fulfillment"
	"github.com/erp/stockengine/internal/application/stockimport"
	"github.com/erp/stockengine/internal/domain/order"
	"github.com/erp/stockengine/internal/domain/shared"
	"github.com/erp/stockengine/internal/domain/stock"
	"github.com/erp/stockengine/internal/infrastructure/storage"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("stockctl "+name, flag.ContinueOnError)
}

func runImport(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("import")
	file := fs.String("file", "", "Local CSV file")
	object := fs.String("object", "", "Object key of the CSV file in the configured bucket")
	mode := fs.String("mode", string(stockimport.ModeAbsolute), "absolute or relative")
	importID := fs.String("import-id", "", "Identifier of the run; reuse it to resume")
	user := fs.String("user", "", "User recorded on the movements")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if (*file == "") == (*object == "") {
		return nil, errors.New("exactly one of --file or --object is required")
	}
	userID, err := parseOptionalID("user", *user)
	if err != nil {
		return nil, err
	}

	var (
		source storage.Source
		name   string
	)
	if *file != "" {
		path, err := filepath.Abs(*file)
		if err != nil {
			return nil, err
		}
		source, name = storage.NewFileSource(filepath.Dir(path)), filepath.Base(path)
	} else {
		if c.cfg.Storage.Bucket == "" {
			return nil, errors.New("--object requires storage.bucket to be configured")
		}
		s3, err := storage.NewS3Source(ctx, &c.cfg.Storage, storage.WithLogger(c.log))
		if err != nil {
			return nil, err
		}
		source, name = s3, *object
	}

	return c.engine.importer.ImportFrom(ctx, source, name, stockimport.ImportRequest{
		ImportID: *importID,
		Mode:     stockimport.Mode(*mode),
		UserID:   userID,
	})
}

func runShip(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("ship")
	orderFlag := fs.String("order", "", "Order to ship")
	version := fs.String("version", "", "Expected live version of the order")
	var warehouses uuidListFlag
	fs.Var(&warehouses, "warehouse", "Candidate warehouse, repeat in picking order")
	user := fs.String("user", "", "User recorded on the movements")
	comment := fs.String("comment", "", "Movement comment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	orderID, err := parseID("order", *orderFlag)
	if err != nil {
		return nil, err
	}
	versionID, err := parseOptionalID("version", *version)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user", *user)
	if err != nil {
		return nil, err
	}

	res, err := c.engine.shipping.ShipOrderCompletely(ctx, fulfillment.ShipOrderRequest{
		OrderID:      orderID,
		VersionID:    versionID,
		WarehouseIDs: warehouses,
		UserID:       userID,
		Comment:      *comment,
	})
	if err != nil {
		return nil, withShortage(err)
	}
	return shipmentView(res), nil
}

func runShipProducts(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("ship-products")
	orderFlag := fs.String("order", "", "Order to ship")
	var products quantitiesFlag
	fs.Var(&products, "product", "product-id=quantity, repeatable")
	var warehouses uuidListFlag
	fs.Var(&warehouses, "warehouse", "Candidate warehouse, repeat in picking order")
	user := fs.String("user", "", "User recorded on the movements")
	comment := fs.String("comment", "", "Movement comment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	orderID, err := parseID("order", *orderFlag)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user", *user)
	if err != nil {
		return nil, err
	}

	res, err := c.engine.shipping.ShipProducts(ctx, fulfillment.ShipProductsRequest{
		OrderID:      orderID,
		WarehouseIDs: warehouses,
		Products:     products.values,
		UserID:       userID,
		Comment:      *comment,
	})
	if err != nil {
		return nil, withShortage(err)
	}
	return shipmentView(res), nil
}

func runReturn(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("return")
	orderFlag := fs.String("order", "", "Shipped order the goods come back from")
	var products quantitiesFlag
	fs.Var(&products, "product", "product-id=quantity, repeatable")
	reason := fs.String("reason", "", "Return reason applied to every line")
	user := fs.String("user", "", "User recorded on the movements")
	comment := fs.String("comment", "", "Movement comment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	orderID, err := parseID("order", *orderFlag)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user", *user)
	if err != nil {
		return nil, err
	}

	items := make([]fulfillment.ReturnLineItem, 0, len(products.values))
	for _, q := range products.values {
		items = append(items, fulfillment.ReturnLineItem{ProductID: q.ProductID, Quantity: q.Quantity, Reason: *reason})
	}
	ro, err := c.engine.returns.CreateReturnOrder(ctx, fulfillment.CreateReturnOrderRequest{
		OrderID:   orderID,
		LineItems: items,
		UserID:    userID,
		Comment:   *comment,
	})
	if err != nil {
		return nil, err
	}
	return returnOrderView(ro), nil
}

func runCompleteReturn(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("complete-return")
	returnOrder := fs.String("return-order", "", "Return order to complete")
	warehouse := fs.String("warehouse", "", "Warehouse receiving restocked goods (default warehouse when empty)")
	var restock, dispose quantitiesFlag
	fs.Var(&restock, "restock", "product-id=quantity put back into stock, repeatable")
	fs.Var(&dispose, "dispose", "product-id=quantity written off, repeatable")
	user := fs.String("user", "", "User recorded on the movements")
	comment := fs.String("comment", "", "Movement comment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	returnOrderID, err := parseID("return-order", *returnOrder)
	if err != nil {
		return nil, err
	}
	warehouseID, err := parseOptionalID("warehouse", *warehouse)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user", *user)
	if err != nil {
		return nil, err
	}

	ro, err := c.engine.returns.CompleteReturnOrder(ctx, fulfillment.CompleteReturnOrderRequest{
		ReturnOrderID: returnOrderID,
		WarehouseID:   warehouseID,
		Restock:       restock.values,
		Dispose:       dispose.values,
		UserID:        userID,
		Comment:       *comment,
	})
	if err != nil {
		return nil, err
	}
	return returnOrderView(ro), nil
}

func runConfirmSupplierOrder(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("confirm-supplier-order")
	id := fs.String("id", "", "Supplier order to confirm")
	user := fs.String("user", "", "User recorded on the movements")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	supplierOrderID, err := parseID("id", *id)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user", *user)
	if err != nil {
		return nil, err
	}

	so, err := c.engine.suppliers.ConfirmSupplierOrder(ctx, fulfillment.ConfirmSupplierOrderRequest{
		SupplierOrderID: supplierOrderID,
		UserID:          userID,
	})
	if err != nil {
		return nil, err
	}
	return supplierOrderView(so), nil
}

func runStockSupplierOrder(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("stock-supplier-order")
	id := fs.String("id", "", "Supplier order the delivery belongs to")
	var products quantitiesFlag
	fs.Var(&products, "product", "product-id=quantity delivered, repeatable")
	warehouse := fs.String("warehouse", "", "Warehouse overriding the supplier order's warehouse")
	user := fs.String("user", "", "User recorded on the movements")
	comment := fs.String("comment", "", "Movement comment")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	supplierOrderID, err := parseID("id", *id)
	if err != nil {
		return nil, err
	}
	warehouseID, err := parseOptionalID("warehouse", *warehouse)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user", *user)
	if err != nil {
		return nil, err
	}

	res, err := c.engine.suppliers.StockSupplierOrder(ctx, fulfillment.StockSupplierOrderRequest{
		SupplierOrderID: supplierOrderID,
		Products:        products.values,
		WarehouseID:     warehouseID,
		UserID:          userID,
		Comment:         *comment,
	})
	if err != nil {
		return nil, err
	}
	view := supplierOrderView(res.SupplierOrder)
	view["received"] = quantitiesView(res.Received)
	view["movements"] = res.Movements
	return view, nil
}

func runStock(ctx context.Context, c *cli, args []string) (any, error) {
	productID, err := productArg("stock", args)
	if err != nil {
		return nil, err
	}
	v, err := c.engine.queries.StockForProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	locations := make([]map[string]any, 0, len(v.Locations))
	for _, s := range v.Locations {
		locations = append(locations, map[string]any{
			"location": s.Location.String(),
			"bin":      s.BinLocationCode,
			"quantity": s.Quantity,
		})
	}
	warehouses := make(map[string]int, len(v.WarehouseStock))
	for _, ws := range v.WarehouseStock {
		warehouses[ws.WarehouseID.String()] = ws.Quantity
	}
	return map[string]any{
		"product_id":     v.Product.ID,
		"product_number": v.Product.ProductNumber,
		"incoming":       v.Product.IncomingStock,
		"total":          v.Total,
		"locations":      locations,
		"warehouses":     warehouses,
	}, nil
}

func runMovements(ctx context.Context, c *cli, args []string) (any, error) {
	fs := newFlagSet("movements")
	product := fs.String("product", "", "Product whose movements are listed")
	filter := shared.DefaultFilter()
	fs.IntVar(&filter.Page, "page", filter.Page, "Page number")
	fs.IntVar(&filter.PageSize, "page-size", filter.PageSize, "Movements per page")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	productID, err := parseID("product", *product)
	if err != nil {
		return nil, err
	}

	movements, total, err := c.engine.queries.MovementsForProduct(ctx, productID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(movements))
	for _, m := range movements {
		items = append(items, map[string]any{
			"id":          m.ID,
			"quantity":    m.Quantity,
			"source":      m.Source.String(),
			"destination": m.Destination.String(),
			"comment":     m.Comment,
			"metadata":    m.Metadata,
			"created_at":  m.CreatedAt,
		})
	}
	return map[string]any{"total": total, "movements": items}, nil
}

func runVerify(ctx context.Context, c *cli, args []string) (any, error) {
	productID, err := productArg("verify", args)
	if err != nil {
		return nil, err
	}
	report, err := c.engine.queries.VerifyConservation(ctx, productID)
	if err != nil {
		return nil, err
	}

	mismatches := make([]map[string]any, 0, len(report.Mismatches))
	for _, m := range report.Mismatches {
		mismatches = append(mismatches, map[string]any{
			"location":  m.Location.String(),
			"aggregate": m.Aggregate,
			"ledger":    m.Ledger,
		})
	}
	negative := make([]string, 0, len(report.NegativeLocations))
	for _, s := range report.NegativeLocations {
		negative = append(negative, fmt.Sprintf("%s=%d", s.Location, s.Quantity))
	}
	result := map[string]any{
		"product_id":           report.ProductID,
		"consistent":           report.IsConsistent(),
		"mismatches":           mismatches,
		"warehouse_mismatches": report.WarehouseMismatches,
		"negative_locations":   negative,
	}
	if !report.IsConsistent() {
		c.log.Warn("Stock aggregates disagree with the movement ledger")
	}
	return result, nil
}

func runStrategies(_ context.Context, c *cli, _ []string) (any, error) {
	registry, err := newStrategyRegistry(c.cfg)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"default":    registry.GetDefault(),
		"strategies": registry.List(),
	}, nil
}

func productArg(name string, args []string) (uuid.UUID, error) {
	fs := newFlagSet(name)
	product := fs.String("product", "", "Product ID")
	if err := fs.Parse(args); err != nil {
		return uuid.Nil, err
	}
	return parseID("product", *product)
}

// withShortage spells out the missing quantities of a picking failure
func withShortage(err error) error {
	var shortage *stock.NotEnoughStockError
	if errors.As(err, &shortage) {
		return fmt.Errorf("%w (missing %v)", err, quantitiesView(shortage.Shortage))
	}
	return err
}

func shipmentView(res *fulfillment.ShipmentResult) map[string]any {
	return map[string]any{
		"order_id":       res.OrderID,
		"shipped":        quantitiesView(res.Shipped),
		"movements":      res.Movements,
		"delivery_state": res.DeliveryState,
	}
}

func returnOrderView(ro *order.ReturnOrder) map[string]any {
	return map[string]any{
		"id":           ro.ID,
		"number":       ro.Number,
		"order_id":     ro.OrderID,
		"state":        ro.State,
		"completed_at": ro.CompletedAt,
	}
}

func supplierOrderView(so *order.SupplierOrder) map[string]any {
	return map[string]any{
		"id":           so.ID,
		"number":       so.Number,
		"state":        so.State,
		"confirmed_at": so.ConfirmedAt,
		"delivered_at": so.DeliveredAt,
	}
}

func quantitiesView(pq stock.ProductQuantities) map[string]int {
	out := make(map[string]int, len(pq))
	for _, q := range pq {
		out[q.ProductID.String()] += q.Quantity
	}
	return out
}
