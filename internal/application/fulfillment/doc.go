// Package fulfillment orchestrates the stock-moving business operations:
// shipping orders, returning goods and receiving supplier orders.
//
// Every operation follows the same shape. The request is validated and the
// referenced documents are checked outside any lock. A retrying transaction
// then locks the document and the stock rows of its products, resolves a
// picking or stocking solution against the locked view, applies it through
// the StockMovementService and transitions the document state. Domain events
// are published only after commit, and a failed publish never fails the
// operation.
package fulfillment
