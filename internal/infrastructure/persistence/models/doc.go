// Package models contains the GORM persistence models of the stock engine.
// Domain entities carry no ORM tags; each model converts to and from its
// domain type with ToDomain / FromDomain.
//
// Locations are stored as a (type, id) column pair. Aggregate stock rows only
// exist for real locations, so their location_id is never null; ledger rows
// store a null id for the unknown and import locations.
package models
