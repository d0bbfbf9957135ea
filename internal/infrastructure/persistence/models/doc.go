// Package models contains the GORM persistence models for the domain
// aggregates. Models carry the storage concerns (table names, column types,
// indexes) and convert to and from domain entities; domain code never sees
// them.
package models
