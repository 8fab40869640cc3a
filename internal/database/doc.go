// Package database provides connection pool management for the PostgreSQL
// journal database.
package database
