// Package storage holds the configuration shared by the persistence backends.
//
// The backends themselves live in storage/postgres: a PostgreSQL connection
// manager with the idempotent schema every domain store relies on, and a
// Redis client used for short-lived keys such as processed webhook event ids.
//
// Domain packages (accounts, billing, orders, offdays) own their queries and
// accept a *sql.DB, so they can be tested with go-sqlmock in isolation.
package storage
