// Package db embeds the PostgreSQL schema.
package db

import _ "embed"

// Schema is the idempotent DDL for the storefront tables.
//
//go:embed migrations/001_schema.sql
var Schema string
