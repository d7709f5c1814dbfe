package eventstore

import _ "embed"

// SchemaSQL is the bootstrap DDL for the event store and its read-model
// projections, applied once at startup (or per-test-schema in tests).
//
//go:embed schema.sql
var SchemaSQL string
