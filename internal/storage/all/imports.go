// Package all wires every built-in storage backend into the storage factory.
//
// Importing this package (typically as a blank import from the CLI wiring
// layer) runs each backend's init function, registering its factory:
//
//   - "postgres" (scorecard/internal/storage/postgres)
//   - "sqlite"   (scorecard/internal/storage/sqlite)
//   - "mssql"    (scorecard/internal/storage/mssql)
//
// Binaries that want a subset can import the individual backends instead.
package all

import (
	_ "scorecard/internal/storage/mssql"
	_ "scorecard/internal/storage/postgres"
	_ "scorecard/internal/storage/sqlite"
)
