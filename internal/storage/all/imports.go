// Package all wires every built-in storage backend into the storage factory.
//
// Importing it for side effects makes these kinds available to storage.New:
//
//   - "postgres" (ecomstaging/internal/storage/postgres)
//   - "mssql"    (ecomstaging/internal/storage/mssql)
//   - "mysql"    (ecomstaging/internal/storage/mysql)
//   - "sqlite"   (ecomstaging/internal/storage/sqlite)
//
// Typical usage in a command:
//
//	import _ "ecomstaging/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: cfg.DBKind, DSN: cfg.DSN()})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
package all

import (
	_ "ecomstaging/internal/storage/mssql"
	_ "ecomstaging/internal/storage/mysql"
	_ "ecomstaging/internal/storage/postgres"
	_ "ecomstaging/internal/storage/sqlite"
)
