// Package database opens the beacon's SQLite journal database.
//
// It manages:
//   - The connection, in WAL mode with a busy timeout
//   - Schema migrations read from an fs.FS (normally the embedded
//     migrations package)
//   - Health checks and transaction helpers
//
// The database file is created with 0600 permissions and its directory with
// 0750. All queries use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and each applies in its own transaction.
package database
