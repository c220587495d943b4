// Package database provides the SQLite store shared by the geowatch repositories.
//
// It manages:
//   - One connection in WAL mode (SQLite has a single writer; the monitor
//     relies on version-checked updates, not on connection-level locking)
//   - Busy timeout and foreign keys via the DSN
//   - Schema migrations from an fs.FS of YYYYMMDD_HHMMSS_name.{up,down}.sql files
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be nullable or carry a default,
// and every .up.sql file ships with a matching .down.sql.
package database
