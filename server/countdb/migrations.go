package countdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE session(
			id INTEGER PRIMARY KEY,
			uuid TEXT NOT NULL,
			source TEXT NOT NULL,
			started_at INT NOT NULL,
			ended_at INT NOT NULL DEFAULT 0,
			line_y INT NOT NULL DEFAULT 0,
			frames INT NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL DEFAULT '',
			counts BLOB
		);

		CREATE TABLE crossing(
			id INTEGER PRIMARY KEY,
			session_id INT NOT NULL,
			frame INT NOT NULL,
			track_id INT NOT NULL,
			label TEXT NOT NULL,
			category TEXT NOT NULL,
			direction TEXT NOT NULL,
			from_y INT NOT NULL,
			to_y INT NOT NULL,
			time INT NOT NULL
		);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE UNIQUE INDEX idx_session_uuid ON session(uuid);
		CREATE INDEX idx_crossing_session_id ON crossing(session_id);
	`))

	return migs
}
