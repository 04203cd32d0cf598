package cmd

import (
	"curafeed/db"

	"github.com/urfave/cli/v2"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Usage:       "Run database migrations",
		Description: `Runs migrations on the SQLite feed cache. Will create the database if it does not exist.`,
		Action: func(ctx *cli.Context) error {
			path, err := sqlitePath(ctx)
			if err != nil {
				return err
			}
			return db.Migrate(path)
		},
	}
}

func rollbackCmd() *cli.Command {
	return &cli.Command{
		Name:        "rollback",
		Usage:       "Rollback database migration",
		Description: `Rolls back the last migration of the SQLite feed cache`,
		Action: func(ctx *cli.Context) error {
			path, err := sqlitePath(ctx)
			if err != nil {
				return err
			}
			return db.Rollback(path)
		},
	}
}
