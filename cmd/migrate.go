package cmd

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/civicpay-solutions/ms-go-revenue-payments/config"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migration commands",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Run: func(_ *cobra.Command, _ []string) {
		withMigrator(func(m *migrate.Migrate) {
			if err := m.Up(); err != nil {
				if errors.Is(err, migrate.ErrNoChange) {
					logrus.Info("Database is already up to date")
					return
				}
				logrus.WithError(err).Fatal("Migration up failed")
			}
			logrus.Info("Migrations applied")
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Run: func(_ *cobra.Command, _ []string) {
		withMigrator(func(m *migrate.Migrate) {
			if err := m.Steps(-1); err != nil {
				logrus.WithError(err).Fatal("Migration down failed")
			}
			logrus.Info("Last migration rolled back")
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	Run: func(_ *cobra.Command, _ []string) {
		withMigrator(func(m *migrate.Migrate) {
			version, dirty, err := m.Version()
			if err != nil {
				if errors.Is(err, migrate.ErrNilVersion) {
					logrus.Info("No migrations have been applied yet")
					return
				}
				logrus.WithError(err).Fatal("Failed to read migration version")
			}
			logrus.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("Migration version")
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)

	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "migrations", "Directory holding the migration files")
}

func withMigrator(fn func(m *migrate.Migrate)) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	m, err := migrate.New("file://"+migrationsPath, "mysql://"+cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize migrator")
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logrus.WithFields(logrus.Fields{"source_err": sourceErr, "db_err": dbErr}).Warn("Failed to close migrator")
		}
	}()

	fn(m)
}
