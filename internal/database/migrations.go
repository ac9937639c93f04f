package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/drinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const migrationSeedDefaultMenu = "2020-07-15_seed_default_menu"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func migrationsFor(options Options) []migrationDefinition {
	var migrations []migrationDefinition
	if options.SeedMenu {
		migrations = append(migrations, migrationDefinition{name: migrationSeedDefaultMenu, apply: seedDefaultMenu})
	}
	return migrations
}

func applyMigrations(db *gorm.DB, migrations []migrationDefinition, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		txErr := db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if txErr != nil {
			return txErr
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func defaultMenu() []drinks.Drink {
	return []drinks.Drink{
		{
			Title:  "water",
			Recipe: drinks.Recipe{{Color: "blue", Name: "water", Parts: 1}},
		},
	}
}

func seedDefaultMenu(db *gorm.DB) error {
	menu := defaultMenu()
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&menu).Error
}
