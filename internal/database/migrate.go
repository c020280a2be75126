package database

import (
	"fmt"

	"github.com/crowdeval/crowdeval/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const migrateBatchSize = 500

// MigrateBackup copies every session recorded in src, with its frames,
// zone samples and status snapshots, into dst. Each session is copied in
// its own transaction. Sessions already present in dst are skipped. It
// returns the number of sessions copied.
func MigrateBackup(src, dst *gorm.DB, log zerolog.Logger) (int, error) {
	var sessions []model.Session
	if err := src.Unscoped().Preload("Zones").Preload("Exits").Find(&sessions).Error; err != nil {
		return 0, fmt.Errorf("failed to read sessions: %w", err)
	}

	copied := 0
	for _, s := range sessions {
		var existing int64
		if err := dst.Unscoped().Model(&model.Session{}).Where("id = ?", s.ID).Count(&existing).Error; err != nil {
			return copied, fmt.Errorf("failed to check session %s: %w", s.ID, err)
		}
		if existing > 0 {
			log.Info().Str("session", s.ID).Msg("Session already migrated, skipping")
			continue
		}

		for i := range s.Zones {
			s.Zones[i].ID = 0
		}
		for i := range s.Exits {
			s.Exits[i].ID = 0
		}

		err := dst.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&s).Error; err != nil {
				return fmt.Errorf("sessions: %w", err)
			}
			if err := migrateTable(src, tx, s.ID, "frame_records", func(r *model.FrameRecord) { r.ID = 0 }, log); err != nil {
				return err
			}
			if err := migrateTable(src, tx, s.ID, "zone_samples", func(r *model.ZoneSample) { r.ID = 0 }, log); err != nil {
				return err
			}
			return migrateTable(src, tx, s.ID, "status_snapshots", func(r *model.StatusSnapshot) { r.ID = 0 }, log)
		})
		if err != nil {
			return copied, fmt.Errorf("failed to migrate session %s: %w", s.ID, err)
		}
		copied++
	}
	return copied, nil
}

// migrateTable copies the rows of one session. reset clears the
// auto-increment key so dst assigns its own.
func migrateTable[M any](src, tx *gorm.DB, sessionID, table string, reset func(*M), log zerolog.Logger) error {
	var rows []M
	if err := src.Where("session_id = ?", sessionID).Find(&rows).Error; err != nil {
		return fmt.Errorf("%s: %w", table, err)
	}
	log.Debug().Int("count", len(rows)).Str("table", table).Str("session", sessionID).Msg("Found records")
	if len(rows) == 0 {
		return nil
	}

	for i := range rows {
		reset(&rows[i])
	}
	if err := tx.CreateInBatches(rows, migrateBatchSize).Error; err != nil {
		return fmt.Errorf("%s: %w", table, err)
	}
	return nil
}
