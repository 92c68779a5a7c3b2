package repository

import (
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haven-media/haven/database"
	"github.com/haven-media/haven/models"
)

// StatsRepository maintains per-table row counts so callers can read table
// cardinality without paying COUNT(*) per query.
type StatsRepository struct {
	DB *gorm.DB
}

// Ensure StatsRepository implements StatsRepositoryInterface
var _ StatsRepositoryInterface = (*StatsRepository)(nil)

// NewStatsRepository creates a new instance of StatsRepository
func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{DB: db}
}

// IncrementInTx adjusts the maintained counter inside the caller's
// transaction, creating the row on first use. delta may be negative.
func (r *StatsRepository) IncrementInTx(tx *gorm.DB, tableName string, delta int64) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"row_count": gorm.Expr("row_count + ?", delta)}),
	}).Create(&models.TableStat{TableName: tableName, RowCount: delta}).Error
	if err != nil {
		return fmt.Errorf("failed to adjust row count for %s by %d: %w", tableName, delta, err)
	}
	return nil
}

// RowCount returns the maintained counter for a table (0 if never written)
func (r *StatsRepository) RowCount(tableName string) (int64, error) {
	var stat models.TableStat
	err := r.DB.Where("table_name = ?", tableName).First(&stat).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read row count for %s: %w", tableName, err)
	}
	return stat.RowCount, nil
}

// Repair recomputes the counter from a real COUNT(*) when it is found at
// zero while the table is non-empty. Guards against counter/data divergence
// left by partial failures; intended to run once at startup.
func (r *StatsRepository) Repair(tableName string) error {
	counted, err := r.RowCount(tableName)
	if err != nil {
		return err
	}
	if counted != 0 {
		return nil
	}

	sqlDB, err := r.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB for stats repair: %w", err)
	}

	sqlStr, args, err := database.Builder.Select("COUNT(*)").From(tableName).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build count query for %s: %w", tableName, err)
	}

	var actual int64
	if err := sqlDB.QueryRow(sqlStr, args...).Scan(&actual); err != nil {
		return fmt.Errorf("failed to count rows of %s: %w", tableName, err)
	}
	if actual == 0 {
		return nil
	}

	log.Printf("stats: repairing row count for %s: counter was 0, table has %d rows", tableName, actual)
	err = r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "table_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"row_count": actual}),
	}).Create(&models.TableStat{TableName: tableName, RowCount: actual}).Error
	if err != nil {
		return fmt.Errorf("failed to write repaired row count for %s: %w", tableName, err)
	}
	return nil
}
