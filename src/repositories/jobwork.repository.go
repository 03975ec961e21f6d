package repositories

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"factory-ledger/src/models"
)

type JobWorkRepository struct {
	DB *gorm.DB
}

// NextJobNumber - compute the next JOB-<year>-NNNN number by scanning the
// highest existing number for the year. The unique index on job_number is the
// real guard; callers retry on duplicate key.
func (r *JobWorkRepository) NextJobNumber(tx *gorm.DB, year int) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", models.JobNumberPrefix, year)

	// Length before value keeps the ordering numeric once the zero-padded
	// sequence rolls past 9999.
	var latest string
	err := tx.Raw(
		"SELECT job_number FROM job_works WHERE job_number LIKE ? ORDER BY length(job_number) DESC, job_number DESC LIMIT 1",
		prefix+"%",
	).Scan(&latest).Error
	if err != nil {
		return "", err
	}

	sequence := 1
	if latest != "" {
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimPrefix(latest, prefix), "%d", &parsed); err == nil {
			sequence = parsed + 1
		}
	}
	return models.FormatJobNumber(year, sequence), nil
}

// GetForUpdate - lock the job work row with its processes and batches loaded.
func (r *JobWorkRepository) GetForUpdate(tx *gorm.DB, jobWorkID uint) (*models.JobWork, error) {
	var job models.JobWork
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "NOWAIT"}).
		First(&job, jobWorkID).Error
	if err != nil {
		return nil, lockErr("job_work", err)
	}

	if err := tx.
		Where("job_work_id = ?", job.ID).
		Order("sequence_number ASC").
		Find(&job.Processes).Error; err != nil {
		return nil, err
	}
	if err := tx.
		Where("job_work_id = ?", job.ID).
		Order("id ASC").
		Find(&job.Batches).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Get - load a job work with processes and batches, read only.
func (r *JobWorkRepository) Get(jobWorkID uint) (*models.JobWork, error) {
	var job models.JobWork
	err := r.DB.
		Preload("Item").
		Preload("Processes", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Preload("Batches").
		First(&job, jobWorkID).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List - job works filtered by status, newest first.
func (r *JobWorkRepository) List(status models.JobWorkStatus, page, limit int) ([]models.JobWork, int64, error) {
	var jobs []models.JobWork
	var total int64

	query := r.DB.Model(&models.JobWork{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// GetProcess - one process row by ID.
func (r *JobWorkRepository) GetProcess(tx *gorm.DB, processID uint) (*models.JobWorkProcess, error) {
	var process models.JobWorkProcess
	if err := tx.First(&process, processID).Error; err != nil {
		return nil, err
	}
	return &process, nil
}

// NextProcess - the process with the smallest sequence number greater than
// the given one, or nil when this is the final process.
func (r *JobWorkRepository) NextProcess(tx *gorm.DB, jobWorkID uint, sequenceNumber int) (*models.JobWorkProcess, error) {
	var process models.JobWorkProcess
	err := tx.
		Where("job_work_id = ? AND sequence_number > ?", jobWorkID, sequenceNumber).
		Order("sequence_number ASC").
		First(&process).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &process, nil
}

// PriorProcessesCompleted - whether every process before this sequence number
// has finished.
func (r *JobWorkRepository) PriorProcessesCompleted(tx *gorm.DB, jobWorkID uint, sequenceNumber int) (bool, error) {
	var pending int64
	err := tx.Model(&models.JobWorkProcess{}).
		Where("job_work_id = ? AND sequence_number < ? AND status <> ?",
			jobWorkID, sequenceNumber, models.ProcessCompleted).
		Count(&pending).Error
	if err != nil {
		return false, err
	}
	return pending == 0, nil
}

// GetDelayed - in-flight processes past their expected completion date.
func (r *JobWorkRepository) GetDelayed(now time.Time) ([]models.JobWorkProcess, error) {
	var processes []models.JobWorkProcess
	err := r.DB.
		Where("status <> ? AND expected_completion IS NOT NULL AND expected_completion < ?",
			models.ProcessCompleted, now).
		Order("expected_completion ASC").
		Find(&processes).Error
	return processes, err
}

// GetVendorSummary - per-customer totals across job works.
func (r *JobWorkRepository) GetVendorSummary() ([]map[string]interface{}, error) {
	type row struct {
		CustomerName  string
		JobCount      int64
		TotalSent     float64
		TotalReceived float64
	}
	var rows []row
	err := r.DB.Model(&models.JobWork{}).
		Select("customer_name, COUNT(*) AS job_count, COALESCE(SUM(quantity_sent),0) AS total_sent, COALESCE(SUM(quantity_received),0) AS total_received").
		Group("customer_name").
		Order("customer_name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		result = append(result, map[string]interface{}{
			"customer_name":  r.CustomerName,
			"job_count":      r.JobCount,
			"total_sent":     r.TotalSent,
			"total_received": r.TotalReceived,
		})
	}
	return result, nil
}
