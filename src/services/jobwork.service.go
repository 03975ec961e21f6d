package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"factory-ledger/src/metrics"
	"factory-ledger/src/models"
	"factory-ledger/src/repositories"
)

// ============ REQUEST STRUCTS ============

type ProcessSpec struct {
	ProcessName        string
	SequenceNumber     int
	WorkType           models.WorkType
	VendorName         string
	Department         string
	RatePerUnit        decimal.Decimal
	ExpectedScrap      decimal.Decimal
	ExpectedCompletion *time.Time
}

type CreateJobWorkRequest struct {
	CustomerName   string
	ItemID         uint
	Kind           models.JobWorkKind
	ProcessName    string // single_process only
	WorkType       models.WorkType
	Department     string
	RatePerUnit    decimal.Decimal
	OutputItemID   *uint
	ExpectedReturn *time.Time
	Notes          string
	CreatedBy      string
	Processes      []ProcessSpec // multi_process only
}

type BatchSelection struct {
	BatchID  uint
	Quantity decimal.Decimal
}

type IssueMaterialsRequest struct {
	JobWorkID  uint
	Quantity   decimal.Decimal  // FIFO draw when no selections given
	Selections []BatchSelection // explicit batch picks
	ChangedBy  string
	Notes      string
}

type ReceiveReturnRequest struct {
	JobWorkID      uint
	JobWorkBatchID uint
	Finished       decimal.Decimal
	Scrap          decimal.Decimal
	Unused         decimal.Decimal
	ChangedBy      string
	Notes          string
}

type ProcessStatusRequest struct {
	JobWorkID uint
	ProcessID uint
	NewStatus models.ProcessStatus
	Reason    string
	ChangedBy string
}

type CompleteProcessRequest struct {
	JobWorkID uint
	ProcessID uint
	Output    decimal.Decimal
	Scrap     decimal.Decimal
	ChangedBy string
	Notes     string
}

// ============ JOB WORK SERVICE ============

// JobWorkService orchestrates job work orders on top of the stock service's
// ledger primitives. It shares the stock service's transaction helpers so a
// whole issue, return or process completion commits atomically.
type JobWorkService struct {
	DB      *gorm.DB
	Jobs    *repositories.JobWorkRepository
	Batches *repositories.BatchRepository
	Stock   *StockService
	Log     *zap.Logger

	Now func() time.Time
}

const jobNumberAttempts = 5

func (s *JobWorkService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *JobWorkService) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// ============ PUBLIC METHODS ============

// CreateJobWork - create an order with a generated JOB-<year>-NNNN number.
// Number generation races are resolved by the unique index plus retry.
func (s *JobWorkService) CreateJobWork(req CreateJobWorkRequest) (*models.JobWork, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	var job *models.JobWork
	var lastErr error

	for attempt := 0; attempt < jobNumberAttempts; attempt++ {
		job = nil
		lastErr = s.DB.Transaction(func(tx *gorm.DB) error {
			number, err := s.Jobs.NextJobNumber(tx, now.Year())
			if err != nil {
				return err
			}

			workType := req.WorkType
			if workType == "" {
				workType = models.WorkTypeOutsourced
			}
			created := models.JobWork{
				JobNumber:      number,
				CustomerName:   req.CustomerName,
				ItemID:         req.ItemID,
				Kind:           req.Kind,
				ProcessName:    models.NormalizeProcess(req.ProcessName),
				WorkType:       workType,
				Department:     req.Department,
				RatePerUnit:    req.RatePerUnit,
				OutputItemID:   req.OutputItemID,
				Status:         models.JobStatusPlanned,
				ExpectedReturn: req.ExpectedReturn,
				Notes:          req.Notes,
				CreatedBy:      req.CreatedBy,
			}
			if err := tx.Create(&created).Error; err != nil {
				return err
			}

			for _, spec := range req.Processes {
				pw := spec.WorkType
				if pw == "" {
					pw = models.WorkTypeOutsourced
				}
				process := models.JobWorkProcess{
					JobWorkID:          created.ID,
					ProcessName:        models.NormalizeProcess(spec.ProcessName),
					SequenceNumber:     spec.SequenceNumber,
					Status:             models.ProcessPending,
					ExpectedScrap:      spec.ExpectedScrap,
					WorkType:           pw,
					VendorName:         spec.VendorName,
					Department:         spec.Department,
					RatePerUnit:        spec.RatePerUnit,
					ExpectedCompletion: spec.ExpectedCompletion,
					History:            models.StatusHistory{},
				}
				if err := tx.Create(&process).Error; err != nil {
					return err
				}
				created.Processes = append(created.Processes, process)
			}

			job = &created
			return nil
		})

		if lastErr == nil {
			metrics.JobWorksCreated.WithLabelValues(string(req.Kind)).Inc()
			s.logger().Info("job work created",
				zap.String("job_number", job.JobNumber),
				zap.String("kind", string(req.Kind)))
			return job, nil
		}
		if !errors.Is(lastErr, gorm.ErrDuplicatedKey) {
			return nil, lastErr
		}
	}
	return nil, &models.ConcurrencyConflictError{Resource: "job_number", Err: lastErr}
}

// IssueMaterials - move raw stock into the job's entry process WIP slot and
// open one reconciliation record per batch drawn.
func (s *JobWorkService) IssueMaterials(req IssueMaterialsRequest) ([]models.JobWorkBatch, error) {
	now := s.now()
	var issued []models.JobWorkBatch

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		job, err := s.Jobs.GetForUpdate(tx, req.JobWorkID)
		if err != nil {
			return err
		}
		if job.Status == models.JobStatusCompleted {
			return &models.SequenceIntegrityError{Detail: "job work is already completed"}
		}

		process, entryProcess, err := entryProcessOf(job)
		if err != nil {
			return err
		}

		item, err := s.Batches.GetItemForUpdate(tx, job.ItemID)
		if err != nil {
			return err
		}

		plan, err := s.planIssue(tx, job, item, req, now)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for i := range plan {
			p := &plan[i]
			if err := p.batch.MoveToWIP(p.quantity, entryProcess); err != nil {
				return err
			}
			if err := item.MoveToWIP(p.quantity, entryProcess); err != nil {
				return err
			}
			if err := tx.Save(p.batch).Error; err != nil {
				return err
			}

			jwb := models.JobWorkBatch{
				JobWorkID:      job.ID,
				InputBatchID:   p.batch.ID,
				QuantityIssued: p.quantity,
				ProcessName:    entryProcess,
				Status:         models.JobBatchIssued,
				IssuedDate:     now,
			}
			if err := tx.Create(&jwb).Error; err != nil {
				return err
			}
			issued = append(issued, jwb)

			if err := s.Stock.recordMovement(tx, p.batch, models.StateRaw,
				models.WIPState(entryProcess), p.quantity, entryProcess,
				models.RefTypeJobWork, &job.ID, job.JobNumber,
				req.ChangedBy, req.Notes); err != nil {
				return err
			}
			total = total.Add(p.quantity)
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}

		job.QuantitySent = job.QuantitySent.Add(total)
		if job.Status == models.JobStatusPlanned {
			job.Status = models.JobStatusMaterialsSent
			sent := now
			job.SentDate = &sent
		}
		if process != nil {
			process.QuantityInput = process.QuantityInput.Add(total)
			if err := tx.Save(process).Error; err != nil {
				return err
			}
		}
		return tx.Save(job).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger().Info("materials issued",
		zap.Uint("job_work_id", req.JobWorkID),
		zap.Int("batches", len(issued)))
	return issued, nil
}

// ReceiveReturn - reconcile a (possibly partial) return against one issuance.
// Finished and scrap leave the WIP slot for their terminal states, unused
// goes back to raw. Over-returns are rejected before anything moves.
func (s *JobWorkService) ReceiveReturn(req ReceiveReturnRequest) error {
	now := s.now()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		job, err := s.Jobs.GetForUpdate(tx, req.JobWorkID)
		if err != nil {
			return err
		}

		jwb, err := findJobBatch(job, req.JobWorkBatchID)
		if err != nil {
			return err
		}

		item, err := s.Batches.GetItemForUpdate(tx, job.ItemID)
		if err != nil {
			return err
		}
		batch, err := s.Batches.GetBatchForUpdate(tx, jwb.InputBatchID)
		if err != nil {
			return err
		}

		if err := jwb.ApplyReturn(req.Finished, req.Scrap, req.Unused, now); err != nil {
			metrics.TransitionFailures.WithLabelValues("over_return").Inc()
			return err
		}

		process := jwb.ProcessName
		settled := req.Finished.Add(req.Scrap)
		if settled.IsPositive() {
			if err := s.settleOutput(tx, job, jwb, item, batch,
				req.Finished, req.Scrap, process, req.ChangedBy, req.Notes); err != nil {
				return err
			}
		}
		if req.Unused.IsPositive() {
			if err := batch.ReturnUnused(req.Unused, process); err != nil {
				return err
			}
			if err := item.ReturnUnused(req.Unused, process); err != nil {
				return err
			}
			if err := s.Stock.recordMovement(tx, batch, models.WIPState(process),
				models.StateRaw, req.Unused, process, models.RefTypeJobWork,
				&job.ID, job.JobNumber, req.ChangedBy, req.Notes); err != nil {
				return err
			}
		}

		if err := tx.Save(batch).Error; err != nil {
			return err
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		if err := tx.Save(jwb).Error; err != nil {
			return err
		}

		job.QuantityReceived = job.QuantityReceived.Add(req.Finished)
		rollJobStatus(job, now)
		return tx.Save(job).Error
	})
	if err != nil {
		return err
	}

	s.logger().Info("job work return received",
		zap.Uint("job_work_id", req.JobWorkID),
		zap.String("finished", req.Finished.String()),
		zap.String("scrap", req.Scrap.String()),
		zap.String("unused", req.Unused.String()))
	return nil
}

// AdvanceProcessStatus - start, hold or resume a process. A process can only
// start once every earlier process in the chain has completed.
func (s *JobWorkService) AdvanceProcessStatus(req ProcessStatusRequest) error {
	if req.NewStatus == models.ProcessCompleted {
		return &models.SequenceIntegrityError{
			ProcessID: req.ProcessID,
			Detail:    "completion must report output and scrap quantities",
		}
	}
	now := s.now()

	return s.DB.Transaction(func(tx *gorm.DB) error {
		job, err := s.Jobs.GetForUpdate(tx, req.JobWorkID)
		if err != nil {
			return err
		}
		process, err := findProcess(job, req.ProcessID)
		if err != nil {
			return err
		}

		if req.NewStatus == models.ProcessInProgress && process.Status == models.ProcessPending {
			ready, err := s.Jobs.PriorProcessesCompleted(tx, job.ID, process.SequenceNumber)
			if err != nil {
				return err
			}
			if !ready {
				return &models.SequenceIntegrityError{
					ProcessID: process.ID,
					Detail:    fmt.Sprintf("process %d cannot start before earlier processes complete", process.SequenceNumber),
				}
			}
		}

		if err := process.UpdateStatus(req.NewStatus, req.ChangedBy, req.Reason, now); err != nil {
			return err
		}
		if err := tx.Save(process).Error; err != nil {
			return err
		}

		switch req.NewStatus {
		case models.ProcessInProgress:
			if job.Status == models.JobStatusMaterialsSent || job.Status == models.JobStatusOnHold {
				job.Status = models.JobStatusInProgress
			}
		case models.ProcessOnHold:
			job.Status = models.JobStatusOnHold
		}
		return tx.Save(job).Error
	})
}

// CompleteProcess - close one process with its output and scrap counts. Scrap
// leaves the flow immediately; on an intermediate process the output becomes
// the next process's input, on the final process it settles into finished
// stock, materializing an output batch when the job maps to an output item.
func (s *JobWorkService) CompleteProcess(req CompleteProcessRequest) error {
	if req.Output.IsNegative() || req.Scrap.IsNegative() {
		return errNonPositiveRequest
	}
	now := s.now()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		job, err := s.Jobs.GetForUpdate(tx, req.JobWorkID)
		if err != nil {
			return err
		}
		process, err := findProcess(job, req.ProcessID)
		if err != nil {
			return err
		}
		if process.Status != models.ProcessInProgress {
			return &models.SequenceIntegrityError{
				ProcessID: process.ID,
				Detail:    fmt.Sprintf("cannot complete a process in status %s", process.Status),
			}
		}

		attempted := req.Output.Add(req.Scrap)
		if process.QuantityInput.LessThan(attempted) {
			metrics.TransitionFailures.WithLabelValues("conservation").Inc()
			return &models.ConservationError{
				Process:   process.ProcessName,
				Available: process.QuantityInput,
				Attempted: attempted,
			}
		}

		next, err := s.Jobs.NextProcess(tx, job.ID, process.SequenceNumber)
		if err != nil {
			return err
		}

		item, err := s.Batches.GetItemForUpdate(tx, job.ItemID)
		if err != nil {
			return err
		}

		moved, err := s.propagate(tx, job, process, next, item, req, now)
		if err != nil {
			return err
		}

		process.QuantityOutput = req.Output
		process.QuantityScrap = req.Scrap
		if err := process.UpdateStatus(models.ProcessCompleted, req.ChangedBy, req.Notes, now); err != nil {
			return err
		}
		if err := tx.Save(process).Error; err != nil {
			return err
		}

		if next != nil {
			next.QuantityInput = next.QuantityInput.Add(moved)
			if err := tx.Save(next).Error; err != nil {
				return err
			}
		} else {
			job.QuantityReceived = job.QuantityReceived.Add(req.Output)
		}
		if err := tx.Save(item).Error; err != nil {
			return err
		}

		rollJobStatus(job, now)
		return tx.Save(job).Error
	})
	if err != nil {
		return err
	}

	s.logger().Info("process completed",
		zap.Uint("job_work_id", req.JobWorkID),
		zap.Uint("process_id", req.ProcessID),
		zap.String("output", req.Output.String()),
		zap.String("scrap", req.Scrap.String()))
	return nil
}

// GetJobWork - full order with processes and reconciliation records.
func (s *JobWorkService) GetJobWork(jobWorkID uint) (*models.JobWork, error) {
	return s.Jobs.Get(jobWorkID)
}

// ListJobWorks - paged listing with optional status filter.
func (s *JobWorkService) ListJobWorks(status models.JobWorkStatus, page, limit int) ([]models.JobWork, int64, error) {
	return s.Jobs.List(status, page, limit)
}

// GetDelayedProcesses - processes past their expected completion date.
func (s *JobWorkService) GetDelayedProcesses() ([]models.JobWorkProcess, error) {
	return s.Jobs.GetDelayed(s.now())
}

// GetVendorSummary - per-customer job work totals.
func (s *JobWorkService) GetVendorSummary() ([]map[string]interface{}, error) {
	return s.Jobs.GetVendorSummary()
}

// GetJobWorkTrace - every movement recorded against one job work.
func (s *JobWorkService) GetJobWorkTrace(jobWorkID uint) ([]models.BatchMovement, error) {
	return s.Batches.GetMovementsByRef(models.RefTypeJobWork, jobWorkID)
}

// ============ INTERNAL HELPERS ============

func validateCreateRequest(req CreateJobWorkRequest) error {
	if req.CustomerName == "" {
		return errors.New("customer_name is required")
	}
	if req.ItemID == 0 {
		return errors.New("item_id is required")
	}
	switch req.Kind {
	case models.JobWorkSingleProcess:
		if req.ProcessName == "" {
			return errors.New("process_name is required for single process job works")
		}
		if len(req.Processes) > 0 {
			return errors.New("single process job works cannot carry a process chain")
		}
	case models.JobWorkMultiProcess:
		if len(req.Processes) == 0 {
			return errors.New("multi process job works need at least one process")
		}
		seen := make(map[int]bool, len(req.Processes))
		for _, p := range req.Processes {
			if p.ProcessName == "" {
				return errors.New("every process needs a name")
			}
			if p.SequenceNumber <= 0 {
				return &models.SequenceIntegrityError{Detail: "sequence numbers must be positive"}
			}
			if seen[p.SequenceNumber] {
				return &models.SequenceIntegrityError{
					Detail: fmt.Sprintf("duplicate sequence number %d", p.SequenceNumber),
				}
			}
			seen[p.SequenceNumber] = true
		}
	default:
		return errors.New("kind must be single_process or multi_process")
	}
	return nil
}

// entryProcessOf resolves the process name material is issued into, and for
// multi-process jobs the first process row.
func entryProcessOf(job *models.JobWork) (*models.JobWorkProcess, string, error) {
	if job.Kind == models.JobWorkSingleProcess {
		return nil, job.ProcessName, nil
	}
	if len(job.Processes) == 0 {
		return nil, "", &models.SequenceIntegrityError{Detail: "job work has no processes"}
	}
	first := &job.Processes[0]
	for i := range job.Processes {
		if job.Processes[i].SequenceNumber < first.SequenceNumber {
			first = &job.Processes[i]
		}
	}
	return first, first.ProcessName, nil
}

func findProcess(job *models.JobWork, processID uint) (*models.JobWorkProcess, error) {
	for i := range job.Processes {
		if job.Processes[i].ID == processID {
			return &job.Processes[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func findJobBatch(job *models.JobWork, jobWorkBatchID uint) (*models.JobWorkBatch, error) {
	for i := range job.Batches {
		if job.Batches[i].ID == jobWorkBatchID {
			return &job.Batches[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// planIssue resolves an issue request into per-batch draws, checking each
// batch's raw stock and its usability gate.
func (s *JobWorkService) planIssue(tx *gorm.DB, job *models.JobWork,
	item *models.Item, req IssueMaterialsRequest, now time.Time) ([]fifoDraw, error) {

	if len(req.Selections) > 0 {
		ids := make([]uint, 0, len(req.Selections))
		want := make(map[uint]decimal.Decimal, len(req.Selections))
		for _, sel := range req.Selections {
			if !sel.Quantity.IsPositive() {
				return nil, errNonPositiveRequest
			}
			ids = append(ids, sel.BatchID)
			want[sel.BatchID] = sel.Quantity
		}
		batches, err := s.Batches.GetBatchesForUpdate(tx, ids)
		if err != nil {
			return nil, err
		}
		if len(batches) != len(ids) {
			return nil, gorm.ErrRecordNotFound
		}

		plan := make([]fifoDraw, 0, len(batches))
		for i := range batches {
			b := &batches[i]
			if b.ItemID != job.ItemID {
				return nil, fmt.Errorf("batch %s does not belong to item %d", b.BatchCode, job.ItemID)
			}
			if err := b.UsableForIssue(now); err != nil {
				return nil, err
			}
			quantity := want[b.ID]
			if b.QtyRaw.LessThan(quantity) {
				return nil, &models.InsufficientStockError{
					State: models.StateRaw, Available: b.QtyRaw, Requested: quantity,
				}
			}
			plan = append(plan, fifoDraw{batch: b, quantity: quantity})
		}
		return plan, nil
	}

	if !req.Quantity.IsPositive() {
		return nil, errNonPositiveRequest
	}
	batches, err := s.Batches.SelectFIFO(tx, job.ItemID)
	if err != nil {
		return nil, err
	}
	usable := batches[:0]
	for i := range batches {
		if batches[i].UsableForIssue(now) == nil {
			usable = append(usable, batches[i])
		}
	}
	return planFIFODraw(usable, req.Quantity)
}

// settleOutput credits finished and scrap out of a WIP slot. When the job
// maps to a different output item, the finished portion materializes as a
// production batch of that item instead of finished stock on the input batch.
func (s *JobWorkService) settleOutput(tx *gorm.DB, job *models.JobWork,
	jwb *models.JobWorkBatch, item *models.Item, batch *models.ItemBatch,
	finished, scrap decimal.Decimal, process, actor, notes string) error {

	producesNewItem := job.OutputItemID != nil && *job.OutputItemID != job.ItemID

	if producesNewItem && finished.IsPositive() {
		if err := batch.ConsumeWIP(finished, process); err != nil {
			return err
		}
		if err := item.ConsumeWIP(finished, process); err != nil {
			return err
		}
		output, err := s.materializeOutputBatch(tx, job, batch, finished, process, actor)
		if err != nil {
			return err
		}
		jwb.OutputBatchID = &output.ID
		if err := s.Stock.recordMovement(tx, output, "", models.StateFinished,
			finished, process, models.RefTypeProduction, &job.ID, job.JobNumber,
			actor, notes); err != nil {
			return err
		}
		if scrap.IsPositive() {
			if err := batch.ReceiveFromWIP(decimal.Zero, scrap, process); err != nil {
				return err
			}
			if err := item.ReceiveFromWIP(decimal.Zero, scrap, process); err != nil {
				return err
			}
		}
	} else {
		if err := batch.ReceiveFromWIP(finished, scrap, process); err != nil {
			return err
		}
		if err := item.ReceiveFromWIP(finished, scrap, process); err != nil {
			return err
		}
		if finished.IsPositive() {
			if err := s.Stock.recordMovement(tx, batch, models.WIPState(process),
				models.StateFinished, finished, process, models.RefTypeJobWork,
				&job.ID, job.JobNumber, actor, notes); err != nil {
				return err
			}
		}
	}
	if scrap.IsPositive() {
		if err := s.Stock.recordMovement(tx, batch, models.WIPState(process),
			models.StateScrap, scrap, process, models.RefTypeJobWork,
			&job.ID, job.JobNumber, actor, notes); err != nil {
			return err
		}
	}
	return nil
}

// materializeOutputBatch creates (or tops up) the output item's production
// batch for one input batch, coded <input batch>-<process>. Output batches
// start in pending inspection.
func (s *JobWorkService) materializeOutputBatch(tx *gorm.DB, job *models.JobWork,
	input *models.ItemBatch, finished decimal.Decimal, process, actor string) (*models.ItemBatch, error) {

	outputItem, err := s.Batches.GetItemForUpdate(tx, *job.OutputItemID)
	if err != nil {
		return nil, err
	}

	code := fmt.Sprintf("%s-%s", input.BatchCode, models.NormalizeProcess(process))
	var output models.ItemBatch
	err = tx.Where("item_id = ? AND batch_code = ?", outputItem.ID, code).
		First(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		output = models.ItemBatch{
			ItemID:           outputItem.ID,
			BatchCode:        code,
			StorageLocation:  input.StorageLocation,
			SourceType:       models.SourceProduction,
			SourceRefID:      &job.ID,
			InspectionStatus: models.InspectionPending,
			IsActive:         true,
			CreatedBy:        actor,
		}
		if err := tx.Create(&output).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	output.QtyFinished = output.QtyFinished.Add(finished)
	outputItem.QtyFinished = outputItem.QtyFinished.Add(finished)
	if err := tx.Save(&output).Error; err != nil {
		return nil, err
	}
	if err := tx.Save(outputItem).Error; err != nil {
		return nil, err
	}
	return &output, nil
}

// propagate moves each open issuance out of the completed process slot: scrap
// is drawn off first in issue order, the rest flows to the next process or,
// on the final process, settles as finished output.
func (s *JobWorkService) propagate(tx *gorm.DB, job *models.JobWork,
	process, next *models.JobWorkProcess, item *models.Item,
	req CompleteProcessRequest, now time.Time) (decimal.Decimal, error) {

	scrapLeft := req.Scrap
	outputLeft := req.Output
	moved := decimal.Zero

	for i := range job.Batches {
		jwb := &job.Batches[i]
		if jwb.ProcessName != process.ProcessName || jwb.Status == models.JobBatchCompleted {
			continue
		}
		held := jwb.RemainingIssued()
		if !held.IsPositive() {
			continue
		}

		scrapShare := decimal.Min(scrapLeft, held)
		scrapLeft = scrapLeft.Sub(scrapShare)
		outputShare := decimal.Min(outputLeft, held.Sub(scrapShare))
		outputLeft = outputLeft.Sub(outputShare)
		if !scrapShare.IsPositive() && !outputShare.IsPositive() {
			continue
		}

		batch, err := s.Batches.GetBatchForUpdate(tx, jwb.InputBatchID)
		if err != nil {
			return moved, err
		}

		if next != nil {
			if scrapShare.IsPositive() {
				if err := batch.ReceiveFromWIP(decimal.Zero, scrapShare, process.ProcessName); err != nil {
					return moved, err
				}
				if err := item.ReceiveFromWIP(decimal.Zero, scrapShare, process.ProcessName); err != nil {
					return moved, err
				}
				if err := jwb.ApplyReturn(decimal.Zero, scrapShare, decimal.Zero, now); err != nil {
					return moved, err
				}
				if err := s.Stock.recordMovement(tx, batch, models.WIPState(process.ProcessName),
					models.StateScrap, scrapShare, process.ProcessName,
					models.RefTypeJobWork, &job.ID, job.JobNumber,
					req.ChangedBy, req.Notes); err != nil {
					return moved, err
				}
			}
			if outputShare.IsPositive() {
				if err := batch.MoveBetweenProcesses(outputShare, process.ProcessName, next.ProcessName); err != nil {
					return moved, err
				}
				if err := item.MoveBetweenProcesses(outputShare, process.ProcessName, next.ProcessName); err != nil {
					return moved, err
				}
				if err := s.Stock.recordMovement(tx, batch, models.WIPState(process.ProcessName),
					models.WIPState(next.ProcessName), outputShare, next.ProcessName,
					models.RefTypeJobWork, &job.ID, job.JobNumber,
					req.ChangedBy, req.Notes); err != nil {
					return moved, err
				}
				jwb.ProcessName = next.ProcessName
				moved = moved.Add(outputShare)
			}
		} else {
			if err := jwb.ApplyReturn(outputShare, scrapShare, decimal.Zero, now); err != nil {
				return moved, err
			}
			if err := s.settleOutput(tx, job, jwb, item, batch,
				outputShare, scrapShare, process.ProcessName,
				req.ChangedBy, req.Notes); err != nil {
				return moved, err
			}
		}

		if err := tx.Save(batch).Error; err != nil {
			return moved, err
		}
		if err := tx.Save(jwb).Error; err != nil {
			return moved, err
		}
	}

	if scrapLeft.IsPositive() || outputLeft.IsPositive() {
		return moved, &models.ConservationError{
			Process:   process.ProcessName,
			Available: req.Output.Add(req.Scrap).Sub(scrapLeft).Sub(outputLeft),
			Attempted: req.Output.Add(req.Scrap),
		}
	}
	return moved, nil
}

// rollJobStatus derives the order status from its reconciliation records and
// process chain.
func rollJobStatus(job *models.JobWork, now time.Time) {
	if len(job.Batches) == 0 {
		return
	}

	outstanding := decimal.Zero
	for i := range job.Batches {
		outstanding = outstanding.Add(job.Batches[i].RemainingIssued())
	}

	processesDone := true
	for i := range job.Processes {
		if job.Processes[i].Status != models.ProcessCompleted {
			processesDone = false
			break
		}
	}

	if outstanding.IsZero() && processesDone {
		job.Status = models.JobStatusCompleted
		received := now
		job.ReceivedDate = &received
		return
	}
	if job.QuantityReceived.IsPositive() && job.Kind == models.JobWorkSingleProcess {
		job.Status = models.JobStatusPartialReceived
	}
}
