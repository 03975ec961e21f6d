package services_test

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"factory-ledger/src/models"
	"factory-ledger/src/repositories"
	"factory-ledger/src/services"
)

var (
	testDB         *gorm.DB
	stockService   *services.StockService
	jobWorkService *services.JobWorkService
)

func setupTestDB(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		panic("failed to connect database: " + err.Error())
	}

	db.AutoMigrate(
		&models.Item{},
		&models.ItemBatch{},
		&models.BatchMovement{},
		&models.JobWork{},
		&models.JobWorkProcess{},
		&models.JobWorkBatch{},
	)
	return db
}

func cleanupTestDB(db *gorm.DB) {
	db.Exec("TRUNCATE items, item_batches, batch_movements, job_works, job_work_processes, job_work_batches RESTART IDENTITY CASCADE")
}

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		fmt.Println("TEST_DATABASE_DSN not set, skipping material flow integration tests")
		os.Exit(0)
	}

	fmt.Println("Setting up test database...")
	testDB = setupTestDB(dsn)
	cleanupTestDB(testDB)

	batchRepo := &repositories.BatchRepository{DB: testDB}
	jobRepo := &repositories.JobWorkRepository{DB: testDB}
	stockService = &services.StockService{DB: testDB, Batches: batchRepo}
	jobWorkService = &services.JobWorkService{
		DB:      testDB,
		Jobs:    jobRepo,
		Batches: batchRepo,
		Stock:   stockService,
	}

	code := m.Run()

	cleanupTestDB(testDB)
	os.Exit(code)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func createTestItem(t *testing.T, code string) *models.Item {
	t.Helper()
	item := models.Item{
		Code:          code,
		Name:          "Test " + code,
		UnitOfMeasure: "kg",
		ItemType:      models.ItemTypeMaterial,
		IsActive:      true,
	}
	require.NoError(t, testDB.Create(&item).Error)
	return &item
}

func receiveBatch(t *testing.T, itemID uint, code, quantity string, manufactured time.Time) *models.ItemBatch {
	t.Helper()
	batch, err := stockService.ReceiveStock(services.ReceiveStockRequest{
		ItemID:          itemID,
		BatchCode:       code,
		Quantity:        dec(quantity),
		ManufactureDate: &manufactured,
		ChangedBy:       "tester",
	})
	require.NoError(t, err)
	return batch
}

func reloadBatch(t *testing.T, batchID uint) *models.ItemBatch {
	t.Helper()
	var batch models.ItemBatch
	require.NoError(t, testDB.First(&batch, batchID).Error)
	return &batch
}

func reloadItem(t *testing.T, itemID uint) *models.Item {
	t.Helper()
	var item models.Item
	require.NoError(t, testDB.First(&item, itemID).Error)
	return &item
}

// ============ TEST SCENARIO 1: RECEIPTS AND FIFO DRAW ============
func TestStockReceiptAndFIFO(t *testing.T) {
	item := createTestItem(t, "RM-FIFO")
	older := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	oldBatch := receiveBatch(t, item.ID, "B-OLD", "60", older)
	newBatch := receiveBatch(t, item.ID, "B-NEW", "60", newer)

	t.Run("SC1: FIFO draws the older batch first", func(t *testing.T) {
		allocations, err := stockService.MoveToWIP(services.MoveToWIPRequest{
			ItemID:    item.ID,
			Quantity:  dec("80"),
			Process:   "cutting",
			ChangedBy: "tester",
		})
		require.NoError(t, err)
		require.Len(t, allocations, 2)

		assert.Equal(t, oldBatch.ID, allocations[0].BatchID)
		assert.True(t, allocations[0].Quantity.Equal(dec("60")))
		assert.Equal(t, newBatch.ID, allocations[1].BatchID)
		assert.True(t, allocations[1].Quantity.Equal(dec("20")))

		got := reloadBatch(t, oldBatch.ID)
		assert.True(t, got.QtyRaw.IsZero())
		assert.True(t, got.WIPFor("cutting").Equal(dec("60")))

		aggregate := reloadItem(t, item.ID)
		assert.True(t, aggregate.QtyRaw.Equal(dec("40")))
		assert.True(t, aggregate.WIPFor("cutting").Equal(dec("80")))
	})

	t.Run("SC2: Over-draw fails with no partial effect", func(t *testing.T) {
		_, err := stockService.MoveToWIP(services.MoveToWIPRequest{
			ItemID:    item.ID,
			Quantity:  dec("100"),
			Process:   "cutting",
			ChangedBy: "tester",
		})
		var insufficient *models.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)

		aggregate := reloadItem(t, item.ID)
		assert.True(t, aggregate.QtyRaw.Equal(dec("40")))
		assert.True(t, aggregate.WIPFor("cutting").Equal(dec("80")))
	})

	t.Run("SC3: Every transition leaves a movement trail", func(t *testing.T) {
		movements, err := stockService.GetBatchTrace(oldBatch.ID)
		require.NoError(t, err)
		require.NotEmpty(t, movements)

		// Newest first: the WIP move, then the receipt.
		assert.Equal(t, "wip_cutting", movements[0].ToState)
		assert.Equal(t, models.StateRaw, movements[0].FromState)
		last := movements[len(movements)-1]
		assert.Equal(t, models.RefTypeReceipt, last.RefType)
		assert.Empty(t, last.FromState)
	})
}

// ============ TEST SCENARIO 2: SINGLE PROCESS JOB WORK ============
func TestSingleProcessJobWork(t *testing.T) {
	item := createTestItem(t, "RM-JW")
	manufactured := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	receiveBatch(t, item.ID, "B-JW-1", "100", manufactured)

	job, err := jobWorkService.CreateJobWork(services.CreateJobWorkRequest{
		CustomerName: "Sharma Fabricators",
		ItemID:       item.ID,
		Kind:         models.JobWorkSingleProcess,
		ProcessName:  "bending",
		RatePerUnit:  dec("12.50"),
		CreatedBy:    "tester",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^JOB-\d{4}-\d{4}$`, job.JobNumber)

	issued, err := jobWorkService.IssueMaterials(services.IssueMaterialsRequest{
		JobWorkID: job.ID,
		Quantity:  dec("100"),
		ChangedBy: "tester",
	})
	require.NoError(t, err)
	require.Len(t, issued, 1)
	jwbID := issued[0].ID

	t.Run("SC1: Issue moves raw into the process slot", func(t *testing.T) {
		aggregate := reloadItem(t, item.ID)
		assert.True(t, aggregate.QtyRaw.IsZero())
		assert.True(t, aggregate.WIPFor("bending").Equal(dec("100")))

		reloaded, err := jobWorkService.GetJobWork(job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusMaterialsSent, reloaded.Status)
		assert.True(t, reloaded.QuantitySent.Equal(dec("100")))
	})

	t.Run("SC2: Partial return", func(t *testing.T) {
		err := jobWorkService.ReceiveReturn(services.ReceiveReturnRequest{
			JobWorkID:      job.ID,
			JobWorkBatchID: jwbID,
			Finished:       dec("40"),
			Scrap:          dec("5"),
			ChangedBy:      "tester",
		})
		require.NoError(t, err)

		reloaded, err := jobWorkService.GetJobWork(job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPartialReceived, reloaded.Status)
		assert.True(t, reloaded.QuantityReceived.Equal(dec("40")))

		aggregate := reloadItem(t, item.ID)
		assert.True(t, aggregate.QtyFinished.Equal(dec("40")))
		assert.True(t, aggregate.QtyScrap.Equal(dec("5")))
		assert.True(t, aggregate.WIPFor("bending").Equal(dec("55")))
	})

	t.Run("SC3: Over-return is rejected", func(t *testing.T) {
		err := jobWorkService.ReceiveReturn(services.ReceiveReturnRequest{
			JobWorkID:      job.ID,
			JobWorkBatchID: jwbID,
			Finished:       dec("56"),
			ChangedBy:      "tester",
		})
		var over *models.OverReturnError
		require.ErrorAs(t, err, &over)
		assert.True(t, over.Remaining.Equal(dec("55")))

		aggregate := reloadItem(t, item.ID)
		assert.True(t, aggregate.WIPFor("bending").Equal(dec("55")))
	})

	t.Run("SC4: Final return with unused completes the job", func(t *testing.T) {
		err := jobWorkService.ReceiveReturn(services.ReceiveReturnRequest{
			JobWorkID:      job.ID,
			JobWorkBatchID: jwbID,
			Finished:       dec("50"),
			Unused:         dec("5"),
			ChangedBy:      "tester",
		})
		require.NoError(t, err)

		reloaded, err := jobWorkService.GetJobWork(job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, reloaded.Status)
		require.NotNil(t, reloaded.ReceivedDate)

		aggregate := reloadItem(t, item.ID)
		assert.True(t, aggregate.QtyRaw.Equal(dec("5")))
		assert.True(t, aggregate.QtyFinished.Equal(dec("90")))
		assert.True(t, aggregate.QtyScrap.Equal(dec("5")))
		assert.True(t, aggregate.TotalWIP().IsZero())
		assert.True(t, aggregate.TotalQuantity().Equal(dec("100")))
	})
}

// ============ TEST SCENARIO 3: MULTI PROCESS PROPAGATION ============
func TestMultiProcessPropagation(t *testing.T) {
	item := createTestItem(t, "RM-MP")
	manufactured := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	batch := receiveBatch(t, item.ID, "B-MP-1", "100", manufactured)

	job, err := jobWorkService.CreateJobWork(services.CreateJobWorkRequest{
		CustomerName: "Patel Coaters",
		ItemID:       item.ID,
		Kind:         models.JobWorkMultiProcess,
		CreatedBy:    "tester",
		Processes: []services.ProcessSpec{
			{ProcessName: "cutting", SequenceNumber: 1},
			{ProcessName: "painting", SequenceNumber: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, job.Processes, 2)
	cuttingID := job.Processes[0].ID
	paintingID := job.Processes[1].ID

	_, err = jobWorkService.IssueMaterials(services.IssueMaterialsRequest{
		JobWorkID: job.ID,
		Quantity:  dec("100"),
		ChangedBy: "tester",
	})
	require.NoError(t, err)

	t.Run("SC1: Second process cannot start first", func(t *testing.T) {
		err := jobWorkService.AdvanceProcessStatus(services.ProcessStatusRequest{
			JobWorkID: job.ID,
			ProcessID: paintingID,
			NewStatus: models.ProcessInProgress,
			ChangedBy: "tester",
		})
		var sequence *models.SequenceIntegrityError
		require.ErrorAs(t, err, &sequence)
	})

	t.Run("SC2: Completing cutting feeds painting", func(t *testing.T) {
		require.NoError(t, jobWorkService.AdvanceProcessStatus(services.ProcessStatusRequest{
			JobWorkID: job.ID,
			ProcessID: cuttingID,
			NewStatus: models.ProcessInProgress,
			ChangedBy: "tester",
		}))
		require.NoError(t, jobWorkService.CompleteProcess(services.CompleteProcessRequest{
			JobWorkID: job.ID,
			ProcessID: cuttingID,
			Output:    dec("90"),
			Scrap:     dec("10"),
			ChangedBy: "tester",
		}))

		got := reloadBatch(t, batch.ID)
		assert.True(t, got.WIPFor("cutting").IsZero())
		assert.True(t, got.WIPFor("painting").Equal(dec("90")))
		assert.True(t, got.QtyScrap.Equal(dec("10")))

		reloaded, err := jobWorkService.GetJobWork(job.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.Processes[1].QuantityInput.Equal(dec("90")))
		assert.Equal(t, models.ProcessCompleted, reloaded.Processes[0].Status)
	})

	t.Run("SC3: Completing cutting with more than input fails", func(t *testing.T) {
		require.NoError(t, jobWorkService.AdvanceProcessStatus(services.ProcessStatusRequest{
			JobWorkID: job.ID,
			ProcessID: paintingID,
			NewStatus: models.ProcessInProgress,
			ChangedBy: "tester",
		}))

		err := jobWorkService.CompleteProcess(services.CompleteProcessRequest{
			JobWorkID: job.ID,
			ProcessID: paintingID,
			Output:    dec("95"),
			ChangedBy: "tester",
		})
		var conservation *models.ConservationError
		require.ErrorAs(t, err, &conservation)
		assert.True(t, conservation.Available.Equal(dec("90")))
	})

	t.Run("SC4: Final process settles finished and scrap", func(t *testing.T) {
		require.NoError(t, jobWorkService.CompleteProcess(services.CompleteProcessRequest{
			JobWorkID: job.ID,
			ProcessID: paintingID,
			Output:    dec("85"),
			Scrap:     dec("5"),
			ChangedBy: "tester",
		}))

		got := reloadBatch(t, batch.ID)
		assert.True(t, got.TotalWIP().IsZero())
		assert.True(t, got.QtyFinished.Equal(dec("85")))
		assert.True(t, got.QtyScrap.Equal(dec("15")))
		assert.True(t, got.TotalQuantity().Equal(dec("100")))

		reloaded, err := jobWorkService.GetJobWork(job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCompleted, reloaded.Status)
		assert.True(t, reloaded.QuantityReceived.Equal(dec("85")))
	})
}

// ============ TEST SCENARIO 4: STEEL ROD LIFECYCLE ============
func TestSteelRodLifecycle(t *testing.T) {
	item := createTestItem(t, "RM-ROD-12MM")
	manufactured := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	batch := receiveBatch(t, item.ID, "ROD-LOT-1", "100", manufactured)

	allocations, err := stockService.MoveToWIP(services.MoveToWIPRequest{
		ItemID:    item.ID,
		BatchID:   &batch.ID,
		Quantity:  dec("100"),
		Process:   "cutting",
		ChangedBy: "tester",
	})
	require.NoError(t, err)
	require.Len(t, allocations, 1)

	require.NoError(t, stockService.ReceiveFromWIP(services.ReceiveFromWIPRequest{
		ItemID:    item.ID,
		BatchID:   batch.ID,
		Process:   "cutting",
		Finished:  dec("85"),
		Scrap:     dec("10"),
		ChangedBy: "tester",
	}))
	require.NoError(t, stockService.ReturnUnused(services.ReturnUnusedRequest{
		ItemID:    item.ID,
		BatchID:   batch.ID,
		Quantity:  dec("5"),
		Process:   "cutting",
		ChangedBy: "tester",
	}))

	got := reloadBatch(t, batch.ID)
	assert.True(t, got.QtyRaw.Equal(dec("5")))
	assert.True(t, got.QtyFinished.Equal(dec("85")))
	assert.True(t, got.QtyScrap.Equal(dec("10")))
	assert.True(t, got.TotalWIP().IsZero())
	assert.True(t, got.TotalQuantity().Equal(dec("100")))

	aggregate := reloadItem(t, item.ID)
	assert.True(t, aggregate.QtyRaw.Equal(dec("5")))
	assert.True(t, aggregate.QtyFinished.Equal(dec("85")))
	assert.True(t, aggregate.QtyScrap.Equal(dec("10")))
	assert.True(t, aggregate.TotalQuantity().Equal(dec("100")))
}

// ============ TEST SCENARIO 5: ITEM/BATCH PAIRING GUARD ============
func TestBatchItemPairingGuard(t *testing.T) {
	itemA := createTestItem(t, "RM-PAIR-A")
	itemB := createTestItem(t, "RM-PAIR-B")
	manufactured := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	receiveBatch(t, itemA.ID, "B-PAIR-A", "50", manufactured)
	batchB := receiveBatch(t, itemB.ID, "B-PAIR-B", "50", manufactured)

	t.Run("SC1: MoveToWIP rejects a foreign batch", func(t *testing.T) {
		_, err := stockService.MoveToWIP(services.MoveToWIPRequest{
			ItemID:    itemA.ID,
			BatchID:   &batchB.ID,
			Quantity:  dec("10"),
			Process:   "cutting",
			ChangedBy: "tester",
		})
		require.Error(t, err)

		// Neither item moved anything.
		a := reloadItem(t, itemA.ID)
		assert.True(t, a.QtyRaw.Equal(dec("50")))
		assert.True(t, a.TotalWIP().IsZero())
		b := reloadBatch(t, batchB.ID)
		assert.True(t, b.QtyRaw.Equal(dec("50")))
	})

	t.Run("SC2: Return and receive paths reject the same pairing", func(t *testing.T) {
		err := stockService.ReceiveFromWIP(services.ReceiveFromWIPRequest{
			ItemID:    itemA.ID,
			BatchID:   batchB.ID,
			Process:   "cutting",
			Finished:  dec("1"),
			ChangedBy: "tester",
		})
		require.Error(t, err)

		err = stockService.ReturnUnused(services.ReturnUnusedRequest{
			ItemID:    itemA.ID,
			BatchID:   batchB.ID,
			Quantity:  dec("1"),
			Process:   "cutting",
			ChangedBy: "tester",
		})
		require.Error(t, err)

		err = stockService.MoveBetweenProcesses(services.MoveBetweenProcessesRequest{
			ItemID:      itemA.ID,
			BatchID:     batchB.ID,
			Quantity:    dec("1"),
			FromProcess: "cutting",
			ToProcess:   "welding",
			ChangedBy:   "tester",
		})
		require.Error(t, err)
	})
}

// ============ TEST SCENARIO 6: EXPLICIT SELECTIONS & ORDER INDEPENDENCE ============
func TestIssueWithExplicitSelections(t *testing.T) {
	manufactured := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	// Two identical item setups, issued with the same selections in opposite
	// order; the final state must not depend on selection order.
	type setup struct {
		item   *models.Item
		first  *models.ItemBatch
		second *models.ItemBatch
		job    *models.JobWork
	}
	build := func(code string) setup {
		item := createTestItem(t, code)
		first := receiveBatch(t, item.ID, code+"-B1", "40", manufactured)
		second := receiveBatch(t, item.ID, code+"-B2", "60", manufactured.AddDate(0, 1, 0))
		job, err := jobWorkService.CreateJobWork(services.CreateJobWorkRequest{
			CustomerName: "Order Independence Vendor",
			ItemID:       item.ID,
			Kind:         models.JobWorkSingleProcess,
			ProcessName:  "machining",
			CreatedBy:    "tester",
		})
		require.NoError(t, err)
		return setup{item: item, first: first, second: second, job: job}
	}

	forward := build("RM-ORD-F")
	reverse := build("RM-ORD-R")

	_, err := jobWorkService.IssueMaterials(services.IssueMaterialsRequest{
		JobWorkID: forward.job.ID,
		Selections: []services.BatchSelection{
			{BatchID: forward.first.ID, Quantity: dec("40")},
			{BatchID: forward.second.ID, Quantity: dec("20")},
		},
		ChangedBy: "tester",
	})
	require.NoError(t, err)

	_, err = jobWorkService.IssueMaterials(services.IssueMaterialsRequest{
		JobWorkID: reverse.job.ID,
		Selections: []services.BatchSelection{
			{BatchID: reverse.second.ID, Quantity: dec("20")},
			{BatchID: reverse.first.ID, Quantity: dec("40")},
		},
		ChangedBy: "tester",
	})
	require.NoError(t, err)

	t.Run("SC1: Final state is order independent", func(t *testing.T) {
		for _, s := range []setup{forward, reverse} {
			aggregate := reloadItem(t, s.item.ID)
			assert.True(t, aggregate.QtyRaw.Equal(dec("40")))
			assert.True(t, aggregate.WIPFor("machining").Equal(dec("60")))

			b1 := reloadBatch(t, s.first.ID)
			assert.True(t, b1.QtyRaw.IsZero())
			assert.True(t, b1.WIPFor("machining").Equal(dec("40")))
			b2 := reloadBatch(t, s.second.ID)
			assert.True(t, b2.QtyRaw.Equal(dec("40")))
			assert.True(t, b2.WIPFor("machining").Equal(dec("20")))
		}
	})

	t.Run("SC2: Quarantined batch cannot be selected", func(t *testing.T) {
		item := createTestItem(t, "RM-ORD-Q")
		blocked := receiveBatch(t, item.ID, "RM-ORD-Q-B1", "30", manufactured)
		require.NoError(t, stockService.RejectInspection(services.InspectionRequest{
			BatchID:    blocked.ID,
			Quarantine: true,
			ChangedBy:  "tester",
		}))

		job, err := jobWorkService.CreateJobWork(services.CreateJobWorkRequest{
			CustomerName: "Order Independence Vendor",
			ItemID:       item.ID,
			Kind:         models.JobWorkSingleProcess,
			ProcessName:  "machining",
			CreatedBy:    "tester",
		})
		require.NoError(t, err)

		_, err = jobWorkService.IssueMaterials(services.IssueMaterialsRequest{
			JobWorkID: job.ID,
			Selections: []services.BatchSelection{
				{BatchID: blocked.ID, Quantity: dec("10")},
			},
			ChangedBy: "tester",
		})
		var rejected *models.ExpiredOrRejectedBatchError
		require.ErrorAs(t, err, &rejected)
		assert.Equal(t, "RM-ORD-Q-B1", rejected.BatchCode)

		got := reloadBatch(t, blocked.ID)
		assert.True(t, got.QtyRaw.Equal(dec("30")))
		assert.True(t, got.TotalWIP().IsZero())
	})
}

// ============ TEST SCENARIO 7: INSPECTION RELEASE ============
func TestInspectionRelease(t *testing.T) {
	item := createTestItem(t, "RM-INSP")
	batch, err := stockService.ReceiveStock(services.ReceiveStockRequest{
		ItemID:             item.ID,
		BatchCode:          "B-INSP-1",
		Quantity:           dec("25"),
		RequiresInspection: true,
		ChangedBy:          "tester",
	})
	require.NoError(t, err)

	got := reloadBatch(t, batch.ID)
	assert.True(t, got.QtyInspection.Equal(dec("25")))
	assert.Equal(t, models.InspectionPending, got.InspectionStatus)

	require.NoError(t, stockService.PassInspection(services.InspectionRequest{
		BatchID:   batch.ID,
		ChangedBy: "tester",
	}))

	got = reloadBatch(t, batch.ID)
	assert.True(t, got.QtyInspection.IsZero())
	assert.True(t, got.QtyRaw.Equal(dec("25")))
	assert.Equal(t, models.InspectionPassed, got.InspectionStatus)

	aggregate := reloadItem(t, item.ID)
	assert.True(t, aggregate.QtyInspection.IsZero())
	assert.True(t, aggregate.QtyRaw.Equal(dec("25")))
}

// ============ TEST SCENARIO 8: CONCURRENT JOB NUMBERS ============
func TestConcurrentJobNumbers(t *testing.T) {
	item := createTestItem(t, "RM-CONC")

	const workers = 5
	var wg sync.WaitGroup
	numbers := make(chan string, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := jobWorkService.CreateJobWork(services.CreateJobWorkRequest{
				CustomerName: "Concurrent Vendor",
				ItemID:       item.ID,
				Kind:         models.JobWorkSingleProcess,
				ProcessName:  "welding",
				CreatedBy:    "tester",
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- job.JobNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}

	seen := make(map[string]bool)
	for number := range numbers {
		assert.False(t, seen[number], "duplicate job number %s", number)
		seen[number] = true
	}
	assert.Len(t, seen, workers)
}
