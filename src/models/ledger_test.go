package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factory-ledger/src/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ============ TEST SCENARIO 1: STATE LEDGER FLOW ============
func TestStateLedgerFlow(t *testing.T) {
	t.Run("SC1: Full lifecycle of a steel rod batch", func(t *testing.T) {
		q := models.StateQuantities{QtyRaw: dec("100")}

		require.NoError(t, q.MoveToWIP(dec("100"), "cutting"))
		assert.True(t, q.QtyRaw.IsZero())
		assert.True(t, q.WIPFor("cutting").Equal(dec("100")))

		require.NoError(t, q.ReceiveFromWIP(dec("85"), dec("10"), "cutting"))
		assert.True(t, q.QtyFinished.Equal(dec("85")))
		assert.True(t, q.QtyScrap.Equal(dec("10")))
		assert.True(t, q.WIPFor("cutting").Equal(dec("5")))

		require.NoError(t, q.ReturnUnused(dec("5"), "cutting"))
		assert.True(t, q.QtyRaw.Equal(dec("5")))
		assert.True(t, q.WIPFor("cutting").IsZero())

		// Nothing was created or destroyed along the way.
		assert.True(t, q.TotalQuantity().Equal(dec("100")))
	})

	t.Run("SC2: Over-draw leaves the ledger untouched", func(t *testing.T) {
		q := models.StateQuantities{QtyRaw: dec("50")}
		before := q.TotalQuantity()

		err := q.MoveToWIP(dec("60"), "cutting")
		var insufficient *models.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, models.StateRaw, insufficient.State)
		assert.True(t, insufficient.Available.Equal(dec("50")))

		assert.True(t, q.QtyRaw.Equal(dec("50")))
		assert.True(t, q.TotalQuantity().Equal(before))
		assert.True(t, q.TotalWIP().IsZero())
	})

	t.Run("SC3: Conservation rejects finished+scrap over WIP", func(t *testing.T) {
		q := models.StateQuantities{QtyRaw: dec("100")}
		require.NoError(t, q.MoveToWIP(dec("100"), "welding"))

		err := q.ReceiveFromWIP(dec("95"), dec("10"), "welding")
		var conservation *models.ConservationError
		require.ErrorAs(t, err, &conservation)
		assert.Equal(t, "welding", conservation.Process)

		// Partial effect is forbidden.
		assert.True(t, q.WIPFor("welding").Equal(dec("100")))
		assert.True(t, q.QtyFinished.IsZero())
		assert.True(t, q.QtyScrap.IsZero())
	})

	t.Run("SC4: WIP moves between processes", func(t *testing.T) {
		q := models.StateQuantities{QtyRaw: dec("100")}
		require.NoError(t, q.MoveToWIP(dec("100"), "cutting"))
		require.NoError(t, q.MoveBetweenProcesses(dec("90"), "cutting", "painting"))

		assert.True(t, q.WIPFor("cutting").Equal(dec("10")))
		assert.True(t, q.WIPFor("painting").Equal(dec("90")))
		assert.True(t, q.TotalWIP().Equal(dec("100")))
	})

	t.Run("SC5: Inspection release feeds raw", func(t *testing.T) {
		q := models.StateQuantities{QtyInspection: dec("30")}
		require.NoError(t, q.ReleaseInspection(dec("30")))
		assert.True(t, q.QtyInspection.IsZero())
		assert.True(t, q.QtyRaw.Equal(dec("30")))

		err := q.ReleaseInspection(dec("1"))
		var insufficient *models.InsufficientStockError
		assert.ErrorAs(t, err, &insufficient)
	})

	t.Run("SC6: Custom process names get their own slot", func(t *testing.T) {
		q := models.StateQuantities{QtyRaw: dec("10")}
		require.NoError(t, q.MoveToWIP(dec("10"), "Laser Engraving"))
		assert.True(t, q.WIPFor("laser_engraving").Equal(dec("10")))
		assert.Equal(t, "wip_laser_engraving", models.WIPState("Laser Engraving"))
	})

	t.Run("SC7: Zinc plating normalizes to zinc", func(t *testing.T) {
		assert.Equal(t, "zinc", models.NormalizeProcess("Zinc Plating"))
		assert.Equal(t, "zinc", models.NormalizeProcess("zinc"))
	})
}

// ============ TEST SCENARIO 2: BATCH AVAILABILITY ============
func TestBatchAvailability(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("SC1: Failed inspection excludes inspection quantity", func(t *testing.T) {
		b := models.ItemBatch{
			InspectionStatus: models.InspectionFailed,
			StateQuantities: models.StateQuantities{
				QtyRaw:        dec("40"),
				QtyInspection: dec("10"),
			},
		}
		assert.True(t, b.AvailableQuantity().Equal(dec("40")))

		b.InspectionStatus = models.InspectionPassed
		assert.True(t, b.AvailableQuantity().Equal(dec("50")))
	})

	t.Run("SC2: Expired batch is blocked from issue", func(t *testing.T) {
		expiry := now.AddDate(0, 0, -1)
		b := models.ItemBatch{BatchCode: "B-OLD", ExpiryDate: &expiry}

		err := b.UsableForIssue(now)
		var blocked *models.ExpiredOrRejectedBatchError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, "B-OLD", blocked.BatchCode)
	})

	t.Run("SC3: Quarantined batch is blocked from issue", func(t *testing.T) {
		b := models.ItemBatch{BatchCode: "B-Q", InspectionStatus: models.InspectionQuarantine}
		assert.Error(t, b.UsableForIssue(now))

		b.InspectionStatus = models.InspectionPassed
		assert.NoError(t, b.UsableForIssue(now))
	})

	t.Run("SC4: Item availability excludes pending inspection", func(t *testing.T) {
		// The item aggregate cannot see per-batch inspection outcomes, so it
		// stays conservative: all inspection stock is unavailable, while a
		// pending batch still counts its inspection quantity as available.
		item := models.Item{
			StateQuantities: models.StateQuantities{
				QtyRaw:        dec("40"),
				QtyInspection: dec("10"),
			},
		}
		assert.True(t, item.AvailableQuantity().Equal(dec("40")))

		batch := models.ItemBatch{
			InspectionStatus: models.InspectionPending,
			StateQuantities: models.StateQuantities{
				QtyRaw:        dec("40"),
				QtyInspection: dec("10"),
			},
		}
		assert.True(t, batch.AvailableQuantity().Equal(dec("50")))
	})

	t.Run("SC5: Item below minimum stock", func(t *testing.T) {
		item := models.Item{
			MinimumStock:    dec("50"),
			StateQuantities: models.StateQuantities{QtyRaw: dec("30")},
		}
		assert.True(t, item.BelowMinimum())

		item.QtyRaw = dec("80")
		assert.False(t, item.BelowMinimum())
	})
}

// ============ TEST SCENARIO 3: JOB WORK RECONCILIATION ============
func TestJobWorkBatchReconciliation(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	t.Run("SC1: Partial then final return", func(t *testing.T) {
		jwb := models.JobWorkBatch{QuantityIssued: dec("100"), ProcessName: "cutting"}

		require.NoError(t, jwb.ApplyReturn(dec("40"), dec("5"), decimal.Zero, now))
		assert.Equal(t, models.JobBatchPartial, jwb.Status)
		assert.True(t, jwb.RemainingIssued().Equal(dec("55")))

		require.NoError(t, jwb.ApplyReturn(dec("45"), dec("5"), dec("5"), now))
		assert.Equal(t, models.JobBatchCompleted, jwb.Status)
		assert.True(t, jwb.RemainingIssued().IsZero())
		require.NotNil(t, jwb.ReceivedDate)
	})

	t.Run("SC2: Over-return is rejected without effect", func(t *testing.T) {
		jwb := models.JobWorkBatch{ID: 7, QuantityIssued: dec("100")}
		require.NoError(t, jwb.ApplyReturn(dec("60"), decimal.Zero, decimal.Zero, now))

		err := jwb.ApplyReturn(dec("41"), decimal.Zero, decimal.Zero, now)
		var over *models.OverReturnError
		require.ErrorAs(t, err, &over)
		assert.Equal(t, uint(7), over.JobWorkBatchID)
		assert.True(t, over.Remaining.Equal(dec("40")))
		assert.True(t, over.Attempted.Equal(dec("41")))

		assert.True(t, jwb.QuantityFinished.Equal(dec("60")))
		assert.Equal(t, models.JobBatchPartial, jwb.Status)
	})

	t.Run("SC3: Completed record is immutable", func(t *testing.T) {
		jwb := models.JobWorkBatch{QuantityIssued: dec("10")}
		require.NoError(t, jwb.ApplyReturn(dec("10"), decimal.Zero, decimal.Zero, now))
		require.Equal(t, models.JobBatchCompleted, jwb.Status)

		err := jwb.ApplyReturn(dec("1"), decimal.Zero, decimal.Zero, now)
		var over *models.OverReturnError
		assert.ErrorAs(t, err, &over)
	})

	t.Run("SC4: Yield percentage", func(t *testing.T) {
		jwb := models.JobWorkBatch{
			QuantityIssued:   dec("200"),
			QuantityFinished: dec("170"),
		}
		assert.InDelta(t, 85.0, jwb.YieldPercentage(), 0.001)
	})
}

// ============ TEST SCENARIO 4: PROCESS STATUS MACHINE ============
func TestProcessStatusMachine(t *testing.T) {
	now := time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)

	t.Run("SC1: Pending to in_progress to completed", func(t *testing.T) {
		p := models.JobWorkProcess{Status: models.ProcessPending}

		require.NoError(t, p.UpdateStatus(models.ProcessInProgress, "operator1", "", now))
		require.NotNil(t, p.StartedAt)

		later := now.Add(2 * time.Hour)
		require.NoError(t, p.UpdateStatus(models.ProcessCompleted, "operator1", "", later))
		require.NotNil(t, p.CompletedAt)
		assert.Equal(t, later, *p.CompletedAt)

		require.Len(t, p.History, 2)
		assert.Equal(t, models.ProcessPending, p.History[0].OldStatus)
		assert.Equal(t, models.ProcessInProgress, p.History[0].NewStatus)
		assert.Equal(t, "operator1", p.History[0].Actor)
	})

	t.Run("SC2: On hold and resume keeps original start time", func(t *testing.T) {
		p := models.JobWorkProcess{Status: models.ProcessPending}
		require.NoError(t, p.UpdateStatus(models.ProcessInProgress, "op", "", now))
		started := *p.StartedAt

		require.NoError(t, p.UpdateStatus(models.ProcessOnHold, "op", "machine down", now.Add(time.Hour)))
		assert.Equal(t, "machine down", p.OnHoldReason)
		require.NotNil(t, p.OnHoldSince)

		require.NoError(t, p.UpdateStatus(models.ProcessInProgress, "op", "", now.Add(3*time.Hour)))
		assert.Nil(t, p.OnHoldSince)
		assert.Empty(t, p.OnHoldReason)
		assert.Equal(t, started, *p.StartedAt)
	})

	t.Run("SC3: Invalid transitions are rejected", func(t *testing.T) {
		p := models.JobWorkProcess{ID: 3, Status: models.ProcessPending}

		err := p.UpdateStatus(models.ProcessCompleted, "op", "", now)
		var sequence *models.SequenceIntegrityError
		require.ErrorAs(t, err, &sequence)
		assert.Equal(t, uint(3), sequence.ProcessID)
		assert.Equal(t, models.ProcessPending, p.Status)
		assert.Empty(t, p.History)

		p.Status = models.ProcessCompleted
		assert.Error(t, p.UpdateStatus(models.ProcessInProgress, "op", "", now))
	})

	t.Run("SC4: Completion percentage clamps", func(t *testing.T) {
		p := models.JobWorkProcess{
			QuantityInput:  dec("100"),
			QuantityOutput: dec("70"),
			QuantityScrap:  dec("10"),
		}
		assert.InDelta(t, 80.0, p.CompletionPercentage(), 0.001)

		p.QuantityOutput = dec("120")
		assert.InDelta(t, 100.0, p.CompletionPercentage(), 0.001)

		p.QuantityInput = decimal.Zero
		assert.Zero(t, p.CompletionPercentage())
	})

	t.Run("SC5: Delay detection", func(t *testing.T) {
		due := now.AddDate(0, 0, -2)
		p := models.JobWorkProcess{Status: models.ProcessInProgress, ExpectedCompletion: &due}
		assert.True(t, p.IsDelayed(now))

		p.Status = models.ProcessCompleted
		assert.False(t, p.IsDelayed(now))
	})
}

// ============ TEST SCENARIO 5: JOB NUMBERS ============
func TestJobNumberFormat(t *testing.T) {
	assert.Equal(t, "JOB-2025-0001", models.FormatJobNumber(2025, 1))
	assert.Equal(t, "JOB-2025-0042", models.FormatJobNumber(2025, 42))
	assert.Equal(t, "JOB-2026-1234", models.FormatJobNumber(2026, 1234))
}
