// ABOUTME: Tests for the chart service over a real SQLite store
// ABOUTME: Covers upsert flow, history ordering, clinic merge, and restore

package chart

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjoekim64/dxchart/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return NewService(st, 5*time.Second)
}

func visit(userID, fileNo, date, complaint string) *store.ChartRecord {
	payload, _ := json.Marshal(map[string]string{"chiefComplaint": complaint})
	return &store.ChartRecord{
		UserID:    userID,
		FileNo:    fileNo,
		VisitDate: date,
		ChartType: store.ChartTypeNew,
		ChartData: payload,
	}
}

func TestSave_Upsert(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "headache"))
	require.NoError(t, err)

	second, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "headache, improving"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	recs, err := svc.ListByFileNo(ctx, "user-1", "F-001")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Contains(t, string(recs[0].ChartData), "improving")
}

func TestSave_NewVisitDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "headache"))
	require.NoError(t, err)
	_, err = svc.Save(ctx, visit("user-1", "F-001", "2026-08-15", "follow-up"))
	require.NoError(t, err)

	recs, err := svc.ListByFileNo(ctx, "user-1", "F-001")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2026-08-01", recs[0].VisitDate)
	assert.Equal(t, "2026-08-15", recs[1].VisitDate)
}

func TestSaveAsNew_AllowsDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "headache"))
	require.NoError(t, err)
	_, err = svc.SaveAsNew(ctx, visit("user-1", "F-001", "2026-08-01", "duplicate entry"))
	require.NoError(t, err)

	recs, err := svc.ListByFileNo(ctx, "user-1", "F-001")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestListByUser_Ordering(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "first"))
	require.NoError(t, err)
	_, err = svc.Save(ctx, visit("user-1", "F-002", "2026-07-01", "second"))
	require.NoError(t, err)

	recs, err := svc.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Most recently saved first, regardless of visit date
	assert.Equal(t, "F-002", recs[0].FileNo)
}

func TestGet_OwnerScoped(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "headache"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "user-2", saved.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec, err := svc.Get(ctx, "user-1", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, rec.ID)
}

func TestDelete_WithAndWithoutDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "first"))
	require.NoError(t, err)
	_, err = svc.Save(ctx, visit("user-1", "F-001", "2026-08-15", "second"))
	require.NoError(t, err)

	// Date narrows the delete to that visit
	require.NoError(t, svc.Delete(ctx, "user-1", "F-001", "2026-08-15"))

	recs, err := svc.ListByFileNo(ctx, "user-1", "F-001")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2026-08-01", recs[0].VisitDate)

	// Without a date, the oldest remaining visit goes
	require.NoError(t, svc.Delete(ctx, "user-1", "F-001", ""))

	recs, err = svc.ListByFileNo(ctx, "user-1", "F-001")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestClinicInfo_NilWhenUnset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	profile, err := svc.GetClinicInfo(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestClinicInfo_SaveAndMerge(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	name := "East Gate Clinic"
	therapist := "Dr. Kim"
	_, err := svc.SaveClinicInfo(ctx, "user-1", store.ClinicUpdate{
		ClinicName:    &name,
		TherapistName: &therapist,
	})
	require.NoError(t, err)

	renamed := "West Gate Clinic"
	profile, err := svc.SaveClinicInfo(ctx, "user-1", store.ClinicUpdate{
		ClinicName: &renamed,
	})
	require.NoError(t, err)
	assert.Equal(t, "West Gate Clinic", profile.ClinicName)
	assert.Equal(t, "Dr. Kim", profile.TherapistName)
}

func TestExportRestore_Idempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, visit("user-1", "F-001", "2026-08-01", "headache"))
	require.NoError(t, err)
	_, err = svc.Save(ctx, visit("user-1", "F-001", "2026-08-15", "follow-up"))
	require.NoError(t, err)

	doc, err := svc.Export(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, doc.Charts, 2)

	// Restore into a fresh account
	restored, err := svc.Restore(ctx, "user-2", doc)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	// And again: the upsert keeps it idempotent
	restored, err = svc.Restore(ctx, "user-2", doc)
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	recs, err := svc.ListByFileNo(ctx, "user-2", "F-001")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestRestore_NilDocument(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Restore(context.Background(), "user-1", nil)
	assert.ErrorIs(t, err, store.ErrValidation)
}
