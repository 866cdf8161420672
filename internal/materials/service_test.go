package materials

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/dbtest"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"github.com/tepworks/tepcatalog/pkg/enums"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
)

type fakeMetrics struct {
	outcomes []string
}

func (f *fakeMetrics) IncMaterialName(outcome string) {
	f.outcomes = append(f.outcomes, outcome)
}

type fixture struct {
	svc     Service
	client  *db.Client
	metrics *fakeMetrics
	tepID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	m := &fakeMetrics{}
	svc, err := NewService(NewRepository(client.DB()), client, m, nil)
	require.NoError(t, err)
	return &fixture{svc: svc, client: client, metrics: m, tepID: seedTEPCode(t, client, "T1")}
}

func seedTEPCode(t *testing.T, client *db.Client, label string) int64 {
	t.Helper()
	customer := &models.Customer{CustomerName: "Customer " + label}
	require.NoError(t, client.DB().Omit("Parts").Create(customer).Error)
	require.NoError(t, client.DB().Create(&models.CustomerPart{CustomerID: customer.ID, Code: "P", Name: "Part"}).Error)
	tep := &models.TEPCode{CustomerID: customer.ID, PartCode: "P", TEPCode: label}
	require.NoError(t, client.DB().Create(tep).Error)
	return tep.ID
}

func (f *fixture) add(t *testing.T, partcode, name string) *CreateResult {
	t.Helper()
	res, err := f.svc.CreateOrGet(context.Background(), f.tepID, partcode, Defaults{Name: name, DimQty: 1})
	require.NoError(t, err)
	return res
}

func (f *fixture) names(t *testing.T) map[string]string {
	t.Helper()
	rows, err := f.svc.ListByTEPCode(context.Background(), f.tepID)
	require.NoError(t, err)
	out := map[string]string{}
	for _, row := range rows {
		out[row.MatPartcode] = row.MatPartname
	}
	return out
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestTapeScenario(t *testing.T) {
	f := newFixture(t)

	a := f.add(t, "P1", "Tape")
	assert.Equal(t, "Tape", a.Material.MatPartname)
	assert.Equal(t, naming.OutcomeBare, a.Outcome)

	b := f.add(t, "P2", "Tape")
	assert.Equal(t, "Tape 2", b.Material.MatPartname)
	assert.Equal(t, naming.OutcomeRenamed, b.Outcome)
	require.NotNil(t, b.Renamed)
	assert.Equal(t, a.Material.ID, b.Renamed.ID)
	assert.Equal(t, "Tape 1", b.Renamed.To)

	c := f.add(t, "P3", "Tape")
	assert.Equal(t, "Tape 3", c.Material.MatPartname)
	assert.Equal(t, naming.OutcomeNumbered, c.Outcome)

	assert.Equal(t, map[string]string{"P1": "Tape 1", "P2": "Tape 2", "P3": "Tape 3"}, f.names(t))
	assert.Equal(t, []string{"bare", "renamed", "numbered"}, f.metrics.outcomes)
}

func TestSequenceLawLeavesNoBareName(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 3; i++ {
		f.add(t, fmt.Sprintf("M%d", i), "TAPE")
	}
	names := f.names(t)
	got := []string{names["M1"], names["M2"], names["M3"]}
	sort.Strings(got)
	assert.Equal(t, []string{"TAPE 1", "TAPE 2", "TAPE 3"}, got)
}

func TestRenameKeepsIdentity(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, "P1", "Tape")
	f.add(t, "P2", "Tape")

	after, err := f.svc.Get(context.Background(), a.Material.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Material.ID, after.ID)
	assert.Equal(t, "P1", after.MatPartcode)
	assert.Equal(t, "Tape 1", after.MatPartname)
	assert.Equal(t, a.Material.MatMaker, after.MatMaker)
	assert.Equal(t, a.Material.Total, after.Total)
}

func TestNameCollisionIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.add(t, "P1", "TAPE")
	b := f.add(t, "P2", "tape")

	assert.Equal(t, "tape 2", b.Material.MatPartname)
	assert.Equal(t, "tape 1", f.names(t)["P1"])
}

func TestNamesStayUniqueUnderRandomInserts(t *testing.T) {
	f := newFixture(t)
	bases := []string{"Tape", "TAPE", "Glue", "Tape 1", "glue", "Screw"}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 40; i++ {
		f.add(t, fmt.Sprintf("M%03d", i), bases[rng.Intn(len(bases))])
	}

	seen := map[string]string{}
	for partcode, name := range f.names(t) {
		key := naming.NameKey(name)
		if other, dup := seen[key]; dup {
			t.Fatalf("name %q shared by %s and %s", name, other, partcode)
		}
		seen[key] = partcode
	}
}

func TestCreateOrGetReturnsExistingWithoutAllocating(t *testing.T) {
	f := newFixture(t)
	first := f.add(t, "P1", "Tape")

	again, err := f.svc.CreateOrGet(context.Background(), f.tepID, "P1", Defaults{Name: "Different"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Material.ID, again.Material.ID)
	assert.Equal(t, "Tape", again.Material.MatPartname)
	assert.Len(t, f.metrics.outcomes, 1)

	_, err = f.svc.Create(context.Background(), f.tepID, "P1", Defaults{Name: "Tape"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateOrGetCopiesMasterAndComputesTotal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.client.DB().Create(&models.MasterMaterial{
		MatPartcode: "TP-25", MatPartname: "Tape 25mm", MatMaker: "3M", Unit: enums.MaterialUnitMeter,
	}).Error)

	res, err := f.svc.CreateOrGet(context.Background(), f.tepID, "TP-25", Defaults{DimQty: 2.5})
	require.NoError(t, err)
	assert.Equal(t, "Tape 25mm", res.Material.MatPartname)
	assert.Equal(t, "3M", res.Material.MatMaker)
	assert.Equal(t, enums.MaterialUnitMeter, res.Material.Unit)
	assert.Equal(t, 10.0, res.Material.LossPercent)
	assert.Equal(t, 2.75, res.Material.Total)

	zero := 0.0
	res, err = f.svc.CreateOrGet(context.Background(), f.tepID, "X-1", Defaults{Name: "Spacer", DimQty: 3, LossPercent: &zero})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaker, res.Material.MatMaker)
	assert.Equal(t, enums.MaterialUnitPiece, res.Material.Unit)
	assert.Equal(t, 0.0, res.Material.LossPercent)
	assert.Equal(t, 3.0, res.Material.Total)
}

func TestCreateOrGetErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrGet(ctx, f.tepID, "NOPE", Defaults{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "unknown master without a name")

	_, err = f.svc.CreateOrGet(ctx, f.tepID+99, "P1", Defaults{Name: "Tape"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.CreateOrGet(ctx, f.tepID, " ", Defaults{Name: "Tape"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFailedInsertRollsBackRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "P1", "Tape")

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		plan, err := AllocateName(ctx, tx, f.tepID, "Tape", "P2")
		if err != nil {
			return err
		}
		require.NotNil(t, plan.Rename)
		// A concurrent writer already inserted P1; inserting it again must fail.
		return NewRepository(tx).Create(ctx, &models.Material{
			TEPCodeID: f.tepID, MatPartcode: "P1", MatPartname: plan.Name, MatMaker: "x", Unit: "pc",
		})
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
	assert.Equal(t, map[string]string{"P1": "Tape"}, f.names(t))
}

func TestAllocateNameIsStableWithoutInserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "P1", "Glue")

	for i := 0; i < 3; i++ {
		err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
			plan, err := AllocateName(ctx, tx, f.tepID, "Tape", "")
			if err != nil {
				return err
			}
			assert.Equal(t, "Tape", plan.Name)
			assert.Nil(t, plan.Rename)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestUpdateRecomputesTotalAndKeepsName(t *testing.T) {
	f := newFixture(t)
	res := f.add(t, "P1", "Tape")

	qty, loss := 4.0, 25.0
	kg := enums.MaterialUnitKilogram
	updated, err := f.svc.Update(context.Background(), res.Material.ID, UpdateInput{DimQty: &qty, LossPercent: &loss, Unit: &kg})
	require.NoError(t, err)
	assert.Equal(t, 5.0, updated.Total)
	assert.Equal(t, "Tape", updated.MatPartname)
	assert.Equal(t, enums.MaterialUnitKilogram, updated.Unit)

	bad := -1.0
	_, err = f.svc.Update(context.Background(), res.Material.ID, UpdateInput{DimQty: &bad})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestManualRenameRejectsCollision(t *testing.T) {
	f := newFixture(t)
	f.add(t, "P1", "Tape")
	glue := f.add(t, "P2", "Glue")

	_, err := f.svc.Rename(context.Background(), glue.Material.ID, "  tape ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	renamed, err := f.svc.Rename(context.Background(), glue.Material.ID, "Epoxy")
	require.NoError(t, err)
	assert.Equal(t, "Epoxy", renamed.MatPartname)
}

func TestRecomputeFixesDriftedTotals(t *testing.T) {
	f := newFixture(t)
	res := f.add(t, "P1", "Tape")
	f.add(t, "P2", "Glue")
	require.NoError(t, f.client.DB().Model(&models.Material{}).Where("id = ?", res.Material.ID).Update("total", 99).Error)

	out, err := f.svc.Recompute(context.Background(), f.tepID)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Checked)
	assert.Equal(t, 1, out.Updated)

	got, err := f.svc.Get(context.Background(), res.Material.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.1, got.Total)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	res := f.add(t, "P1", "Tape")
	require.NoError(t, f.svc.Delete(context.Background(), res.Material.ID))

	err := f.svc.Delete(context.Background(), res.Material.ID)
	var typed *pkgerrors.Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestUpdateDoesNotRestoreStaleName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.add(t, "P1", "Tape")

	// rename the line right after Update first reads it, as a concurrent
	// allocator would between that read and the write
	armed := true
	err := f.client.DB().Callback().Query().After("gorm:query").Register("test:concurrent_rename", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "materials" {
			return
		}
		armed = false
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE materials SET mat_partname = ? WHERE id = ?", "Tape 1", res.Material.ID)
	})
	require.NoError(t, err)

	qty := 3.0
	updated, err := f.svc.Update(ctx, res.Material.ID, UpdateInput{DimQty: &qty})
	require.NoError(t, err)
	assert.False(t, armed)
	assert.Equal(t, "Tape 1", updated.MatPartname)
	assert.Equal(t, map[string]string{"P1": "Tape 1"}, f.names(t))
	assert.InDelta(t, 3.3, updated.Total, 1e-9)
}

func TestQuantitiesOutsideColumnLimitsAreValidationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.add(t, "P1", "Tape")

	loss := 1000.0
	_, err := f.svc.Update(ctx, res.Material.ID, UpdateInput{LossPercent: &loss})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	huge := 9.5e9
	_, err = f.svc.Update(ctx, res.Material.ID, UpdateInput{DimQty: &huge})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Details(), "total")

	_, err = f.svc.CreateOrGet(ctx, f.tepID, "P2", Defaults{Name: "Glue", DimQty: 1e11})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	got, err := f.svc.Get(ctx, res.Material.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.DimQty)
}

func TestNumberedNameOverColumnWidthIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("x", naming.MaxNameLength)
	f.add(t, "P1", long)

	_, err := f.svc.CreateOrGet(ctx, f.tepID, "P2", Defaults{Name: long, DimQty: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]string{"P1": long}, f.names(t), "the bare line keeps its name")
}

func TestConcurrentInsertMapsToConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, "P1", "Tape")

	// another writer inserts the same partcode just before ours
	armed := true
	err := f.client.DB().Callback().Create().Before("gorm:create").Register("test:racing_insert", func(tx *gorm.DB) {
		row, ok := tx.Statement.Dest.(*models.Material)
		if !armed || !ok {
			return
		}
		armed = false
		tx.Session(&gorm.Session{NewDB: true}).Create(&models.Material{
			TEPCodeID: row.TEPCodeID, MatPartcode: row.MatPartcode, MatPartname: "Racer",
			MatMaker: DefaultMaker, Unit: enums.MaterialUnitPiece,
		})
	})
	require.NoError(t, err)

	_, err = f.svc.CreateOrGet(ctx, f.tepID, "P2", Defaults{Name: "Tape", DimQty: 1})
	require.Error(t, err)
	assert.False(t, armed)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, map[string]string{"P1": "Tape"}, f.names(t), "the rename rolls back with the insert")
}
