package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/dbtest"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/pagination"
)

type fakeMetrics struct {
	appended int
	existing int
}

func (f *fakeMetrics) IncPartEntry(appended bool) {
	if appended {
		f.appended++
		return
	}
	f.existing++
}

func newTestService(t *testing.T) (Service, *db.Client, *fakeMetrics) {
	t.Helper()
	client := dbtest.Open(t)
	m := &fakeMetrics{}
	svc, err := NewService(NewRepository(client.DB()), client, m, nil)
	require.NoError(t, err)
	return svc, client, m
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestFindOrCreateIsExactAndIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.FindOrCreate(ctx, "  Acme   Corp ")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "Acme Corp", first.Customer.CustomerName)
	assert.Empty(t, first.Customer.Parts)

	again, err := svc.FindOrCreate(ctx, "Acme Corp")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Customer.ID, again.Customer.ID)

	other, err := svc.FindOrCreate(ctx, "acme corp")
	require.NoError(t, err)
	assert.True(t, other.Created, "lookup is case-sensitive")

	_, err = svc.FindOrCreate(ctx, "   ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "Acme")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "Acme")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestEnsurePartEntryNumbersCollidingNames(t *testing.T) {
	svc, _, m := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "Acme")
	require.NoError(t, err)
	id := c.Customer.ID

	res, err := svc.EnsurePartEntry(ctx, id, "P-100", "Bracket")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "Bracket", res.UsedName)

	res, err = svc.EnsurePartEntry(ctx, id, "P-200", "bracket")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "bracket 1", res.UsedName)

	res, err = svc.EnsurePartEntry(ctx, id, "P-300", "")
	require.NoError(t, err)
	assert.Equal(t, "P-300", res.UsedName, "blank name falls back to the code")

	res, err = svc.EnsurePartEntry(ctx, id, "P-100", "Something Else")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "Bracket", res.UsedName, "existing entries are never renamed")

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Parts, 3)
	assert.Equal(t, []string{"P-100", "P-200", "P-300"}, []string{got.Parts[0].Code, got.Parts[1].Code, got.Parts[2].Code})
	assert.Equal(t, 3, m.appended)
	assert.Equal(t, 1, m.existing)
}

func TestEnsurePartEntryScopesNamesPerCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.FindOrCreate(ctx, "Acme")
	require.NoError(t, err)
	b, err := svc.FindOrCreate(ctx, "Globex")
	require.NoError(t, err)

	_, err = svc.EnsurePartEntry(ctx, a.Customer.ID, "X1", "Housing")
	require.NoError(t, err)
	res, err := svc.EnsurePartEntry(ctx, b.Customer.ID, "X1", "Housing")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "Housing", res.UsedName)
}

func TestEnsurePartEntryComparesCodesCaseSensitively(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "Acme")
	require.NoError(t, err)

	_, err = svc.EnsurePartEntry(ctx, c.Customer.ID, "abc", "Widget")
	require.NoError(t, err)
	res, err := svc.EnsurePartEntry(ctx, c.Customer.ID, "ABC", "Widget")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "Widget 1", res.UsedName)
}

func TestEnsurePartEntryValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsurePartEntry(ctx, 42, "P-1", "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	c, err := svc.FindOrCreate(ctx, "Acme")
	require.NoError(t, err)
	_, err = svc.EnsurePartEntry(ctx, c.Customer.ID, "  ", "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRemovePartRejectsReferencedPart(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "Acme")
	require.NoError(t, err)
	id := c.Customer.ID
	_, err = svc.EnsurePartEntry(ctx, id, "P-1", "One")
	require.NoError(t, err)
	_, err = svc.EnsurePartEntry(ctx, id, "P-2", "Two")
	require.NoError(t, err)
	require.NoError(t, client.DB().Create(&models.TEPCode{CustomerID: id, PartCode: "P-1", TEPCode: "T1"}).Error)

	err = svc.RemovePart(ctx, id, "P-1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, svc.RemovePart(ctx, id, "P-2"))
	err = svc.RemovePart(ctx, id, "P-2")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRenameConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.FindOrCreate(ctx, "Acme")
	require.NoError(t, err)
	_, err = svc.FindOrCreate(ctx, "Globex")
	require.NoError(t, err)

	_, err = svc.Rename(ctx, a.Customer.ID, "Globex")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	renamed, err := svc.Rename(ctx, a.Customer.ID, "Acme Industries")
	require.NoError(t, err)
	assert.Equal(t, "Acme Industries", renamed.CustomerName)
}

func TestDeleteCascades(t *testing.T) {
	svc, client, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.FindOrCreate(ctx, "Acme")
	require.NoError(t, err)
	id := c.Customer.ID
	_, err = svc.EnsurePartEntry(ctx, id, "P-1", "One")
	require.NoError(t, err)
	tep := &models.TEPCode{CustomerID: id, PartCode: "P-1", TEPCode: "T1"}
	require.NoError(t, client.DB().Create(tep).Error)
	require.NoError(t, client.DB().Create(&models.Material{
		TEPCodeID: tep.ID, MatPartcode: "M1", MatPartname: "Tape", MatMaker: "3M", Unit: "pc",
	}).Error)

	require.NoError(t, svc.Delete(ctx, id))

	for _, model := range []any{&models.Customer{}, &models.CustomerPart{}, &models.TEPCode{}, &models.Material{}} {
		var count int64
		require.NoError(t, client.DB().Model(model).Count(&count).Error)
		assert.Zero(t, count)
	}

	err = svc.Delete(ctx, id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListSearchAndPaging(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"Acme", "Acme West", "Globex", "Initech"} {
		_, err := svc.FindOrCreate(ctx, name)
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, ListInput{Query: "acme"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	page, err := svc.List(ctx, ListInput{Params: pagination.Params{Limit: 3}})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.List(ctx, ListInput{Params: pagination.Params{Limit: 3, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "Initech", rest.Items[0].CustomerName)
	assert.Empty(t, rest.NextCursor)
}
