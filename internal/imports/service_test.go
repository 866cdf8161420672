package imports

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tepworks/tepcatalog/pkg/db"
	"github.com/tepworks/tepcatalog/pkg/db/dbtest"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"github.com/tepworks/tepcatalog/pkg/enums"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
)

func newTestService(t *testing.T, maxBytes int64) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(client, nil, maxBytes, nil)
	require.NoError(t, err)
	return svc, client
}

func TestImportMasterOnlyCSV(t *testing.T) {
	svc, client := newTestService(t, 0)
	ctx := context.Background()

	csv := "mat_partcode,mat_partname,maker,unit\n" +
		"TP-1,Tape,3M,M\n" +
		",No code,,\n" +
		"TP-2,,,litre\n"
	summary, err := svc.Import(ctx, "master.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 2, summary.MasterInserted)
	assert.Equal(t, 1, summary.RowsSkipped)
	require.Len(t, summary.Issues, 1)
	assert.Contains(t, summary.Issues[0], "line 3")

	var tp2 models.MasterMaterial
	require.NoError(t, client.DB().Where("mat_partcode = ?", "TP-2").First(&tp2).Error)
	assert.Equal(t, "TP-2", tp2.MatPartname)
	assert.Equal(t, "Unknown", tp2.MatMaker)
	assert.Equal(t, enums.MaterialUnitPiece, tp2.Unit)

	again, err := svc.Import(ctx, "master.csv", strings.NewReader("mat_partcode,maker\nTP-1,3M\nTP-2,Nitto\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, again.MasterUnchanged)
	assert.Equal(t, 1, again.MasterUpdated)
}

func TestImportCatalogRowsFromXLSX(t *testing.T) {
	svc, client := newTestService(t, 0)

	data := xlsxFixture(t, [][]string{
		{"CUSTOMER", "Partcode", "Partname", "TEP", "material_part_code", "material_name", "qty", "loss"},
		{"Acme", "P-1", "Bracket", "T1", "M1", "Tape", "2", ""},
		{"Acme", "P-1", "Bracket", "T1", "M2", "Tape", "1", "0"},
		{"Acme", "P-1", "Bracket", "T1", "M2", "Tape", "1", "0"},
		{"Acme", "P-1", "", "", "M3", "Glue", "1", ""},
		{"Acme", "P-1", "Bracket", "T1", "M4", "Glue", "abc", ""},
	})
	summary, err := svc.Import(context.Background(), "catalog.xlsx", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, summary.Format)
	assert.Equal(t, 2, summary.MaterialsCreated)
	assert.Equal(t, 2, summary.MaterialsSkipped, "duplicate pair and incomplete catalog columns")
	assert.Equal(t, 1, summary.RowsSkipped, "unparseable quantity")
	assert.Len(t, summary.Issues, 3)

	var rows []models.Material
	require.NoError(t, client.DB().Order("mat_partcode").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "Tape 1", rows[0].MatPartname)
	assert.Equal(t, 2.2, rows[0].Total)
	assert.Equal(t, "Tape 2", rows[1].MatPartname)
	assert.Equal(t, 1.0, rows[1].Total)

	var parts []models.CustomerPart
	require.NoError(t, client.DB().Find(&parts).Error)
	require.Len(t, parts, 1)
	assert.Equal(t, "Bracket", parts[0].Name)
}

func TestImportRejectsUnusableFiles(t *testing.T) {
	svc, _ := newTestService(t, 32)
	ctx := context.Background()

	_, err := svc.Import(ctx, "x.csv", strings.NewReader("name,unit\nTape,m\n"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Import(ctx, "x.csv", strings.NewReader(strings.Repeat("a", 64)))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTooLarge))
}
