package materials

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tepworks/tepcatalog/pkg/enums"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
)

func ptr[T any](v T) *T { return &v }

func TestValidateNormalizesAndDefaults(t *testing.T) {
	got, err := NewValidator().Validate(MaterialPayload{
		MatPartcode: "  TP  25 ",
		MatPartname: " Tape ",
		Unit:        "M",
		DimQty:      ptr(2.0),
		Total:       ptr(1000.0),
	})
	require.NoError(t, err)
	assert.Equal(t, "TP 25", got.Partcode)
	assert.Equal(t, "Tape", got.Name)
	assert.Equal(t, enums.MaterialUnitMeter, got.Unit)
	assert.Equal(t, 2.0, got.DimQty)
	require.NotNil(t, got.LossPercent)
	assert.Equal(t, 10.0, *got.LossPercent)
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := map[string]MaterialPayload{
		"mat_partcode": {MatPartcode: "  "},
		"unit":         {MatPartcode: "A", Unit: "litre"},
		"dim_qty":      {MatPartcode: "A", DimQty: ptr(-1.0)},
		"loss_percent": {MatPartcode: "A", LossPercent: ptr(math.Inf(1))},
	}
	for field, payload := range cases {
		_, err := NewValidator().Validate(payload)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, field)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code(), field)
		details, ok := typed.Details().(map[string]string)
		require.True(t, ok, field)
		assert.Contains(t, details, field)
	}
}

func TestLenientValidatorDefaultsUnknownUnit(t *testing.T) {
	got, err := NewLenientValidator().Validate(MaterialPayload{MatPartcode: "A", Unit: "box"})
	require.NoError(t, err)
	assert.Equal(t, enums.MaterialUnit(""), got.Unit, "blank unit defers to the master entry")
}

func TestValidateUpdate(t *testing.T) {
	in, err := NewValidator().ValidateUpdate(UpdatePayload{Unit: ptr(" KG "), DimQty: ptr(3.0)})
	require.NoError(t, err)
	require.NotNil(t, in.Unit)
	assert.Equal(t, enums.MaterialUnitKilogram, *in.Unit)
	assert.Nil(t, in.LossPercent)

	_, err = NewValidator().ValidateUpdate(UpdatePayload{Unit: ptr("box")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestValidateRejectsValuesOverColumnLimits(t *testing.T) {
	cases := []struct {
		name    string
		payload MaterialPayload
		field   string
	}{
		{"loss over numeric(7,4)", MaterialPayload{MatPartcode: "A", LossPercent: ptr(1000.0)}, "loss_percent"},
		{"quantity over numeric(14,4)", MaterialPayload{MatPartcode: "A", DimQty: ptr(1e11)}, "dim_qty"},
		{"derived total over numeric(14,4)", MaterialPayload{MatPartcode: "A", DimQty: ptr(9.5e9)}, "total"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLenientValidator().Validate(tc.payload)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			details, ok := typed.Details().(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tc.field)
		})
	}

	got, err := NewValidator().Validate(MaterialPayload{MatPartcode: "A", DimQty: ptr(5.0), LossPercent: ptr(999.9999)})
	require.NoError(t, err)
	assert.Equal(t, 999.9999, *got.LossPercent)

	_, err = NewValidator().ValidateUpdate(UpdatePayload{LossPercent: ptr(1000.0)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
