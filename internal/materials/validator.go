package materials

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tepworks/tepcatalog/internal/naming"
	"github.com/tepworks/tepcatalog/pkg/enums"
	pkgerrors "github.com/tepworks/tepcatalog/pkg/errors"
	"github.com/tepworks/tepcatalog/pkg/quantity"
)

// MaterialPayload is the inbound shape of a material line, shared by the
// HTTP API and the bulk import. Total is accepted but never stored; it is
// always derived from DimQty and LossPercent.
type MaterialPayload struct {
	MatPartcode string   `json:"mat_partcode" validate:"required,max=128"`
	MatPartname string   `json:"mat_partname,omitempty" validate:"max=255"`
	MatMaker    string   `json:"mat_maker,omitempty" validate:"max=255"`
	Unit        string   `json:"unit,omitempty" validate:"material_unit"`
	DimQty      *float64 `json:"dim_qty,omitempty" validate:"omitempty,gte=0,lte=9999999999.9999"`
	LossPercent *float64 `json:"loss_percent,omitempty" validate:"omitempty,gte=0,lte=999.9999"`
	Total       *float64 `json:"total,omitempty"`
}

// UpdatePayload changes quantities or presentation of an existing line. Nil
// fields are left untouched.
type UpdatePayload struct {
	MatMaker    *string  `json:"mat_maker,omitempty" validate:"omitempty,max=255"`
	Unit        *string  `json:"unit,omitempty" validate:"omitempty,material_unit"`
	DimQty      *float64 `json:"dim_qty,omitempty" validate:"omitempty,gte=0,lte=9999999999.9999"`
	LossPercent *float64 `json:"loss_percent,omitempty" validate:"omitempty,gte=0,lte=999.9999"`
	Total       *float64 `json:"total,omitempty"`
}

// Defaults are the values a new material line is created with. Blank Name,
// Maker and Unit are taken from the master material.
type Defaults struct {
	Name        string
	Maker       string
	Unit        enums.MaterialUnit
	DimQty      float64
	LossPercent *float64
}

// ValidMaterial is a normalized MaterialPayload.
type ValidMaterial struct {
	Partcode string
	Defaults
}

// Validator normalizes material payloads. In lenient mode an unknown unit is
// replaced by the default unit instead of being rejected.
type Validator struct {
	validate *validator.Validate
	lenient  bool
}

// NewValidator returns a validator that rejects unknown units.
func NewValidator() *Validator {
	return &Validator{validate: newValidate()}
}

// NewLenientValidator returns a validator that defaults unknown units.
func NewLenientValidator() *Validator {
	return &Validator{validate: newValidate(), lenient: true}
}

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("material_unit", func(fl validator.FieldLevel) bool {
		raw := strings.TrimSpace(fl.Field().String())
		if raw == "" {
			return true
		}
		_, err := enums.ParseMaterialUnit(raw)
		return err == nil
	})
	return v
}

// Validate checks p and returns its normalized form.
func (v *Validator) Validate(p MaterialPayload) (*ValidMaterial, error) {
	p.MatPartcode = naming.Normalize(p.MatPartcode)
	p.MatPartname = naming.Normalize(p.MatPartname)
	p.MatMaker = naming.Normalize(p.MatMaker)
	p.Unit = naming.Normalize(p.Unit)
	if v.lenient && p.Unit != "" && !enums.MaterialUnit(strings.ToLower(p.Unit)).IsValid() {
		p.Unit = ""
	}

	if err := v.validate.Struct(p); err != nil {
		return nil, formatValidationErrors(err)
	}
	if err := checkFinite(map[string]*float64{"dim_qty": p.DimQty, "loss_percent": p.LossPercent}); err != nil {
		return nil, err
	}

	out := &ValidMaterial{
		Partcode: p.MatPartcode,
		Defaults: Defaults{
			Name:        p.MatPartname,
			Maker:       p.MatMaker,
			LossPercent: p.LossPercent,
		},
	}
	if p.Unit != "" {
		out.Unit = enums.MaterialUnitOrDefault(p.Unit)
	}
	if p.DimQty != nil {
		out.DimQty = *p.DimQty
	}
	if out.LossPercent == nil {
		loss := quantity.DefaultLossPercent
		out.LossPercent = &loss
	}
	if details := quantity.Check(out.DimQty, *out.LossPercent); details != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return out, nil
}

// ValidateUpdate checks p and returns the update to apply.
func (v *Validator) ValidateUpdate(p UpdatePayload) (*UpdateInput, error) {
	if p.MatMaker != nil {
		maker := naming.Normalize(*p.MatMaker)
		p.MatMaker = &maker
	}
	if p.Unit != nil {
		unit := naming.Normalize(*p.Unit)
		p.Unit = &unit
	}
	if err := v.validate.Struct(p); err != nil {
		return nil, formatValidationErrors(err)
	}
	if err := checkFinite(map[string]*float64{"dim_qty": p.DimQty, "loss_percent": p.LossPercent}); err != nil {
		return nil, err
	}

	in := &UpdateInput{Maker: p.MatMaker, DimQty: p.DimQty, LossPercent: p.LossPercent}
	if p.Unit != nil {
		unit := enums.MaterialUnitOrDefault(*p.Unit)
		in.Unit = &unit
	}
	return in, nil
}

func checkFinite(fields map[string]*float64) error {
	details := map[string]string{}
	for name, value := range fields {
		if value != nil && (math.IsNaN(*value) || math.IsInf(*value, 0)) {
			details[name] = "must be a finite number"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "material_unit":
		return "must be one of pc, pcs, m, g, kg"
	}
	return "is invalid"
}
