package catalog

import (
	"github.com/tepworks/tepcatalog/internal/customers"
	"github.com/tepworks/tepcatalog/internal/materials"
	"github.com/tepworks/tepcatalog/internal/tepcodes"
	"github.com/tepworks/tepcatalog/pkg/db/models"
	"github.com/tepworks/tepcatalog/pkg/enums"
)

// TreeMaterial is a material line as shown in the catalog tree.
type TreeMaterial struct {
	ID          int64              `json:"id"`
	MatPartcode string             `json:"mat_partcode"`
	MatPartname string             `json:"mat_partname"`
	MatMaker    string             `json:"mat_maker"`
	Unit        enums.MaterialUnit `json:"unit"`
	DimQty      float64            `json:"dim_qty"`
	LossPercent float64            `json:"loss_percent"`
	Total       float64            `json:"total"`
}

// TreeTEPCode is a TEP code and its materials, ordered by name.
type TreeTEPCode struct {
	ID        int64          `json:"id"`
	PartCode  string         `json:"part_code"`
	TEPCode   string         `json:"tep_code"`
	Materials []TreeMaterial `json:"materials"`
}

// TreePart is one entry of a customer's part list and its TEP codes.
type TreePart struct {
	Code     string        `json:"code"`
	Name     string        `json:"name"`
	TEPCodes []TreeTEPCode `json:"tep_codes"`
}

// TreeCustomer is the root of one customer's subtree. Unregistered holds TEP
// codes whose part code is missing from the part list.
type TreeCustomer struct {
	ID           int64         `json:"id"`
	CustomerName string        `json:"customer_name"`
	Parts        []TreePart    `json:"parts"`
	Unregistered []TreeTEPCode `json:"unregistered_tep_codes,omitempty"`
}

// Tree is the catalog read model.
type Tree struct {
	Query     string         `json:"query,omitempty"`
	Customers []TreeCustomer `json:"customers"`
}

// OrderInput describes one full catalog record: a customer, one of its
// parts, a TEP code for that part and a material line under it.
type OrderInput struct {
	CustomerName string
	PartCode     string
	PartName     string
	TEPCode      string
	Material     materials.ValidMaterial
}

// OrderResult reports what PlaceOrder found or created at each level.
type OrderResult struct {
	CustomerID      int64                      `json:"customer_id"`
	CustomerCreated bool                       `json:"customer_created"`
	Part            *customers.PartEntryResult `json:"part"`
	TEPCode         *tepcodes.TEPCodeDTO       `json:"tep_code"`
	TEPCodeCreated  bool                       `json:"tep_code_created"`
	Material        *materials.CreateResult    `json:"material"`
}

func treeMaterial(m models.Material) TreeMaterial {
	return TreeMaterial{
		ID:          m.ID,
		MatPartcode: m.MatPartcode,
		MatPartname: m.MatPartname,
		MatMaker:    m.MatMaker,
		Unit:        m.Unit,
		DimQty:      m.DimQty,
		LossPercent: m.LossPercent,
		Total:       m.Total,
	}
}
