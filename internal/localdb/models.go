package localdb

import (
	"time"

	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

// Sale is the sales ledger table. Position keeps the ledger order and plays the role of a
// sheet row number.
type Sale struct {
	ID          string `gorm:"primaryKey;size:64"`
	Position    int    `gorm:"not null;index"`
	Date        time.Time
	Client      string
	ProjectName string
	Project     string `gorm:"index"`
	Gross       int64  `gorm:"not null"`
	Tax         int64  `gorm:"not null"`
	Collected   int64  `gorm:"not null"`
	State       string
	Invoiced    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Expense is the expenses ledger table.
type Expense struct {
	ID          string `gorm:"primaryKey;size:64"`
	Position    int    `gorm:"not null;index"`
	Date        time.Time
	ProjectName string
	Project     string `gorm:"index"`
	Supplier    string
	Concept     string
	Reference   string `gorm:"index"`
	TaxBase     int64  `gorm:"not null"`
	Tax         int64  `gorm:"not null"`
	Total       int64  `gorm:"not null"`
	Category    string
	Provenance  string
	State       string `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Payroll is the payroll ledger table.
type Payroll struct {
	ID          string `gorm:"primaryKey;size:64"`
	Position    int    `gorm:"not null;index"`
	Date        time.Time
	ProjectName string
	Project     string `gorm:"index"`
	Specialist  string
	Role        string
	Agreed      int64 `gorm:"not null"`
	Paid        int64 `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName keeps the payroll table name singular like the sheet it mirrors.
func (Payroll) TableName() string {
	return "payroll"
}

func saleFromEntry(e *models.SaleEntry) *Sale {
	return &Sale{
		ID:          e.ID,
		Position:    e.Row,
		Date:        e.Date,
		Client:      e.Client,
		ProjectName: e.ProjectName,
		Project:     string(e.Project),
		Gross:       int64(e.Gross),
		Tax:         int64(e.Tax),
		Collected:   int64(e.Collected),
		State:       e.State,
		Invoiced:    e.Invoiced,
	}
}

func (s *Sale) entry() *models.SaleEntry {
	return &models.SaleEntry{
		ID:          s.ID,
		Row:         s.Position,
		Date:        s.Date,
		Client:      s.Client,
		ProjectName: s.ProjectName,
		Project:     projectkey.Canonicalize(s.Project),
		Gross:       money.Amount(s.Gross),
		Tax:         money.Amount(s.Tax),
		Collected:   money.Amount(s.Collected),
		State:       s.State,
		Invoiced:    s.Invoiced,
	}
}

func expenseFromEntry(e *models.ExpenseEntry) *Expense {
	return &Expense{
		ID:          e.ID,
		Position:    e.Row,
		Date:        e.Date,
		ProjectName: e.ProjectName,
		Project:     string(e.Project),
		Supplier:    e.Supplier,
		Concept:     e.Concept,
		Reference:   e.Reference,
		TaxBase:     int64(e.TaxBase),
		Tax:         int64(e.Tax),
		Total:       int64(e.Total),
		Category:    e.Category,
		Provenance:  string(e.Provenance),
		State:       string(e.State),
	}
}

func (x *Expense) entry() *models.ExpenseEntry {
	e := &models.ExpenseEntry{
		ID:          x.ID,
		Row:         x.Position,
		Date:        x.Date,
		ProjectName: x.ProjectName,
		Project:     projectkey.OrUnassigned(x.Project),
		Supplier:    x.Supplier,
		Concept:     x.Concept,
		Reference:   x.Reference,
		TaxBase:     money.Amount(x.TaxBase),
		Tax:         money.Amount(x.Tax),
		Total:       money.Amount(x.Total),
		Category:    x.Category,
		Provenance:  models.Provenance(x.Provenance),
		State:       models.ClassificationState(x.State),
	}
	if e.Provenance == "" {
		e.Provenance = models.ProvenanceManual
	}
	if e.State == "" {
		e.State = models.Classified
		if e.Project.IsUnassigned() {
			e.State = models.Unclassified
		}
	}
	return e
}

func payrollFromEntry(e *models.PayrollEntry) *Payroll {
	return &Payroll{
		ID:          e.ID,
		Position:    e.Row,
		Date:        e.Date,
		ProjectName: e.ProjectName,
		Project:     string(e.Project),
		Specialist:  e.Specialist,
		Role:        e.Role,
		Agreed:      int64(e.Agreed),
		Paid:        int64(e.Paid),
	}
}

func (p *Payroll) entry() *models.PayrollEntry {
	return &models.PayrollEntry{
		ID:          p.ID,
		Row:         p.Position,
		Date:        p.Date,
		ProjectName: p.ProjectName,
		Project:     projectkey.Canonicalize(p.Project),
		Specialist:  p.Specialist,
		Role:        p.Role,
		Agreed:      money.Amount(p.Agreed),
		Paid:        money.Amount(p.Paid),
	}
}
