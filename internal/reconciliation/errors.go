package reconciliation

import "errors"

var (
	// ErrEntryNotFound is returned when no ledger holds the given entry id.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrNegativeAmount is returned when an amount argument is below zero.
	ErrNegativeAmount = errors.New("amount must not be negative")

	// ErrNotPayable is returned when a payment targets an expense. Expenses are paid in
	// full at registration.
	ErrNotPayable = errors.New("entry does not accept payments")

	// ErrUnassignedTarget is returned when a reclassification targets the unassigned bucket.
	ErrUnassignedTarget = errors.New("reclassification needs a real project")

	// ErrMissingProject is returned when a sale or payroll assignment has no project.
	ErrMissingProject = errors.New("project name is required")

	// ErrLayoutMismatch is returned when a sheet's header row lacks a required column.
	ErrLayoutMismatch = errors.New("sheet header does not match the ledger layout")

	// ErrDuplicateID is returned when loaded rows carry the same entry id twice.
	ErrDuplicateID = errors.New("duplicate entry id")
)
