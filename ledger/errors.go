package ledger

import "errors"

var (
	ErrInvalidQuantity    = errors.New("ledger: quantity must be greater than zero")
	ErrPickNotFound       = errors.New("ledger: pick event not found")
	ErrDemandLineNotFound = errors.New("ledger: demand line not found")
	ErrToolNotApplicable  = errors.New("ledger: tool does not apply to demand line")
	ErrContextUnresolved  = errors.New("ledger: pick context could not be resolved")
	ErrAuditWrite         = errors.New("ledger: undo record write failed")
)
