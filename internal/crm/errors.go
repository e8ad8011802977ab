package crm

import "fmt"

// CrmUpdateError represents a rejected or failed CRM write
type CrmUpdateError struct {
	RecordID string
	Status   int
	Body     string
	Cause    error
}

func (e *CrmUpdateError) Error() string {
	switch {
	case e.Cause != nil && e.Body != "":
		return fmt.Sprintf("crm update of %s failed: %v: %s", e.RecordID, e.Cause, e.Body)
	case e.Cause != nil:
		return fmt.Sprintf("crm update of %s failed: %v", e.RecordID, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("crm update of %s failed: HTTP status %d: %s", e.RecordID, e.Status, e.Body)
	default:
		return fmt.Sprintf("crm update of %s failed: %s", e.RecordID, e.Body)
	}
}

func (e *CrmUpdateError) Unwrap() error {
	return e.Cause
}
