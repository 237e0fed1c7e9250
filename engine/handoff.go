package engine

import "leadflow/models"

// CRMHandoff is the optional downstream sink for leads that finished
// their sequence or replied. Push is best effort; the engine logs the
// outcome and never retries.
type CRMHandoff interface {
	Push(state *models.LeadState) bool
}
