package registry

import (
	"github.com/corpora-app/corpora/internal/models"
)

// legalTransitions is the document status state machine. processing →
// pending is the forced correction path for externally cancelled runs, so
// a document is never left stuck in processing.
var legalTransitions = map[models.DocumentStatus][]models.DocumentStatus{
	models.StatusPending:    {models.StatusProcessing},
	models.StatusProcessing: {models.StatusReady, models.StatusFailed, models.StatusPending},
	models.StatusFailed:     {models.StatusPending},
	models.StatusReady:      {models.StatusPending},
}

func canTransition(from, to models.DocumentStatus) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
