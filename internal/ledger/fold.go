package ledger

import (
	"fmt"

	"github.com/shenikar/sos_dispatch/internal/models"
)

// transitions - допустимые события для каждого производного статуса.
// failed допускается из любого нетерминального статуса и только по внутренней ошибке.
var transitions = map[models.Status][]models.EventKind{
	models.StatusNone:         {models.EventCreated},
	models.StatusCreated:      {models.EventLocated, models.EventFailed},
	models.StatusLocated:      {models.EventDispatched, models.EventFailed},
	models.StatusDispatched:   {models.EventAcknowledged, models.EventResolved, models.EventCancelled, models.EventFailed},
	models.StatusAcknowledged: {models.EventResolved, models.EventFailed},
}

// CanTransition сообщает, является ли kind допустимым продолжением статуса from
func CanTransition(from models.Status, kind models.EventKind) bool {
	for _, k := range transitions[from] {
		if k == kind {
			return true
		}
	}
	return false
}

// Fold применяет событие к статусу
func Fold(status models.Status, ev models.IncidentEvent) (models.Status, error) {
	if !CanTransition(status, ev.Kind) {
		return status, fmt.Errorf("illegal transition %q -> %q at seq %d", status, ev.Kind, ev.Seq)
	}
	return models.Status(ev.Kind), nil
}

// Replay сворачивает журнал инцидента в порядке seq и проверяет его целостность
func Replay(events []models.IncidentEvent) (models.Status, error) {
	status := models.StatusNone
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			return status, fmt.Errorf("broken sequence for incident %s: want %d, got %d", ev.IncidentID, i+1, ev.Seq)
		}
		next, err := Fold(status, ev)
		if err != nil {
			return status, err
		}
		status = next
	}
	return status, nil
}
