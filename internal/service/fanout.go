package service

import (
	"context"

	"github.com/shenikar/sos_dispatch/internal/models"
	"github.com/shenikar/sos_dispatch/internal/notify"
	"github.com/sirupsen/logrus"
)

// fanout рассылает новый инцидент найденным ответчикам, всем подключенным
// ответчикам и экстренным контактам. Работает со своим таймаутом, ошибки
// доставки только логируются и не влияют на результат SubmitSOS.
func (s *incidentService) fanout(incident *models.Incident, matches []models.Match) {
	defer s.fanouts.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FanoutTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "fanout",
		"incident_id": incident.ID,
	})

	// одно и то же сообщение уходит адресно и в топик, получатели дедуплицируют по ID
	msg, err := notify.NewMessage(models.EventNameNewIncident, incidentPayload(incident))
	if err != nil {
		log.WithError(err).Error("Failed to build incident message")
		return
	}

	delivered := 0
	for _, m := range matches {
		n, err := s.notifier.Deliver(ctx, notify.ToUser(m.Responder.ID), msg)
		if err != nil {
			log.WithError(err).WithField("responder_id", m.Responder.ID).Warn("Failed to deliver to responder")
			continue
		}
		delivered += n
	}

	broadcast, err := s.notifier.Deliver(ctx, notify.ToTopic(models.TopicRespondersActive), msg)
	if err != nil {
		log.WithError(err).Warn("Failed to broadcast to active responders")
	}

	contacts := 0
	if s.alerter != nil {
		if contacts, err = s.alerter.SendSOSAlerts(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to enqueue contact alerts")
		}
	}

	log.WithFields(logrus.Fields{
		"targeted":  delivered,
		"broadcast": broadcast,
		"contacts":  contacts,
	}).Info("Fan-out completed")
}
