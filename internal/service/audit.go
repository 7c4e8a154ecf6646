package service

import (
	"context"

	"room_coordinator/internal/domain"
	"room_coordinator/internal/repository"
	"room_coordinator/pkg/logger"
)

type auditSink struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditSink(auditRepo repository.AuditRepository, log logger.Logger) AuditSink {
	return &auditSink{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditSink) Record(ctx context.Context, event domain.AuditEvent) error {
	if event.ActorRole == "" {
		event.ActorRole = domain.ActorRoleUser
	}
	return s.auditRepo.Append(ctx, &event)
}
