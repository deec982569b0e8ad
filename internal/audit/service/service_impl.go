package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/creditledger/internal/audit/domain"
	"github.com/smallbiznis/creditledger/internal/clock"
	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.NewSystemClock()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: c,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actorType = strings.TrimSpace(actorType)
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	resolvedActorType, resolvedActorID := s.resolveActor(ctx, actorType, actorID)
	ipAddress, userAgent := obscontext.ClientFromContext(ctx)

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}
	if userID := obscontext.UserIDFromContext(ctx); userID != "" {
		payload["user_id"] = userID
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  resolvedActorType,
		ActorID:    resolvedActorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   normalizePointer(targetID),
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if ipAddress != "" {
		entry.IPAddress = &ipAddress
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize + 1,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, pageSize, func(item auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{
			ID:        strconv.FormatInt(item.ID.Int64(), 10),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	if items == nil {
		items = []auditdomain.AuditLog{}
	}
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: items}, nil
}

func (s *Service) resolveActor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	if actorType == "" {
		if ctxType, ctxID := obscontext.ActorFromContext(ctx); ctxType != "" {
			actorType = ctxType
			if actorID == nil || strings.TrimSpace(*actorID) == "" {
				if ctxID != "" {
					actorID = &ctxID
				}
			}
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}

	return actorType, normalizePointer(actorID)
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
