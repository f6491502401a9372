package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/errs"
	"github.com/psds-microservice/ticket-bot/internal/membercache"
	"github.com/psds-microservice/ticket-bot/internal/metrics"
	"github.com/psds-microservice/ticket-bot/internal/model"
	"go.uber.org/zap"
)

// MemberService answers "is this user in the guild" and grants the customer role.
type MemberService struct {
	platform chat.Platform
	cache    membercache.Cache
	cacheTTL time.Duration
	roleID   string
	now      func() time.Time
	log      *zap.Logger
}

type MemberDeps struct {
	Platform chat.Platform
	Cache    membercache.Cache
	// CacheTTL > 0 lets a fresh cached result skip the live fetch.
	CacheTTL time.Duration
	RoleID   string
}

func NewMemberService(deps MemberDeps, log *zap.Logger) *MemberService {
	return &MemberService{
		platform: deps.Platform,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		roleID:   deps.RoleID,
		now:      time.Now,
		log:      log.Named("members"),
	}
}

// CheckMembership reports whether userID is a guild member. Any fetch
// failure counts as absent. Every live check is written to the cache.
func (s *MemberService) CheckMembership(ctx context.Context, userID string) bool {
	log := s.log.With(zap.String("user_id", userID))
	if userID == "" {
		return false
	}

	if s.cacheTTL > 0 {
		entry, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			log.Warn("member cache read", zap.Error(err))
		} else if ok && entry.Fresh(s.now(), s.cacheTTL) {
			metrics.MemberChecks.WithLabelValues("cache", strconv.FormatBool(entry.Present)).Inc()
			return entry.Present
		}
	}

	member, err := s.platform.FetchMember(ctx, userID)
	if errors.Is(err, errs.ErrGuildUnavailable) {
		log.Error("guild unavailable, reporting member absent", zap.Error(err))
		return false
	}
	present := err == nil
	if present {
		log.Info("member found", zap.String("username", member.Username))
	} else {
		log.Info("member not found", zap.Error(err))
	}
	if err := s.cache.Put(ctx, userID, membercache.Entry{Present: present, CheckedAt: s.now()}); err != nil {
		log.Warn("member cache write", zap.Error(err))
	}
	metrics.MemberChecks.WithLabelValues("live", strconv.FormatBool(present)).Inc()
	return present
}

// AssignCustomerRole grants the configured customer role. A member that
// already holds it is left untouched.
func (s *MemberService) AssignCustomerRole(ctx context.Context, req model.RoleAssignmentRequest) error {
	if s.roleID == "" {
		return errs.ErrRoleNotConfigured
	}
	member, err := s.platform.FetchMember(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("resolve member %s: %w", req.UserID, err)
	}
	log := s.log.With(zap.String("user_id", req.UserID), zap.String("username", member.Username))
	if member.HasRole(s.roleID) {
		log.Info("member already has customer role")
		return nil
	}
	if err := s.platform.AddRole(ctx, req.UserID, s.roleID); err != nil {
		return fmt.Errorf("add customer role to %s: %w", req.UserID, err)
	}
	log.Info("customer role assigned")
	return nil
}
