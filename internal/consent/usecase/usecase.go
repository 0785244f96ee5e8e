package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"vibetrust/internal/consent"
	models "vibetrust/internal/consent/model"
	"vibetrust/internal/ratelimit"
	"vibetrust/internal/session"
	"vibetrust/pkg/errors"
	"vibetrust/pkg/logger"
)

const maxMessageLength = 280

type ConsentUsecase struct {
	repo       consent.Repository
	sessions   session.Lookup
	principals session.PrincipalLookup
	limiter    *ratelimit.Limiter
	logger     logger.Logger
	now        func() time.Time
}

func NewConsentUsecase(
	repo consent.Repository,
	sessions session.Lookup,
	principals session.PrincipalLookup,
	limiter *ratelimit.Limiter,
	logger logger.Logger,
) *ConsentUsecase {
	return &ConsentUsecase{
		repo:       repo,
		sessions:   sessions,
		principals: principals,
		limiter:    limiter,
		logger:     logger,
		now:        time.Now,
	}
}

var _ consent.Usecase = (*ConsentUsecase)(nil)

func pair(from, to string) (string, string, error) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if from == "" || to == "" {
		return "", "", errors.InvalidArg("from and to are required")
	}
	if from == to {
		return "", "", errors.ErrSelfConsent
	}
	return from, to, nil
}

// actor is the handle whose session authorizes the action. Requests are made
// by the sender; every response to a request is made by the recipient.
func actor(action consent.Action, from, to string) string {
	if action == consent.ActionRequest {
		return from
	}
	return to
}

func (uc *ConsentUsecase) Apply(ctx context.Context, cmd consent.ActionCommand) (*consent.ActionDTO, error) {
	switch cmd.Action {
	case consent.ActionRequest, consent.ActionAccept, consent.ActionBlock, consent.ActionUnblock:
	default:
		return nil, errors.InvalidArg("unknown consent action")
	}
	from, to, err := pair(cmd.From, cmd.To)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(cmd.Message) > maxMessageLength {
		return nil, errors.InvalidArg("message too long")
	}

	who := actor(cmd.Action, from, to)
	rl, err := uc.limiter.Enforce(ctx, ratelimit.Consent, who)
	if err != nil {
		return nil, err
	}
	if _, err := uc.sessions.Require(ctx, cmd.Token, who); err != nil {
		return nil, err
	}

	var (
		rel     *models.Relationship
		changed bool
	)
	switch cmd.Action {
	case consent.ActionRequest:
		rel, changed, err = uc.request(ctx, from, to, cmd.Message)
	case consent.ActionAccept:
		rel, changed, err = uc.accept(ctx, from, to)
	case consent.ActionBlock:
		rel, changed, err = uc.block(ctx, from, to)
	case consent.ActionUnblock:
		rel, changed, err = uc.unblock(ctx, from, to)
	}
	if err != nil {
		return nil, err
	}

	if changed {
		uc.logger.Info("consent updated", "action", cmd.Action, "from", from, "to", to, "status", rel.Status)
	}
	return &consent.ActionDTO{
		Action:       cmd.Action,
		Changed:      changed,
		Relationship: consent.ToRelationshipDTO(rel),
		RateLimit:    rl,
	}, nil
}

func (uc *ConsentUsecase) transition(rel *models.Relationship, to models.Status, actor string, at time.Time) consent.Change {
	tr := &models.Transition{
		From:       rel.From,
		To:         rel.To,
		FromStatus: rel.Status,
		ToStatus:   to,
		Actor:      actor,
		At:         at,
	}
	rel.Status = to
	return consent.Change{Relationship: rel, Transition: tr}
}

func (uc *ConsentUsecase) save(ctx context.Context, changes ...consent.Change) error {
	if err := uc.repo.Save(ctx, changes...); err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		uc.logger.Error("failed to save consent", "err", err)
		return errors.ErrStoreUnavailable(err)
	}
	return nil
}

func (uc *ConsentUsecase) request(ctx context.Context, from, to, message string) (*models.Relationship, bool, error) {
	p, err := uc.principals.LookupPrincipal(ctx, to)
	if err != nil {
		return nil, false, err
	}
	if p.Status != session.StatusActive {
		return nil, false, errors.ErrIdentityInactive
	}

	rel, err := uc.repo.Get(ctx, from, to)
	if err != nil {
		return nil, false, err
	}
	switch rel.Status {
	case models.StatusAccepted, models.StatusPending:
		return rel, false, nil
	case models.StatusBlocked:
		return nil, false, errors.ErrConsentBlocked
	}

	now := uc.now().UTC()
	change := uc.transition(rel, models.StatusPending, from, now)
	rel.RequestedAt = &now
	rel.RespondedAt = nil
	rel.Message = nil
	if message != "" {
		rel.Message = &message
	}
	if err := uc.save(ctx, change); err != nil {
		return nil, false, err
	}
	return rel, true, nil
}

// accept answers (from, to) and grants the reverse direction too, so the
// accepting side can be messaged back without a request of its own.
func (uc *ConsentUsecase) accept(ctx context.Context, from, to string) (*models.Relationship, bool, error) {
	rel, err := uc.repo.Get(ctx, from, to)
	if err != nil {
		return nil, false, err
	}
	switch rel.Status {
	case models.StatusNone:
		return nil, false, errors.ErrNoPendingRequest
	case models.StatusAccepted:
		return nil, false, errors.ErrAlreadyAccepted
	case models.StatusPending, models.StatusBlocked:
	default:
		return nil, false, errors.ErrInvalidStateTransition
	}

	reverse, err := uc.repo.Get(ctx, to, from)
	if err != nil {
		return nil, false, err
	}

	now := uc.now().UTC()
	changes := []consent.Change{uc.transition(rel, models.StatusAccepted, to, now)}
	rel.RespondedAt = &now
	if reverse.Status != models.StatusAccepted {
		changes = append(changes, uc.transition(reverse, models.StatusAccepted, to, now))
		if reverse.RequestedAt == nil {
			reverse.RequestedAt = &now
		}
		reverse.RespondedAt = &now
	}
	if err := uc.save(ctx, changes...); err != nil {
		return nil, false, err
	}
	return rel, true, nil
}

func (uc *ConsentUsecase) block(ctx context.Context, from, to string) (*models.Relationship, bool, error) {
	rel, err := uc.repo.Get(ctx, from, to)
	if err != nil {
		return nil, false, err
	}
	if rel.Status == models.StatusBlocked {
		return rel, false, nil
	}
	now := uc.now().UTC()
	change := uc.transition(rel, models.StatusBlocked, to, now)
	rel.RespondedAt = &now
	if err := uc.save(ctx, change); err != nil {
		return nil, false, err
	}
	return rel, true, nil
}

func (uc *ConsentUsecase) unblock(ctx context.Context, from, to string) (*models.Relationship, bool, error) {
	rel, err := uc.repo.Get(ctx, from, to)
	if err != nil {
		return nil, false, err
	}
	if rel.Status != models.StatusBlocked {
		return nil, false, errors.ErrNotBlocked
	}
	now := uc.now().UTC()
	change := uc.transition(rel, models.StatusNone, to, now)
	rel.RespondedAt = &now
	rel.Message = nil
	if err := uc.save(ctx, change); err != nil {
		return nil, false, err
	}
	return rel, true, nil
}

func (uc *ConsentUsecase) Status(ctx context.Context, q consent.StatusQuery) (*consent.RelationshipDTO, error) {
	from, to, err := pair(q.From, q.To)
	if err != nil {
		return nil, err
	}
	caller := strings.ToLower(strings.TrimSpace(q.Caller))
	if caller != from && caller != to {
		return nil, errors.Forbidden("only a party to the relationship may read it")
	}
	if _, err := uc.sessions.Require(ctx, q.Token, caller); err != nil {
		return nil, err
	}

	rel, err := uc.repo.Get(ctx, from, to)
	if err != nil {
		return nil, err
	}
	history, err := uc.repo.History(ctx, from, to)
	if err != nil {
		uc.logger.Warn("consent history unavailable", "from", from, "to", to, "err", err)
	}

	dto := consent.ToRelationshipDTO(rel)
	for _, t := range history {
		dto.History = append(dto.History, consent.TransitionDTO{
			FromStatus: string(t.FromStatus),
			ToStatus:   string(t.ToStatus),
			Actor:      t.Actor,
			At:         t.At,
		})
	}
	return dto, nil
}

func (uc *ConsentUsecase) CanDeliver(ctx context.Context, q consent.DeliverQuery) (*consent.DeliverabilityDTO, error) {
	sender, recipient, err := pair(q.Sender, q.Recipient)
	if err != nil {
		return nil, err
	}
	rl, err := uc.limiter.Enforce(ctx, ratelimit.MessageAuth, sender)
	if err != nil {
		return nil, err
	}
	if _, err := uc.sessions.Require(ctx, q.Token, sender); err != nil {
		return nil, err
	}

	rel, err := uc.repo.Get(ctx, sender, recipient)
	if err != nil {
		return nil, err
	}
	return &consent.DeliverabilityDTO{
		Sender:      sender,
		Recipient:   recipient,
		Deliverable: rel.Status == models.StatusAccepted,
		RateLimit:   rl,
	}, nil
}
