package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/rollcallhq/rollcall/internal/account/domain"
	"github.com/rollcallhq/rollcall/internal/authorization"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/clock"
	"github.com/rollcallhq/rollcall/internal/hierarchy"
	"github.com/rollcallhq/rollcall/internal/observability"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	quotadomain "github.com/rollcallhq/rollcall/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Node    *snowflake.Node
	Repo    domain.Repository
	OrgRepo orgdomain.Repository
	Quota   quotadomain.Service
	Authz   authorization.Service
	Metrics *observability.Metrics `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	node    *snowflake.Node
	repo    domain.Repository
	orgRepo orgdomain.Repository
	quota   quotadomain.Service
	authz   authorization.Service
	metrics *observability.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("account.service"),
		clock:   p.Clock,
		node:    p.Node,
		repo:    p.Repo,
		orgRepo: p.OrgRepo,
		quota:   p.Quota,
		authz:   p.Authz,
		metrics: p.Metrics,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Account, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	// Self-service signup: a payer role with no creator becomes its own
	// billing root. Admission control starts once it holds a subscription
	// and creates accounts under it.
	if req.CreatorID == 0 {
		if !req.Role.IsPayer() {
			return nil, domain.ErrCreatorMissing
		}
		return s.createRoot(ctx, req, email)
	}

	creator, err := s.repo.FindByID(ctx, s.db, req.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, domain.ErrCreatorMissing
	}

	allowed, err := s.authz.CanCreateRole(ctx, creator.Role, req.Role)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrNotPermitted
	}

	id := s.node.Generate()
	ownerID, err := hierarchy.ResolveBillingOwner(creator.BillingOwnerID, id)
	if err != nil {
		return nil, err
	}

	orgID, err := s.targetOrganization(ctx, req.OrganizationID, creator)
	if err != nil {
		return nil, err
	}

	key, ok := resourceKeyForRole(req.Role)
	if !ok {
		return nil, domain.ErrInvalidRole
	}
	subject := quotadomain.Subject{
		ActorID:        creator.ID,
		OrganizationID: orgID,
		Managed:        creator.IsManaged(),
	}

	account := &domain.Account{
		ID:             id,
		Role:           req.Role,
		Email:          email,
		DisplayName:    req.DisplayName,
		OrganizationID: orgID,
		CreatorID:      creator.ID,
		BillingOwnerID: ownerID,
	}

	_, err = s.quota.WithAdmission(ctx, ownerID, key, 1, subject, func(tx *gorm.DB) error {
		return s.insertAccount(ctx, tx, account, creator)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAccountCreated(ctx, string(account.Role))
	s.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("role", string(account.Role)),
		zap.String("billing_owner_id", ownerID.String()))
	return account, nil
}

func (s *service) BulkCreate(ctx context.Context, req domain.BulkCreateRequest) (*domain.BulkResult, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if len(req.Items) > domain.MaxBatchSize {
		return nil, domain.ErrBatchTooLarge
	}
	if req.CreatorID == 0 {
		return nil, domain.ErrCreatorMissing
	}

	creator, err := s.repo.FindByID(ctx, s.db, req.CreatorID)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, domain.ErrCreatorMissing
	}

	allowed, err := s.authz.CanCreateRole(ctx, creator.Role, req.Role)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, domain.ErrNotPermitted
	}

	key, ok := resourceKeyForRole(req.Role)
	if !ok {
		return nil, domain.ErrInvalidRole
	}

	knownOrgs, err := s.resolveItemOrganizations(ctx, req.Items, creator)
	if err != nil {
		return nil, err
	}

	subject := quotadomain.Subject{
		ActorID:        creator.ID,
		OrganizationID: creator.OrganizationID,
		Managed:        creator.IsManaged(),
	}
	// A staff import is one per-school reservation, so the whole batch must
	// land in a single school.
	if key.Base == catalogdomain.KeyStaff {
		batchOrg, err := batchOrganization(req.Items, creator, knownOrgs)
		if err != nil {
			return nil, err
		}
		subject.OrganizationID = batchOrg
	}

	// The whole batch is one reservation: either there is headroom for all
	// items or none are created. Per-item failures inside an admitted batch
	// skip the item without rolling back earlier rows.
	result := &domain.BulkResult{}
	_, err = s.quota.WithAdmission(ctx, creator.BillingOwnerID, key, int64(len(req.Items)), subject, func(tx *gorm.DB) error {
		for i, item := range req.Items {
			email, err := normalizeEmail(item.Email)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, domain.BulkItemError{
					Index: i, Email: item.Email, Reason: domain.ErrInvalidEmail.Error(),
				})
				continue
			}

			orgID, err := bulkItemOrganization(item.OrganizationID, creator, knownOrgs)
			if err != nil {
				result.Skipped++
				result.Errors = append(result.Errors, domain.BulkItemError{
					Index: i, Email: email, Reason: err.Error(),
				})
				continue
			}

			id := s.node.Generate()
			ownerID, err := hierarchy.ResolveBillingOwner(creator.BillingOwnerID, id)
			if err != nil {
				return err
			}

			account := &domain.Account{
				ID:             id,
				Role:           req.Role,
				Email:          email,
				DisplayName:    item.DisplayName,
				OrganizationID: orgID,
				CreatorID:      creator.ID,
				BillingOwnerID: ownerID,
			}
			if err := s.insertAccount(ctx, tx, account, creator); err != nil {
				if errors.Is(err, domain.ErrEmailTaken) {
					result.Skipped++
					result.Errors = append(result.Errors, domain.BulkItemError{
						Index: i, Email: email, Reason: err.Error(),
					})
					continue
				}
				return err
			}
			result.Created = append(result.Created, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for range result.Created {
		s.metrics.RecordAccountCreated(ctx, string(req.Role))
	}
	s.log.Info("bulk import finished",
		zap.String("billing_owner_id", creator.BillingOwnerID.String()),
		zap.String("role", string(req.Role)),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

func (s *service) Get(ctx context.Context, actorID, id snowflake.ID) (*domain.Account, error) {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	if actorID != account.ID {
		actor, err := s.repo.FindByID(ctx, s.db, actorID)
		if err != nil {
			return nil, err
		}
		if actor == nil || actor.BillingOwnerID != account.BillingOwnerID {
			return nil, domain.ErrNotOwned
		}
	}
	return account, nil
}

// Children resolves the accounts linked to a parent through child links,
// batching the lookup so large families still resolve in bounded queries.
func (s *service) Children(ctx context.Context, parentID snowflake.ID) ([]*domain.Account, error) {
	links, err := s.repo.ListChildLinksByParent(ctx, s.db, parentID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, nil
	}

	ids := make([]snowflake.ID, len(links))
	for i, link := range links {
		ids[i] = link.ChildID
	}
	return s.repo.FindByIDs(ctx, s.db, ids)
}

func (s *service) Delete(ctx context.Context, actorID, id snowflake.ID) error {
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if account == nil {
		return domain.ErrNotFound
	}
	if actorID != account.CreatorID && actorID != account.BillingOwnerID && actorID != account.ID {
		return domain.ErrNotOwned
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteChildLinksFor(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info("account deleted",
		zap.String("account_id", id.String()),
		zap.String("actor_id", actorID.String()))
	return nil
}

func (s *service) createRoot(ctx context.Context, req domain.CreateRequest, email string) (*domain.Account, error) {
	id := s.node.Generate()
	account := &domain.Account{
		ID:             id,
		Role:           req.Role,
		Email:          email,
		DisplayName:    req.DisplayName,
		BillingOwnerID: id,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrEmailTaken
		}
		return s.repo.Insert(ctx, tx, account)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("billing root created",
		zap.String("account_id", id.String()),
		zap.String("role", string(req.Role)))
	return account, nil
}

// insertAccount writes the account and, for children, the link row tying the
// child to its parent, inside the caller's transaction.
func (s *service) insertAccount(ctx context.Context, tx *gorm.DB, account *domain.Account, creator *domain.Account) error {
	existing, err := s.repo.FindByEmail(ctx, tx, account.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrEmailTaken
	}
	if err := s.repo.Insert(ctx, tx, account); err != nil {
		return err
	}
	if account.Role == catalogdomain.RoleChild {
		return s.repo.InsertChildLink(ctx, tx, &domain.ChildLink{
			ID:             s.node.Generate(),
			ParentID:       creator.ID,
			ChildID:        account.ID,
			BillingOwnerID: account.BillingOwnerID,
		})
	}
	return nil
}

// targetOrganization resolves where the new account lands. An explicit id
// must name an organization inside the creator's billing tree.
func (s *service) targetOrganization(ctx context.Context, raw string, creator *domain.Account) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return creator.OrganizationID, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidOrg
	}
	org, err := s.orgRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return 0, err
	}
	if org == nil || org.BillingOwnerID != creator.BillingOwnerID {
		return 0, domain.ErrInvalidOrg
	}
	return id, nil
}

// resolveItemOrganizations batches the organization lookups for a bulk
// import: every distinct explicit organization id resolves in one chunked
// in-list query instead of a query per item.
func (s *service) resolveItemOrganizations(ctx context.Context, items []domain.BulkItem, creator *domain.Account) (map[snowflake.ID]bool, error) {
	seen := make(map[snowflake.ID]struct{})
	var ids []snowflake.ID
	for _, item := range items {
		raw := strings.TrimSpace(item.OrganizationID)
		if raw == "" {
			continue
		}
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	known := make(map[snowflake.ID]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	orgs, err := s.orgRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		if org.BillingOwnerID == creator.BillingOwnerID {
			known[org.ID] = true
		}
	}
	return known, nil
}

// batchOrganization resolves the single school a staff import targets.
// Items that fail to resolve are ignored here; they are skipped per item
// inside the admitted batch.
func batchOrganization(items []domain.BulkItem, creator *domain.Account, known map[snowflake.ID]bool) (snowflake.ID, error) {
	var target snowflake.ID
	for _, item := range items {
		orgID, err := bulkItemOrganization(item.OrganizationID, creator, known)
		if err != nil || orgID == 0 {
			continue
		}
		if target == 0 {
			target = orgID
			continue
		}
		if orgID != target {
			return 0, domain.ErrBatchSpansOrgs
		}
	}
	if target == 0 {
		return creator.OrganizationID, nil
	}
	return target, nil
}

func bulkItemOrganization(raw string, creator *domain.Account, known map[snowflake.ID]bool) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return creator.OrganizationID, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 || !known[id] {
		return 0, domain.ErrInvalidOrg
	}
	return id, nil
}

// resourceKeyForRole maps a creatable role onto the resource it consumes.
// Payer roles are billing roots and never pass through admission.
func resourceKeyForRole(role catalogdomain.Role) (catalogdomain.ResourceKey, bool) {
	switch {
	case role == catalogdomain.RoleChild:
		return catalogdomain.ResourceKey{Base: catalogdomain.KeyChild}, true
	case role == catalogdomain.RoleStudent:
		return catalogdomain.ResourceKey{Base: catalogdomain.KeyStudent}, true
	case role == catalogdomain.RoleEmployee:
		return catalogdomain.ResourceKey{Base: catalogdomain.KeyEmployee}, true
	case role == catalogdomain.RoleSchoolAdmin,
		role.IsSchoolStaff(),
		role.IsEmployerStaff():
		return catalogdomain.ResourceKey{Base: catalogdomain.KeyStaff}, true
	default:
		return catalogdomain.ResourceKey{}, false
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
