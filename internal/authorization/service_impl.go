package authorization

import (
	"context"
	_ "embed"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectAccount      = "account"
	ObjectOrganization = "organization"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type serviceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &serviceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *serviceImpl) CanCreateRole(ctx context.Context, creator, target catalogdomain.Role) (bool, error) {
	if creator == "" || target == "" {
		return false, ErrInvalidActor
	}
	return s.enforcer.Enforce(subject(creator), ObjectAccount, "create:"+string(target))
}

func (s *serviceImpl) CanCreateOrganization(ctx context.Context, creator catalogdomain.Role, orgType orgdomain.OrganizationType) (bool, error) {
	if creator == "" {
		return false, ErrInvalidActor
	}
	return s.enforcer.Enforce(subject(creator), ObjectOrganization, "create:"+string(orgType))
}

func subject(role catalogdomain.Role) string {
	return "role:" + string(role)
}

// seedPolicies installs the default creation edges of the tenant hierarchy.
// AddPolicy is a no-op for rules that already exist.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Family hierarchy.
		{subject(catalogdomain.RoleParent), ObjectAccount, "create:child"},

		// District hierarchy. District admins provision school admins and
		// staff; school-level staff provision students.
		{subject(catalogdomain.RoleDistrictAdmin), ObjectAccount, "create:school_admin"},
		{subject(catalogdomain.RoleDistrictAdmin), ObjectAccount, "create:teacher"},
		{subject(catalogdomain.RoleDistrictAdmin), ObjectAccount, "create:counselor"},
		{subject(catalogdomain.RoleDistrictAdmin), ObjectAccount, "create:social_worker"},
		{subject(catalogdomain.RoleDistrictAdmin), ObjectOrganization, "create:school"},

		{subject(catalogdomain.RoleSchoolAdmin), ObjectAccount, "create:teacher"},
		{subject(catalogdomain.RoleSchoolAdmin), ObjectAccount, "create:counselor"},
		{subject(catalogdomain.RoleSchoolAdmin), ObjectAccount, "create:social_worker"},
		{subject(catalogdomain.RoleSchoolAdmin), ObjectAccount, "create:student"},
		{subject(catalogdomain.RoleSchoolAdmin), ObjectOrganization, "create:school"},

		{subject(catalogdomain.RoleTeacher), ObjectAccount, "create:student"},
		{subject(catalogdomain.RoleCounselor), ObjectAccount, "create:student"},
		{subject(catalogdomain.RoleSocialWorker), ObjectAccount, "create:student"},

		// Employer hierarchy.
		{subject(catalogdomain.RoleEmployerAdmin), ObjectAccount, "create:supervisor"},
		{subject(catalogdomain.RoleEmployerAdmin), ObjectAccount, "create:hr"},
		{subject(catalogdomain.RoleEmployerAdmin), ObjectAccount, "create:employee"},
		{subject(catalogdomain.RoleEmployerAdmin), ObjectOrganization, "create:company"},

		{subject(catalogdomain.RoleSupervisor), ObjectAccount, "create:employee"},
		{subject(catalogdomain.RoleHR), ObjectAccount, "create:employee"},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
