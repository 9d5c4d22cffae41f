package service

import (
	"github.com/rollcallhq/rollcall/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log    *zap.Logger
	Holder *Holder
}

type service struct {
	log    *zap.Logger
	holder *Holder
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		log:    p.Log.Named("catalog.service"),
		holder: p.Holder,
	}
}

func (s *service) GetPackage(role domain.Role, packageID string) (domain.Package, error) {
	for _, pkg := range s.holder.Get() {
		if pkg.Role == role && pkg.ID == packageID {
			return pkg, nil
		}
	}
	return domain.Package{}, domain.ErrPackageNotFound
}

func (s *service) PackagesForRole(role domain.Role) []domain.Package {
	var out []domain.Package
	for _, pkg := range s.holder.Get() {
		if pkg.Role == role {
			out = append(out, pkg)
		}
	}
	return out
}
