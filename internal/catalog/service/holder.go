// Plan catalog loading with hot reload.
package service

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/spf13/viper"
)

// DefaultCatalog is the compiled-in catalog used when no catalog file is
// mounted.
func DefaultCatalog() []domain.Package {
	return []domain.Package{
		{Role: domain.RoleParent, ID: "family_basic", DisplayName: "Family Basic", PriceCents: 499,
			Limits: domain.LimitSet{domain.LimitChildren: 2}},
		{Role: domain.RoleParent, ID: "family_plus", DisplayName: "Family Plus", PriceCents: 999,
			Limits: domain.LimitSet{domain.LimitChildren: 5}},
		{Role: domain.RoleParent, ID: "family_max", DisplayName: "Family Max", PriceCents: 1999,
			Limits: domain.LimitSet{domain.LimitChildren: 10}},

		{Role: domain.RoleSchoolAdmin, ID: "school_starter", DisplayName: "School Starter", PriceCents: 4900,
			Limits: domain.LimitSet{domain.LimitStaff: 10, domain.LimitStudentsPerStaff: 30}},
		{Role: domain.RoleSchoolAdmin, ID: "school_pro", DisplayName: "School Pro", PriceCents: 14900,
			Limits: domain.LimitSet{domain.LimitStaff: 50, domain.LimitStudentsPerStaff: 40}},

		{Role: domain.RoleDistrictAdmin, ID: "district_standard", DisplayName: "District Standard", PriceCents: 49900,
			Limits: domain.LimitSet{domain.LimitSchools: 10, domain.LimitStaffPerSchool: 50, domain.LimitStudentsPerStaff: 35}},
		{Role: domain.RoleDistrictAdmin, ID: "district_enterprise", DisplayName: "District Enterprise", PriceCents: 149900,
			Limits: domain.LimitSet{domain.LimitSchools: 50, domain.LimitStaffPerSchool: 100, domain.LimitStudentsPerStaff: 40}},

		{Role: domain.RoleEmployerAdmin, ID: "workforce_team", DisplayName: "Workforce Team", PriceCents: 9900,
			Limits: domain.LimitSet{domain.LimitStaff: 10, domain.LimitEmployeesPerStaff: 25}},
		{Role: domain.RoleEmployerAdmin, ID: "workforce_scale", DisplayName: "Workforce Scale", PriceCents: 29900,
			Limits: domain.LimitSet{domain.LimitStaff: 50, domain.LimitEmployeesPerStaff: 50}},
	}
}

// Holder serves the current catalog and swaps it atomically on reload.
type Holder struct {
	current atomic.Value // holds []domain.Package
}

// NewHolder reads the catalog file when present, falling back to the
// compiled-in defaults, and watches the file for changes.
func NewHolder(catalogPath string) (*Holder, error) {
	v := viper.New()

	if catalogPath != "" {
		v.SetConfigFile(catalogPath)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yml")
		v.AddConfigPath("/var/lib/rollcall/config")
		v.AddConfigPath("/etc/rollcall")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ROLLCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &Holder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && catalogPath != "" {
			return nil, err
		}
		holder.current.Store(DefaultCatalog())
		return holder, nil
	}

	packages, err := unmarshalCatalog(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(packages)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalCatalog(v)
		if err != nil {
			log.Printf("[catalog] invalid catalog ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[catalog] reloaded from %s", filepath.Base(e.Name))
	})

	return holder, nil
}

// Get returns the current catalog.
func (h *Holder) Get() []domain.Package {
	return h.current.Load().([]domain.Package)
}

func unmarshalCatalog(v *viper.Viper) ([]domain.Package, error) {
	var packages []domain.Package
	if err := v.UnmarshalKey("catalog.packages", &packages); err != nil {
		return nil, err
	}
	if err := validateCatalog(packages); err != nil {
		return nil, err
	}
	return packages, nil
}

func validateCatalog(packages []domain.Package) error {
	if len(packages) == 0 {
		return errors.New("catalog.packages cannot be empty")
	}

	seen := make(map[string]struct{}, len(packages))
	for _, pkg := range packages {
		if pkg.ID == "" {
			return errors.New("catalog package id cannot be empty")
		}
		if pkg.PriceCents < 0 {
			return fmt.Errorf("catalog package %s has negative price", pkg.ID)
		}
		if len(pkg.Limits) == 0 {
			return fmt.Errorf("catalog package %s has no limits", pkg.ID)
		}

		allowed, err := domain.LimitKeysForRole(pkg.Role)
		if err != nil {
			return fmt.Errorf("catalog package %s: role %q cannot own packages", pkg.ID, pkg.Role)
		}
		for key, value := range pkg.Limits {
			if value < 0 {
				return fmt.Errorf("catalog package %s: limit %s is negative", pkg.ID, key)
			}
			if !contains(allowed, key) {
				return fmt.Errorf("catalog package %s: limit %s not valid for role %s", pkg.ID, key, pkg.Role)
			}
		}

		combined := string(pkg.Role) + "/" + pkg.ID
		if _, dup := seen[combined]; dup {
			return fmt.Errorf("catalog package %s duplicated for role %s", pkg.ID, pkg.Role)
		}
		seen[combined] = struct{}{}
	}
	return nil
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
