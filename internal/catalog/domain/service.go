package domain

// Service exposes the read-only plan catalog.
type Service interface {
	GetPackage(role Role, packageID string) (Package, error)
	PackagesForRole(role Role) []Package
}
