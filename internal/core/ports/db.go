package ports

import "github.com/vcard-network/depositd/internal/core/domain"

// RepoManager gives access to the repositories of the domain entities.
type RepoManager interface {
	DepositRepository() domain.DepositRepository
	Close()
}
