package memory

import (
	"testing"

	"petgram/internal/repository"
	"petgram/internal/repository/repotest"
)

func TestRepositoryContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) (repository.UserRepository, repository.PostRepository) {
		return NewUserRepository(), NewPostRepository()
	})
}
