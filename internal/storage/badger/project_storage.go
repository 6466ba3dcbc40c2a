package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/keyrelay/keyrelay/internal/common"
	"github.com/keyrelay/keyrelay/internal/interfaces"
	"github.com/keyrelay/keyrelay/internal/models"
)

type projectStorage struct {
	store  *Store
	logger *common.Logger
}

// NewProjectStorage creates a ProjectStore backed by BadgerHold.
func NewProjectStorage(store *Store, logger *common.Logger) *projectStorage {
	return &projectStorage{store: store, logger: logger}
}

func (s *projectStorage) Get(_ context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := s.store.db.Get(id, &project); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("project '%s': %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project '%s': %w", id, err)
	}
	return &project, nil
}

func (s *projectStorage) Save(_ context.Context, project *models.Project) error {
	now := time.Now()

	var existing models.Project
	if err := s.store.db.Get(project.ID, &existing); err == nil {
		project.CreatedAt = existing.CreatedAt
	} else if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now

	if err := s.store.db.Upsert(project.ID, project); err != nil {
		return fmt.Errorf("failed to save project '%s': %w", project.ID, err)
	}
	s.logger.Debug().Str("project_id", project.ID).Msg("Project saved")
	return nil
}

func (s *projectStorage) Delete(_ context.Context, id string) error {
	err := s.store.db.Delete(id, models.Project{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("project '%s': %w", id, interfaces.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete project '%s': %w", id, err)
	}
	return nil
}

func (s *projectStorage) List(_ context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	if err := s.store.db.Find(&projects, nil); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (s *projectStorage) Touch(_ context.Context, id string, at time.Time) error {
	var project models.Project
	if err := s.store.db.Get(id, &project); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("project '%s': %w", id, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to get project '%s': %w", id, err)
	}
	project.UpdatedAt = at
	if err := s.store.db.Upsert(id, &project); err != nil {
		return fmt.Errorf("failed to touch project '%s': %w", id, err)
	}
	return nil
}
