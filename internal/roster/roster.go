package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"classmark/internal/model"
	"classmark/internal/store"
)

// Service reads the fixed participant roster. Writes happen once, at
// bootstrap, through Seed.
type Service struct {
	store store.Store
}

// New creates a roster service over the given store.
func New(s store.Store) *Service {
	return &Service{store: s}
}

// List returns all participants ordered by (group, name).
func (s *Service) List(ctx context.Context) ([]model.Participant, error) {
	return s.store.ListParticipants(ctx)
}

// Get returns a participant by id or model.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (model.Participant, error) {
	return s.store.GetParticipant(ctx, id)
}

// Seed provisions participants, skipping ids that already exist.
func (s *Service) Seed(ctx context.Context, participants []model.Participant) error {
	for _, p := range participants {
		if p.ID <= 0 {
			return model.NewValidationError("id", "must be positive")
		}
		if strings.TrimSpace(p.Name) == "" {
			return model.NewValidationError("name", "must not be empty")
		}
	}
	return s.store.SeedParticipants(ctx, participants)
}

// LoadFile reads a roster seed from a JSON file:
// [{"id": 1, "name": "...", "group": "..."}, ...]
func LoadFile(path string) ([]model.Participant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}
	var participants []model.Participant
	if err := json.Unmarshal(data, &participants); err != nil {
		return nil, fmt.Errorf("parse roster file %s: %w", path, err)
	}
	return participants, nil
}

// DemoRoster is the built-in dev roster used when no seed file is configured.
func DemoRoster() []model.Participant {
	return []model.Participant{
		{ID: 1, Name: "Ivan Petrov", Group: "101"},
		{ID: 2, Name: "Maria Sidorova", Group: "101"},
		{ID: 3, Name: "Alexey Ivanov", Group: "102"},
	}
}
