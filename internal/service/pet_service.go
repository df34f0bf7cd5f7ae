package service

import (
	"context"
	"fmt"

	"tikitaka-go/internal/model"
	"tikitaka-go/internal/repository"
)

// PetService 提供宠物档案的查询。档案只能通过引导问答创建。
type PetService interface {
	GetBySession(ctx context.Context, sessionID string) (*model.Pet, error)
	GetByID(ctx context.Context, petID string) (*model.Pet, error)
}

type petService struct {
	petRepo repository.PetRepository
}

// NewPetService 创建一个新的 PetService 实例。
func NewPetService(petRepo repository.PetRepository) PetService {
	return &petService{petRepo: petRepo}
}

func (s *petService) GetBySession(ctx context.Context, sessionID string) (*model.Pet, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	pet, err := s.petRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("查询宠物档案失败: %w", err)
	}
	if pet == nil {
		return nil, ErrPetNotFound
	}
	return pet, nil
}

func (s *petService) GetByID(ctx context.Context, petID string) (*model.Pet, error) {
	if petID == "" {
		return nil, ErrPetNotFound
	}
	pet, err := s.petRepo.FindByID(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("查询宠物档案失败: %w", err)
	}
	if pet == nil {
		return nil, ErrPetNotFound
	}
	return pet, nil
}
