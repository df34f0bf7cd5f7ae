package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tikitaka-go/internal/model"
)

// PetRepository 接口定义了宠物档案的持久化操作。
// 查询不到记录时返回 (nil, nil)。
type PetRepository interface {
	Create(ctx context.Context, pet *model.Pet) error
	FindBySessionID(ctx context.Context, sessionID string) (*model.Pet, error)
	FindByID(ctx context.Context, petID string) (*model.Pet, error)
}

type petRepository struct {
	db *gorm.DB
}

// NewPetRepository 创建一个新的 PetRepository 实例。
func NewPetRepository(db *gorm.DB) PetRepository {
	return &petRepository{db: db}
}

// Create 插入宠物档案。pets.session_id 上的唯一索引保证每个会话只有一份档案。
func (r *petRepository) Create(ctx context.Context, pet *model.Pet) error {
	return r.db.WithContext(ctx).Create(pet).Error
}

// FindBySessionID 按会话查找宠物档案。
func (r *petRepository) FindBySessionID(ctx context.Context, sessionID string) (*model.Pet, error) {
	var pet model.Pet
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&pet).Error
	return nilIfNotFound(&pet, err)
}

// FindByID 按 ID 查找宠物档案，用于分享的只读查看。
func (r *petRepository) FindByID(ctx context.Context, petID string) (*model.Pet, error) {
	var pet model.Pet
	err := r.db.WithContext(ctx).Where("id = ?", petID).First(&pet).Error
	return nilIfNotFound(&pet, err)
}

// nilIfNotFound 把 gorm.ErrRecordNotFound 转换为空结果，其余错误原样返回。
func nilIfNotFound[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
