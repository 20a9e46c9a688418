package db

import (
	"context"
	"errors"
	"fmt"
	"road-editor/model"

	"gorm.io/gorm"
)

// UserStore 用户存储
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// DocumentStore 上传文档存储
type DocumentStore interface {
	Save(ctx context.Context, doc *model.RoadDocument) error
	Get(ctx context.Context, id string) (*model.RoadDocument, error)
	List(ctx context.Context) ([]model.RoadDocument, error)
}

// Repos 同一个连接上的全部存储
type Repos struct {
	Users     UserRepo
	Documents DocumentRepo
	Axes      AxisRepo
}

func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		Users:     UserRepo{DB: db},
		Documents: DocumentRepo{DB: db},
		Axes:      AxisRepo{DB: db},
	}
}

// UserRepo 基于 gorm 的用户存储
type UserRepo struct {
	DB *gorm.DB
}

func (r UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

func (r UserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.DB.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	return nil
}

// DocumentRepo 基于 gorm 的文档存储
type DocumentRepo struct {
	DB *gorm.DB
}

func (r DocumentRepo) Save(ctx context.Context, doc *model.RoadDocument) error {
	if err := r.DB.WithContext(ctx).Save(doc).Error; err != nil {
		return fmt.Errorf("保存文档失败: %w", err)
	}
	return nil
}

func (r DocumentRepo) Get(ctx context.Context, id string) (*model.RoadDocument, error) {
	var doc model.RoadDocument
	err := r.DB.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询文档失败: %w", err)
	}
	return &doc, nil
}

// List 按上传时间倒序列出文档, 不含正文
func (r DocumentRepo) List(ctx context.Context) ([]model.RoadDocument, error) {
	var docs []model.RoadDocument
	err := r.DB.WithContext(ctx).Select("id", "name", "created_at").Order("created_at desc").Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("查询文档列表失败: %w", err)
	}
	return docs, nil
}

// AxisRepo 编辑器轴线存储, 每次整组替换
type AxisRepo struct {
	DB *gorm.DB
}

func (r AxisRepo) SaveAxes(ctx context.Context, sessionID string, axes []model.EditableAxis) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.StoredAxis{}).Error; err != nil {
			return fmt.Errorf("删除旧轴线失败: %w", err)
		}
		if len(axes) == 0 {
			return nil
		}
		stored := make([]model.StoredAxis, len(axes))
		for i := range axes {
			stored[i] = axes[i].ToStored(sessionID, i)
		}
		if err := tx.CreateInBatches(stored, 100).Error; err != nil {
			return fmt.Errorf("写入轴线失败: %w", err)
		}
		return nil
	})
}

func (r AxisRepo) LoadAxes(ctx context.Context, sessionID string) ([]model.EditableAxis, error) {
	var stored []model.StoredAxis
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).Order("position").Find(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("读取轴线失败: %w", err)
	}
	axes := make([]model.EditableAxis, len(stored))
	for i := range stored {
		axes[i] = stored[i].Axis()
	}
	return axes, nil
}
