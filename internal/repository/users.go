package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx 返回绑定到指定事务的仓库副本
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

// GetByWallet 按钱包地址查询用户，地址统一小写
func (r *UserRepository) GetByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", strings.ToLower(walletAddress)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

// GetOrCreateByWallet 首次入金时惰性建档
func (r *UserRepository) GetOrCreateByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	user := &models.User{
		WalletAddress: strings.ToLower(walletAddress),
		Status:        models.UserStatusActive,
	}
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", user.WalletAddress).
		FirstOrCreate(user).Error
	return user, err
}

// GetDirects 获取直推下级
func (r *UserRepository) GetDirects(ctx context.Context, sponsorID uint64) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("sponsor_id = ?", sponsorID).
		Order("created_at DESC").
		Find(&users).Error
	return users, err
}

// GetBelowRank 获取未达到最高段位的用户，段位升序
func (r *UserRepository) GetBelowRank(ctx context.Context, maxRank int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("current_rank < ?", maxRank).
		Order("current_rank ASC").
		Find(&users).Error
	return users, err
}

// GetByRank 获取指定段位的全部用户
func (r *UserRepository) GetByRank(ctx context.Context, rank int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("current_rank = ?", rank).
		Find(&users).Error
	return users, err
}

// UpdateRank 段位只增不减，由调用方保证单调性
func (r *UserRepository) UpdateRank(ctx context.Context, userID uint64, newRank int) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"current_rank":    newRank,
			"rank_updated_at": &now,
		}).Error
}

// SetWithdrawalOverride 设置提现地址覆盖，仅管理员审计路径调用
func (r *UserRepository) SetWithdrawalOverride(ctx context.Context, userID uint64, address string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("withdrawal_address_override", strings.ToLower(address)).Error
}

// SetSponsor 绑定推荐人，写入前校验不成环
func (r *UserRepository) SetSponsor(ctx context.Context, userID, sponsorID uint64) error {
	if userID == sponsorID {
		return errors.New("user cannot sponsor themselves")
	}

	// 沿推荐链上行，发现回到自己即为环
	cur := sponsorID
	for depth := 0; depth < 64; depth++ {
		ancestor, err := r.GetByID(ctx, cur)
		if err != nil {
			return err
		}
		if ancestor == nil || ancestor.SponsorID == nil {
			break
		}
		if *ancestor.SponsorID == userID {
			return errors.New("sponsor chain would form a cycle")
		}
		cur = *ancestor.SponsorID
	}

	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND sponsor_id IS NULL", userID).
		Update("sponsor_id", sponsorID).Error
}
