package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/internal/agent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Agent, error) {
	var agent domain.Agent
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, name, phone, email, type, wallet_balance, active, created_at, updated_at
		 FROM agents WHERE id = ?`,
		id,
	).Scan(&agent).Error
	if err != nil {
		return nil, err
	}
	if agent.ID == 0 {
		return nil, nil
	}
	return &agent, nil
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM agents WHERE active = true AND type <> ?`,
		domain.TypeOperator,
	).Scan(&count).Error
	return count, err
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, offset, limit int) ([]*domain.Agent, error) {
	var agents []*domain.Agent
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, name, phone, email, type, wallet_balance, active, created_at, updated_at
		 FROM agents
		 WHERE active = true AND type <> ?
		 ORDER BY id ASC
		 LIMIT ? OFFSET ?`,
		domain.TypeOperator,
		limit,
		offset,
	).Scan(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}
