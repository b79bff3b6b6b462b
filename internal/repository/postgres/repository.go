package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresRepository struct {
	Post *postRepo
	User *userRepo
}

func New(logger *zap.Logger, db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		Post: newPostRepo(logger, db),
		User: newUserRepo(db),
	}
}
