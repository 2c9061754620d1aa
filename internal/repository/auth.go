package repository

import (
	"backend/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type AuthRepository interface {
	CreateUser(user *models.User) error
	GetUserByUsername(username string) (*models.User, error)
	UsernameExists(username string) (bool, error)
}

type authRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func NewAuthRepository(db *sqlx.DB, log *logrus.Logger) AuthRepository {
	return &authRepository{db: db, log: log}
}

func (r *authRepository) CreateUser(user *models.User) error {
	query := `INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, created_at`
	return r.db.QueryRowx(query, user.Username, user.PasswordHash).StructScan(user)
}

func (r *authRepository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`
	err := r.db.Get(&user, query, username)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *authRepository) UsernameExists(username string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM users WHERE username = $1`
	err := r.db.Get(&count, query, username)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
