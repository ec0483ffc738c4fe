// Package mongostore implements the user, refresh token and audit stores on
// MongoDB. Expired refresh tokens are also removed by a TTL index.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"user-management-backend/internal/models"
	"user-management-backend/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection  = "users"
	tokensCollection = "refresh_tokens"
	auditCollection  = "audit_logs"
)

type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	tokens *mongo.Collection
	audit  *mongo.Collection
	now    func() time.Time
}

// Connect dials uri, pings the server and ensures indexes on database dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := newStore(client, client.Database(dbName))
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client: client,
		users:  db.Collection(usersCollection),
		tokens: db.Collection(tokensCollection),
		audit:  db.Collection(auditCollection),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and TTL indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "is_deleted", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = s.tokens.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("create refresh token indexes: %w", err)
	}

	_, err = s.audit.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

// FindUserByEmail finds a user by normalized email
func (s *Store) FindUserByEmail(ctx context.Context, email string, includeDeleted bool) (*models.User, error) {
	filter := bson.D{{Key: "email", Value: models.NormalizeEmail(email)}}
	if !includeDeleted {
		filter = append(filter, bson.E{Key: "is_deleted", Value: false})
	}
	return s.findUser(ctx, filter)
}

// FindUserByID finds a non-deleted user by ID
func (s *Store) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}, {Key: "is_deleted", Value: false}})
}

func (s *Store) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	now := s.now()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Email = models.NormalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// CreateUserWithSession inserts user and then its first refresh token. A
// standalone server has no multi-document transactions, so a failed token
// insert removes the user again.
func (s *Store) CreateUserWithSession(ctx context.Context, user *models.User, session *models.RefreshToken) error {
	if err := s.CreateUser(ctx, user); err != nil {
		return err
	}
	session.UserID = user.ID
	if err := s.CreateRefreshToken(ctx, session); err != nil {
		if _, delErr := s.users.DeleteOne(context.WithoutCancel(ctx), bson.D{{Key: "_id", Value: user.ID}}); delErr != nil {
			return fmt.Errorf("insert refresh token: %v (user cleanup failed: %v)", err, delErr)
		}
		return fmt.Errorf("insert refresh token: %v", err)
	}
	return nil
}

// UpdateUser applies the non-nil fields of upd and returns the stored user
func (s *Store) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	set := bson.D{{Key: "updated_at", Value: s.now()}}
	if upd.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *upd.Name})
	}
	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: models.NormalizeEmail(*upd.Email)})
	}
	if upd.PasswordHash != nil {
		set = append(set, bson.E{Key: "password_hash", Value: *upd.PasswordHash})
	}
	if upd.Role != nil {
		set = append(set, bson.E{Key: "role", Value: *upd.Role})
	}

	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "is_deleted", Value: false}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, repository.ErrNotFound
	}
	return s.FindUserByID(ctx, id)
}

// SoftDeleteUser flags a user as deleted
func (s *Store) SoftDeleteUser(ctx context.Context, id string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "is_deleted", Value: false}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "is_deleted", Value: true},
			{Key: "updated_at", Value: s.now()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListUsers returns a page of non-deleted users, newest first, and the total count
func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	filter := bson.D{{Key: "is_deleted", Value: false}}

	total, err := s.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("decode users: %w", err)
	}
	return users, total, nil
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
