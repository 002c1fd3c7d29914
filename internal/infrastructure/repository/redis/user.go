package redis

import (
	"context"
	stderrors "errors"
	"sort"
	"strconv"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"user-api/internal/domain/entity"
	"user-api/internal/domain/errors"
	"user-api/internal/domain/repository"
)

// maxTxRetries bounds optimistic WATCH retries on key contention
const maxTxRetries = 3

// UserRepository implements repository.UserRepository on Redis.
//
// Layout under the configured prefix:
//
//	<p>:users:seq              INCR counter for IDs
//	<p>:users:<id>             hash with the user's fields and version
//	<p>:users:ids              sorted set, score = id
//	<p>:users:by_birth_date    sorted set, score = days since the Unix epoch
//	<p>:users:email:<email>    string holding the owning id
type UserRepository struct {
	client redis.UniversalClient
	keys   keySpace
	tracer trace.Tracer
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a Redis backed user repository
func NewUserRepository(client redis.UniversalClient, prefix string, tracer trace.Tracer) *UserRepository {
	return &UserRepository{client: client, keys: keySpace{prefix: prefix}, tracer: tracer}
}

func (r *UserRepository) start(ctx context.Context, name, op string) (context.Context, trace.Span) {
	ctx, span := r.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", op),
		attribute.String("db.collection", "users"),
	)
	return ctx, span
}

// Create allocates an ID and stores the user if its email is free
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ctx, span := r.start(ctx, "UserRepository.Create", "INSERT")
	defer span.End()

	emailKey := r.keys.email(user.Email())

	id, err := r.client.Incr(ctx, r.keys.seq()).Result()
	if err != nil {
		return dbError("failed to allocate user id", err)
	}

	next := user.Clone()
	next.SetID(entity.UserID(id))
	next.SetVersion(1)

	txf := func(tx *redis.Tx) error {
		taken, err := tx.Exists(ctx, emailKey).Result()
		if err != nil {
			return err
		}
		if taken > 0 {
			return errors.ErrUserAlreadyExists.WithContext("email", user.Email().String())
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, emailKey, id, 0)
			pipe.HSet(ctx, r.keys.user(next.ID()), encodeUser(next))
			pipe.ZAdd(ctx, r.keys.ids(), &redis.Z{Score: float64(id), Member: next.ID().String()})
			indexBirthDate(ctx, pipe, r.keys, next)
			return nil
		})
		return err
	}

	if err := r.watch(ctx, txf, emailKey); err != nil {
		span.RecordError(err)
		return err
	}

	user.SetID(next.ID())
	user.SetVersion(next.Version())
	span.SetAttributes(attribute.String("user.id", user.ID().String()))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id entity.UserID) (*entity.User, error) {
	ctx, span := r.start(ctx, "UserRepository.GetByID", "SELECT")
	span.SetAttributes(attribute.String("user.id", id.String()))
	defer span.End()

	fields, err := r.client.HGetAll(ctx, r.keys.user(id)).Result()
	if err != nil {
		return nil, dbError("failed to get user by id", err)
	}
	if len(fields) == 0 {
		return nil, errors.ErrUserNotFound.WithContext("id", id.String())
	}
	return decodeUser(id, fields)
}

// List retrieves all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	ctx, span := r.start(ctx, "UserRepository.List", "SELECT")
	defer span.End()

	members, err := r.client.ZRange(ctx, r.keys.ids(), 0, -1).Result()
	if err != nil {
		return nil, dbError("failed to list users", err)
	}

	users, err := r.load(ctx, members)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID() < users[j].ID() })

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// ListByBirthDateBetween retrieves users born within [start, end]
func (r *UserRepository) ListByBirthDateBetween(ctx context.Context, start, end entity.Date) ([]*entity.User, error) {
	ctx, span := r.start(ctx, "UserRepository.ListByBirthDateBetween", "SELECT")
	span.SetAttributes(
		attribute.String("range.start", start.String()),
		attribute.String("range.end", end.String()),
	)
	defer span.End()

	members, err := r.client.ZRangeByScore(ctx, r.keys.byBirthDate(), &redis.ZRangeBy{
		Min: strconv.FormatInt(dayNumber(start), 10),
		Max: strconv.FormatInt(dayNumber(end), 10),
	}).Result()
	if err != nil {
		return nil, dbError("failed to search users by birth date", err)
	}

	users, err := r.load(ctx, members)
	if err != nil {
		return nil, err
	}
	// Members sharing a score come back in lexical order, so re-sort by id
	sort.Slice(users, func(i, j int) bool {
		bi, bj := users[i].BirthDate(), users[j].BirthDate()
		if !bi.Equal(bj) {
			return bi.Before(bj)
		}
		return users[i].ID() < users[j].ID()
	})

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// Update stores user when the stored version equals user.Version()
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	ctx, span := r.start(ctx, "UserRepository.Update", "UPDATE")
	span.SetAttributes(
		attribute.String("user.id", user.ID().String()),
		attribute.Int64("user.version", user.Version()),
	)
	defer span.End()

	userKey := r.keys.user(user.ID())
	newEmailKey := r.keys.email(user.Email())
	next := user.Clone()
	next.SetVersion(user.Version() + 1)

	txf := func(tx *redis.Tx) error {
		stored, err := tx.HMGet(ctx, userKey, fieldVersion, fieldEmail).Result()
		if err != nil {
			return err
		}
		if stored[0] == nil {
			return errors.ErrUserNotFound.WithContext("id", user.ID().String())
		}
		version, _ := strconv.ParseInt(stored[0].(string), 10, 64)
		if version != user.Version() {
			return errors.ErrVersionConflict.
				WithContext("id", user.ID().String()).
				WithContext("expected_version", user.Version()).
				WithContext("actual_version", version)
		}

		oldEmail, _ := stored[1].(string)
		emailChanged := oldEmail != user.Email().String()
		if emailChanged {
			owner, err := tx.Get(ctx, newEmailKey).Result()
			if err != nil && !stderrors.Is(err, redis.Nil) {
				return err
			}
			if err == nil && owner != user.ID().String() {
				return errors.ErrUserAlreadyExists.WithContext("email", user.Email().String())
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, userKey, encodeUser(next))
			if emailChanged {
				pipe.Del(ctx, r.keys.email(entity.Email(oldEmail)))
				pipe.Set(ctx, newEmailKey, user.ID().String(), 0)
			}
			pipe.ZRem(ctx, r.keys.byBirthDate(), user.ID().String())
			indexBirthDate(ctx, pipe, r.keys, next)
			return nil
		})
		return err
	}

	if err := r.watch(ctx, txf, userKey, newEmailKey); err != nil {
		span.RecordError(err)
		return err
	}

	user.SetVersion(next.Version())
	return nil
}

// Delete removes a user and its index entries
func (r *UserRepository) Delete(ctx context.Context, id entity.UserID) error {
	ctx, span := r.start(ctx, "UserRepository.Delete", "DELETE")
	span.SetAttributes(attribute.String("user.id", id.String()))
	defer span.End()

	userKey := r.keys.user(id)

	txf := func(tx *redis.Tx) error {
		email, err := tx.HGet(ctx, userKey, fieldEmail).Result()
		if stderrors.Is(err, redis.Nil) {
			return errors.ErrUserNotFound.WithContext("id", id.String())
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userKey, r.keys.email(entity.Email(email)))
			pipe.ZRem(ctx, r.keys.ids(), id.String())
			pipe.ZRem(ctx, r.keys.byBirthDate(), id.String())
			return nil
		})
		return err
	}

	if err := r.watch(ctx, txf, userKey); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// watch runs txf under WATCH, retrying when a watched key changed
func (r *UserRepository) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = r.client.Watch(ctx, txf, keys...)
		if !stderrors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, redis.TxFailedErr):
		return errors.NewDomainErrorWithCause(errors.ErrCodeVersionConflict, "user was modified concurrently", err)
	}
	if _, ok := errors.AsDomainError(err); ok {
		return err
	}
	return dbError("redis transaction failed", err)
}

// load fetches the hashes for the given id members in one pipeline.
// Members whose hash has vanished are skipped.
func (r *UserRepository) load(ctx context.Context, members []string) ([]*entity.User, error) {
	if len(members) == 0 {
		return []*entity.User{}, nil
	}

	ids := make([]entity.UserID, len(members))
	cmds := make([]*redis.StringStringMapCmd, len(members))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			n, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				return errors.NewDomainErrorWithCause(errors.ErrCodeRepositoryError, "corrupt user index entry", err).
					WithContext("member", m)
			}
			ids[i] = entity.UserID(n)
			cmds[i] = pipe.HGetAll(ctx, r.keys.user(ids[i]))
		}
		return nil
	})
	if err != nil {
		if _, ok := errors.AsDomainError(err); ok {
			return nil, err
		}
		return nil, dbError("failed to load users", err)
	}

	users := make([]*entity.User, 0, len(members))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		user, err := decodeUser(ids[i], fields)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func indexBirthDate(ctx context.Context, pipe redis.Pipeliner, keys keySpace, user *entity.User) {
	if user.BirthDate().IsZero() {
		return
	}
	pipe.ZAdd(ctx, keys.byBirthDate(), &redis.Z{
		Score:  float64(dayNumber(user.BirthDate())),
		Member: user.ID().String(),
	})
}

func dbError(msg string, err error) error {
	return errors.NewDomainErrorWithCause(errors.ErrCodeDatabaseError, msg, err)
}
