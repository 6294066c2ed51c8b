package repository

import (
	"context"
	"errors"

	"social_network_service/internal/member/domain"
	errprocess "social_network_service/pkg/err"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresSchema member / friendship tables used by the postgres directory
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS member (
	id              TEXT PRIMARY KEY,
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL UNIQUE,
	gender          TEXT NOT NULL DEFAULT '',
	profile_picture TEXT NOT NULL DEFAULT '',
	freezed_at      TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS member_friend (
	member_id TEXT NOT NULL REFERENCES member(id),
	friend_id TEXT NOT NULL REFERENCES member(id),
	PRIMARY KEY (member_id, friend_id)
);`

type postgresDirectory struct {
	db *pgxpool.Pool
}

// NewPostgresDirectory create a Directory on postgres
func NewPostgresDirectory(db *pgxpool.Pool) Directory {
	return &postgresDirectory{db: db}
}

const profileColumns = "id, first_name, last_name, email, gender, profile_picture"

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		p      domain.Profile
		gender string
	)
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &gender, &p.ProfilePicture)
	p.Gender = domain.Gender(gender)
	return p, err
}

func (r *postgresDirectory) FindProfile(ctx context.Context, memberID string) (*domain.Profile, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+profileColumns+" FROM member WHERE id = $1 AND freezed_at IS NULL", memberID)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errprocess.New(errprocess.NotFound, "member not found")
		}
		return nil, errprocess.Wrap(errprocess.TransientStore, "find member", err)
	}
	return &p, nil
}

func (r *postgresDirectory) FindProfiles(ctx context.Context, memberIDs []string) ([]domain.Profile, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+profileColumns+" FROM member WHERE id = ANY($1) AND freezed_at IS NULL", memberIDs)
	if err != nil {
		return nil, errprocess.Wrap(errprocess.TransientStore, "find members", err)
	}
	defer rows.Close()

	byID := map[string]domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errprocess.Wrap(errprocess.TransientStore, "scan member", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, errprocess.Wrap(errprocess.TransientStore, "read members", err)
	}

	out := make([]domain.Profile, 0, len(byID))
	for _, id := range memberIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *postgresDirectory) IsFriend(ctx context.Context, memberID, friendID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM member_friend f
			JOIN member m ON m.id = f.member_id
			WHERE f.member_id = $1 AND f.friend_id = $2 AND m.freezed_at IS NULL
		)`, memberID, friendID).Scan(&ok)
	if err != nil {
		return false, errprocess.Wrap(errprocess.TransientStore, "check friendship", err)
	}
	return ok, nil
}

func (r *postgresDirectory) CountFriends(ctx context.Context, memberID string, candidates []string) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	var n int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT f.member_id) FROM member_friend f
		JOIN member m ON m.id = f.member_id
		WHERE f.member_id = ANY($1) AND f.friend_id = $2 AND m.freezed_at IS NULL`,
		candidates, memberID).Scan(&n)
	if err != nil {
		return 0, errprocess.Wrap(errprocess.TransientStore, "count friends", err)
	}
	return n, nil
}
