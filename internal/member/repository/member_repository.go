package repository

import (
	"context"

	"social_network_service/internal/member/domain"
	"social_network_service/pkg/database"
	errprocess "social_network_service/pkg/err"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MemberCollection users collection name
const MemberCollection = "users"

// Directory 會員與好友關係查詢
type Directory interface {
	// FindProfile 不存在或已凍結時回傳 NotFound
	FindProfile(ctx context.Context, memberID string) (*domain.Profile, error)
	FindProfiles(ctx context.Context, memberIDs []string) ([]domain.Profile, error)
	// IsFriend friendID 是否在 memberID 的好友名單
	IsFriend(ctx context.Context, memberID, friendID string) (bool, error)
	// CountFriends candidates 中有幾位把 memberID 列為好友
	CountFriends(ctx context.Context, memberID string, candidates []string) (int64, error)
}

// MemberRepository Mongo 版 Directory，另外提供好友名單維護
type MemberRepository interface {
	Directory
	CreateMembers(ctx context.Context, members ...domain.Member) ([]domain.Member, error)
	EditFriends(ctx context.Context, memberID string, add, remove []string) error
}

type memberRepository struct {
	repo *database.MongoRepository[domain.Member]
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *mongo.Database) MemberRepository {
	return &memberRepository{repo: database.NewMongoRepository[domain.Member](db, MemberCollection)}
}

// NewMemberRepositoryWithCollection create a MemberRepository on any collection (tests)
func NewMemberRepositoryWithCollection(coll database.Collection) MemberRepository {
	return &memberRepository{repo: database.NewMongoRepositoryWithCollection[domain.Member](coll, MemberCollection)}
}

var profileProjection = bson.M{
	"firstName":      1,
	"lastName":       1,
	"email":          1,
	"gender":         1,
	"profilePicture": 1,
}

func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func (r *memberRepository) FindProfile(ctx context.Context, memberID string) (*domain.Profile, error) {
	m, err := r.repo.FindByID(ctx, memberID, database.WithProjection(profileProjection))
	if err != nil {
		if errprocess.Is(err, errprocess.Validation) || errprocess.Is(err, errprocess.NotFound) {
			return nil, errprocess.New(errprocess.NotFound, "member not found")
		}
		return nil, err
	}
	p := m.Profile()
	return &p, nil
}

func (r *memberRepository) FindProfiles(ctx context.Context, memberIDs []string) ([]domain.Profile, error) {
	members, err := r.repo.Find(ctx,
		bson.M{"_id": bson.M{"$in": objectIDs(memberIDs)}},
		database.WithProjection(profileProjection),
	)
	if err != nil {
		return nil, err
	}

	// 依照傳入順序回傳
	byID := make(map[string]domain.Profile, len(members))
	for i := range members {
		byID[members[i].ID.Hex()] = members[i].Profile()
	}
	out := make([]domain.Profile, 0, len(members))
	for _, id := range memberIDs {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memberRepository) IsFriend(ctx context.Context, memberID, friendID string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(memberID)
	if err != nil {
		return false, nil
	}
	n, err := r.repo.Count(ctx, bson.M{"_id": oid, "friends": friendID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *memberRepository) CountFriends(ctx context.Context, memberID string, candidates []string) (int64, error) {
	if len(candidates) == 0 {
		return 0, nil
	}
	return r.repo.Count(ctx, bson.M{
		"_id":     bson.M{"$in": objectIDs(candidates)},
		"friends": memberID,
	})
}

func (r *memberRepository) CreateMembers(ctx context.Context, members ...domain.Member) ([]domain.Member, error) {
	return r.repo.Create(ctx, members...)
}

func (r *memberRepository) EditFriends(ctx context.Context, memberID string, add, remove []string) error {
	oid, err := primitive.ObjectIDFromHex(memberID)
	if err != nil {
		return errprocess.Wrap(errprocess.Validation, "invalid member id", err)
	}
	edit := database.ArrayEdit{Field: "friends", Add: add, Remove: remove}
	res, err := r.repo.UpdateOne(ctx, bson.M{"_id": oid}, edit.Pipeline())
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return errprocess.New(errprocess.NotFound, "member not found")
	}
	return nil
}
