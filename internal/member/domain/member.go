package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gender 會員性別
type Gender string

const (
	// GenderMale male
	GenderMale Gender = "male"
	// GenderFemale female
	GenderFemale Gender = "female"
)

// Member users collection，由會員服務維護，這裡只讀
type Member struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName      string             `bson:"firstName" json:"firstName"`
	LastName       string             `bson:"lastName" json:"lastName"`
	Email          string             `bson:"email" json:"email"`
	Gender         Gender             `bson:"gender,omitempty" json:"gender,omitempty"`
	ProfilePicture string             `bson:"profilePicture,omitempty" json:"profilePicture,omitempty"`
	Friends        []string           `bson:"friends,omitempty" json:"-"`
	Version        int64              `bson:"version" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"-"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"-"`
	FreezedAt      *time.Time         `bson:"freezedAt,omitempty" json:"-"`
}

// BeforeCreate set timestamps
func (m *Member) BeforeCreate(now time.Time) {
	m.CreatedAt = now
	m.UpdatedAt = now
}

// SetObjectID set generated id
func (m *Member) SetObjectID(id primitive.ObjectID) {
	m.ID = id
}

// Profile 對外公開的會員資料
type Profile struct {
	ID             string `json:"_id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Gender         Gender `json:"gender,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// UserName first + last
func (p Profile) UserName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Profile public fields only
func (m *Member) Profile() Profile {
	return Profile{
		ID:             m.ID.Hex(),
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Email:          m.Email,
		Gender:         m.Gender,
		ProfilePicture: m.ProfilePicture,
	}
}
