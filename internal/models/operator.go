package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type Role string

const (
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

func (r Role) Valid() bool {
	return r == RoleManager || r == RoleAgent
}

// Operator is an internal user of the console.
type Operator struct {
	ID           ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"name" json:"name" validate:"required"`
	Login        string    `bson:"login" json:"login" validate:"required,email"`
	Role         Role      `bson:"role" json:"role" validate:"required,oneof=manager agent"`
	AvatarURL    string    `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	PasswordHash string    `bson:"password_hash,omitempty" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

func (Operator) CollectionName() string {
	return "operators"
}

func (o Operator) GetObjectID() ObjectID {
	return o.ID
}

// GetUpdates never touches the password hash, which has its own write path.
func (o Operator) GetUpdates() any {
	return bson.M{
		"name":       o.Name,
		"login":      o.Login,
		"role":       o.Role,
		"avatar_url": o.AvatarURL,
		"updated_at": time.Now(),
	}
}

func (o *Operator) IsManager() bool {
	return o != nil && o.Role == RoleManager
}

func (o *Operator) Clone() *Operator {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
