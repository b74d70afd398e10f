package models

import (
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// PipelineStage is a contact's position in the sales funnel.
type PipelineStage string

const (
	StageLead        PipelineStage = "lead"
	StageContacted   PipelineStage = "contacted"
	StageProposal    PipelineStage = "proposal"
	StageNegotiation PipelineStage = "negotiation"
	StageWon         PipelineStage = "won"
	StageLost        PipelineStage = "lost"
)

type Temperature string

const (
	TemperatureCold Temperature = "cold"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

// Contact is an external CRM lead or customer.
type Contact struct {
	ID             ObjectID      `bson:"_id,omitempty" json:"id"`
	Name           string        `bson:"name" json:"name" validate:"required"`
	Email          string        `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Phone          string        `bson:"phone,omitempty" json:"phone,omitempty"`
	AvatarURL      string        `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Tags           []string      `bson:"tags" json:"tags"`
	PipelineStage  PipelineStage `bson:"pipeline_stage" json:"pipeline_stage" validate:"required,oneof=lead contacted proposal negotiation won lost"`
	OwnerID        ObjectID      `bson:"owner_id" json:"owner_id" validate:"required"`
	Value          float64       `bson:"value" json:"value" validate:"gte=0"`
	Temperature    Temperature   `bson:"temperature,omitempty" json:"temperature,omitempty" validate:"omitempty,oneof=cold warm hot"`
	NextActionDate string        `bson:"next_action_date,omitempty" json:"next_action_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	LeadSource     string        `bson:"lead_source,omitempty" json:"lead_source,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

func (Contact) CollectionName() string {
	return "contacts"
}

func (c Contact) GetObjectID() ObjectID {
	return c.ID
}

func (c Contact) GetUpdates() any {
	return bson.M{
		"name":             c.Name,
		"email":            c.Email,
		"phone":            c.Phone,
		"avatar_url":       c.AvatarURL,
		"tags":             c.Tags,
		"pipeline_stage":   c.PipelineStage,
		"owner_id":         c.OwnerID,
		"value":            c.Value,
		"temperature":      c.Temperature,
		"next_action_date": c.NextActionDate,
		"lead_source":      c.LeadSource,
		"updated_at":       time.Now(),
	}
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first-seen order.
func (c *Contact) NormalizeTags() {
	out := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	c.Tags = out
}

func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	out := *c
	out.Tags = slices.Clone(c.Tags)
	return &out
}
