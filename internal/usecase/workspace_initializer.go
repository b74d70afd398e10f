package usecase

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/crm-console/internal/config"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"github.com/nguyentranbao-ct/crm-console/internal/repo/mongodb"
	"gopkg.in/yaml.v3"
)

//go:embed default_workspace.yaml
var defaultWorkspaceData []byte

type DefaultWorkspace struct {
	Manager       DefaultOperator        `yaml:"manager"`
	Contacts      []DefaultContact       `yaml:"contacts"`
	Chats         []DefaultChat          `yaml:"chats"`
	QuickReplies  []DefaultQuickReply    `yaml:"quick_replies"`
	KnowledgeBase []DefaultKnowledgeBase `yaml:"knowledge_base"`
}

type DefaultOperator struct {
	Name     string `yaml:"name"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
}

type DefaultContact struct {
	Key           string   `yaml:"key"`
	Name          string   `yaml:"name"`
	Email         string   `yaml:"email"`
	Phone         string   `yaml:"phone"`
	PipelineStage string   `yaml:"pipeline_stage"`
	Value         float64  `yaml:"value"`
	Temperature   string   `yaml:"temperature"`
	LeadSource    string   `yaml:"lead_source"`
	Tags          []string `yaml:"tags"`
}

type DefaultChat struct {
	Contact   string           `yaml:"contact"`
	HandledBy string           `yaml:"handled_by"`
	Messages  []DefaultMessage `yaml:"messages"`
}

type DefaultMessage struct {
	Sender     string `yaml:"sender"`
	Text       string `yaml:"text"`
	MinutesAgo int    `yaml:"minutes_ago"`
}

type DefaultQuickReply struct {
	Shortcut string `yaml:"shortcut"`
	Text     string `yaml:"text"`
}

type DefaultKnowledgeBase struct {
	Title   string   `yaml:"title"`
	Content string   `yaml:"content"`
	Tags    []string `yaml:"tags"`
}

func LoadDefaultWorkspace() (*DefaultWorkspace, error) {
	var ws DefaultWorkspace
	if err := yaml.Unmarshal(defaultWorkspaceData, &ws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default workspace: %w", err)
	}
	return &ws, nil
}

type WorkspaceInitializer struct {
	operators mongodb.OperatorRepository
	store     *WorkspaceStore
	accounts  OperatorAccounts
	messages  mongodb.MessageRepository
	chats     mongodb.ChatRepository
	enabled   bool
	loc       *time.Location
	now       func() time.Time
}

func NewWorkspaceInitializer(
	cfg *config.Config,
	operators mongodb.OperatorRepository,
	chats mongodb.ChatRepository,
	messages mongodb.MessageRepository,
	store *WorkspaceStore,
	accounts OperatorAccounts,
) *WorkspaceInitializer {
	return &WorkspaceInitializer{
		operators: operators,
		store:     store,
		accounts:  accounts,
		messages:  messages,
		chats:     chats,
		enabled:   cfg.Console.SeedWorkspace,
		loc:       cfg.Console.Location(),
		now:       time.Now,
	}
}

// Seed fills an empty workspace with a manager and sample data. It does
// nothing once any operator exists.
func (w *WorkspaceInitializer) Seed(ctx context.Context) error {
	log := logger.Named("seed")
	if !w.enabled {
		log.Debug("Workspace seeding disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.operators.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count operators: %w", err)
	}
	if n > 0 {
		log.Debugw("Workspace already initialized", "operators", n)
		return nil
	}

	ws, err := LoadDefaultWorkspace()
	if err != nil {
		return err
	}

	manager, err := w.accounts.CreateOperator(ctx, &models.Operator{
		Name:  ws.Manager.Name,
		Login: ws.Manager.Login,
		Role:  models.RoleManager,
	}, ws.Manager.Password)
	if err != nil {
		return fmt.Errorf("failed to create manager '%s': %w", ws.Manager.Login, err)
	}
	log.Infow("Created default manager", "login", manager.Login)

	contacts := make(map[string]*models.Contact, len(ws.Contacts))
	for _, dc := range ws.Contacts {
		ct, err := w.store.CreateContact(ctx, &models.Contact{
			Name:          dc.Name,
			Email:         dc.Email,
			Phone:         dc.Phone,
			PipelineStage: models.PipelineStage(dc.PipelineStage),
			Value:         dc.Value,
			Temperature:   models.Temperature(dc.Temperature),
			LeadSource:    dc.LeadSource,
			Tags:          dc.Tags,
			OwnerID:       manager.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to create contact '%s': %w", dc.Name, err)
		}
		contacts[dc.Key] = ct
	}

	for _, dc := range ws.Chats {
		ct, ok := contacts[dc.Contact]
		if !ok {
			log.Warnw("Chat references unknown contact", "contact", dc.Contact)
			continue
		}
		if err := w.seedChat(ctx, dc, ct, manager); err != nil {
			return err
		}
	}

	for _, qr := range ws.QuickReplies {
		if _, err := w.store.CreateQuickReply(ctx, &models.QuickReply{Shortcut: qr.Shortcut, Text: qr.Text}); err != nil {
			return fmt.Errorf("failed to create quick reply '%s': %w", qr.Shortcut, err)
		}
	}
	for _, kb := range ws.KnowledgeBase {
		item := &models.KnowledgeBaseItem{Title: kb.Title, Content: kb.Content, Tags: kb.Tags}
		if _, err := w.store.CreateKnowledgeBaseItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create knowledge base item '%s': %w", kb.Title, err)
		}
	}

	log.Infow("Workspace seeded",
		"contacts", len(contacts),
		"chats", len(ws.Chats))
	return nil
}

// seedChat writes messages directly so that seeding does not publish
// realtime events.
func (w *WorkspaceInitializer) seedChat(ctx context.Context, dc DefaultChat, ct *models.Contact, manager *models.Operator) error {
	handledBy := models.Bot
	if dc.HandledBy == "manager" {
		handledBy = models.HandledByOperator(manager.ID)
	}
	chat, err := w.chats.Create(ctx, &models.Chat{
		ContactID:   ct.ID,
		ContactName: ct.Name,
		AvatarURL:   ct.AvatarURL,
		HandledBy:   handledBy,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat for '%s': %w", ct.Name, err)
	}

	now := w.now().UTC()
	msgs := make([]*models.Message, 0, len(dc.Messages))
	var latest *models.Message
	for _, dm := range dc.Messages {
		m := &models.Message{
			ChatID:    chat.ID,
			Text:      dm.Text,
			Type:      models.MessageTypeText,
			Status:    models.StatusSent,
			Timestamp: now.Add(-time.Duration(dm.MinutesAgo) * time.Minute),
		}
		switch dm.Sender {
		case "contact":
			m.Sender = models.ContactSender(ct.ID)
		case "operator":
			m.Sender = models.OperatorSender(manager.ID)
			m.Status = models.StatusRead
		default:
			m.Sender = models.BotSender()
		}
		msgs = append(msgs, m)
		if latest == nil || m.Timestamp.After(latest.Timestamp) {
			latest = m
		}
	}
	if err := w.messages.CreateMany(ctx, msgs); err != nil {
		return fmt.Errorf("failed to create messages for '%s': %w", ct.Name, err)
	}
	if latest != nil {
		ts := latest.Timestamp.In(w.loc).Format(summaryLayout)
		if err := w.chats.UpdateSummary(ctx, chat.ID, latest.Text, ts); err != nil {
			return fmt.Errorf("failed to update chat summary: %w", err)
		}
	}
	return nil
}
