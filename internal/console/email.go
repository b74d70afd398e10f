package console

import (
	"context"
	"fmt"

	"github.com/nguyentranbao-ct/crm-console/internal/models"
	"github.com/nguyentranbao-ct/crm-console/pkg/tmplx"
)

const maxEmailSize = 64 << 10

// emailData is what subject and body templates render against, e.g.
// "Hi {{firstName .Contact.Name}}".
type emailData struct {
	Contact  *models.Contact
	Operator *models.Operator
}

// SendEmail renders and queues an email to a visible contact.
func (c *Console) SendEmail(ctx context.Context, contactID models.ObjectID, subject, body string) error {
	c.mu.Lock()
	op, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ct := c.caches.contact(contactID)
	if ct == nil {
		c.mu.Unlock()
		return models.ErrNotFound
	}
	if d := Authorize(Request{Actor: op, Action: ActionSendEmail, Contact: ct}); !d.Permit {
		c.mu.Unlock()
		return d.Err()
	}
	data := emailData{Contact: ct.Clone(), Operator: op.Clone()}
	c.mu.Unlock()

	if data.Contact.Email == "" {
		return models.InvalidArgument("contact has no email address")
	}

	email := &models.Email{To: data.Contact.Email}
	if email.Subject, err = renderEmail("subject", subject, data); err != nil {
		return err
	}
	if email.Body, err = renderEmail("body", body, data); err != nil {
		return err
	}
	if err := validate.Struct(email); err != nil {
		return validationErr(err)
	}

	rctx, cancel := c.remoteCtx(ctx)
	err = c.mailer.Send(rctx, email)
	cancel()
	if err != nil {
		c.log.Errorw("send email failed", "contact_id", contactID, "error", err)
		return remoteErr("send email", err)
	}
	c.log.Infow("email queued", "contact_id", contactID, "operator_id", op.ID)
	return nil
}

func renderEmail(name, text string, data emailData) (string, error) {
	tmpl, err := tmplx.Parse(name, text, tmplx.WithMaxSize(maxEmailSize))
	if err != nil {
		return "", models.InvalidArgument(fmt.Sprintf("email %s: %v", name, err))
	}
	out, err := tmpl.Render(data)
	if err != nil {
		return "", models.InvalidArgument(fmt.Sprintf("email %s: %v", name, err))
	}
	return out, nil
}
