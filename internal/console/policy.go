package console

import (
	"github.com/nguyentranbao-ct/crm-console/internal/models"
)

type Action string

const (
	ActionSendMessage     Action = "send_message"
	ActionTakeOverChat    Action = "take_over_chat"
	ActionCreateContact   Action = "create_contact"
	ActionUpdateContact   Action = "update_contact"
	ActionReassignContact Action = "reassign_contact"
	ActionDeleteContact   Action = "delete_contact"
	ActionAddOperator     Action = "add_operator"
	ActionUpdateOperator  Action = "update_operator"
	ActionChangeRole      Action = "change_role"
	ActionDeleteOperator  Action = "delete_operator"
	ActionSwitchOperator  Action = "switch_operator"
	ActionManageCatalog   Action = "manage_catalog"
	ActionManageChannels  Action = "manage_channels"
	ActionSendEmail       Action = "send_email"
)

// Request describes a privileged command. Only the fields relevant to the
// action need to be set.
type Request struct {
	Actor   *models.Operator
	Action  Action
	Chat    *models.Chat
	Contact *models.Contact
	Target  *models.Operator
}

type Decision struct {
	Permit bool
	Reason string
}

func permit() Decision {
	return Decision{Permit: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts a deny into a PermissionDenied error.
func (d Decision) Err() error {
	if d.Permit {
		return nil
	}
	return models.PermissionDenied(d.Reason)
}

// Authorize is the single authorization policy of the console.
func Authorize(req Request) Decision {
	actor := req.Actor
	if actor == nil {
		return deny("no active operator")
	}

	switch req.Action {
	case ActionSendMessage, ActionTakeOverChat:
		if !CanSeeChat(actor, req.Chat) {
			return deny("chat is not visible to the operator")
		}
		return permit()

	case ActionCreateContact, ActionUpdateContact:
		if req.Contact == nil {
			return deny("missing contact")
		}
		if actor.IsManager() || req.Contact.OwnerID == actor.ID {
			return permit()
		}
		return deny("agents may only manage their own contacts")

	case ActionSendEmail:
		if !CanSeeContact(actor, req.Contact) {
			return deny("contact is not visible to the operator")
		}
		return permit()

	case ActionReassignContact, ActionDeleteContact, ActionAddOperator,
		ActionManageCatalog, ActionManageChannels:
		if !actor.IsManager() {
			return deny("only a manager may " + describe(req.Action))
		}
		return permit()

	case ActionDeleteOperator:
		if !actor.IsManager() {
			return deny("only a manager may " + describe(req.Action))
		}
		if req.Target != nil && req.Target.ID == actor.ID {
			return deny("operators cannot delete themselves")
		}
		return permit()

	case ActionUpdateOperator:
		if req.Target == nil {
			return deny("missing operator")
		}
		if actor.IsManager() || req.Target.ID == actor.ID {
			return permit()
		}
		return deny("agents may only update their own profile")

	case ActionChangeRole:
		if !actor.IsManager() {
			return deny("only a manager may " + describe(req.Action))
		}
		if req.Target != nil && req.Target.ID == actor.ID {
			return deny("operators cannot change their own role")
		}
		return permit()

	case ActionSwitchOperator:
		if req.Target != nil && req.Target.ID == actor.ID {
			return permit()
		}
		if !actor.IsManager() {
			return deny("only a manager may " + describe(req.Action))
		}
		return permit()
	}

	return deny("unknown action " + string(req.Action))
}

func describe(a Action) string {
	switch a {
	case ActionReassignContact:
		return "reassign a contact"
	case ActionDeleteContact:
		return "delete a contact"
	case ActionAddOperator:
		return "add an operator"
	case ActionDeleteOperator:
		return "delete an operator"
	case ActionChangeRole:
		return "change an operator's role"
	case ActionSwitchOperator:
		return "act as another operator"
	case ActionManageCatalog:
		return "manage quick replies and the knowledge base"
	case ActionManageChannels:
		return "manage channels"
	default:
		return string(a)
	}
}
