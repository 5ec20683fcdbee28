// Package formlib holds the built-in form definitions.
package formlib

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/formfill-cli/internal/form"
)

// Form names.
const (
	Contacts   = "contacts"
	FoodLog    = "food_log"
	Task       = "task"
	CRMContact = "crm_contact"
)

// PriorityOptions are shared by fields that rank urgency.
var PriorityOptions = []form.Option{
	{Label: "P0 (today)", Value: "P0"},
	{Label: "P1 (end of week)", Value: "P1"},
	{Label: "P2 (later)", Value: "P2"},
}

// MessageTypeOptions are the channels a follow up can be drafted for.
var MessageTypeOptions = []form.Option{
	{Label: "Email", Value: "email"},
	{Label: "LinkedIn", Value: "linkedin"},
	{Label: "WhatsApp", Value: "whatsapp"},
	{Label: "Text", Value: "sms"},
}

var registry = map[string]*form.Definition{
	Contacts:   form.MustDefinition(Contacts, contactsFields...),
	FoodLog:    form.MustDefinition(FoodLog, foodLogFields...),
	Task:       form.MustDefinition(Task, taskFields...),
	CRMContact: form.MustDefinition(CRMContact, crmContactFields...),
}

// Get returns the named form definition.
func Get(name string) (*form.Definition, error) {
	d, ok := registry[name]
	if !ok {
		return nil, eris.Errorf("formlib: unknown form %q (known: %v)", name, Names())
	}
	return d, nil
}

// Names returns the registered form names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var contactsFields = []form.FieldSpec{
	{
		Name:           "recording_time",
		Type:           form.TypeDate,
		Label:          "Recorded Time",
		Description:    "Which date the recording took place",
		IgnoreInPrompt: true,
	},
	{
		Name:           "is_inputs_checked",
		Type:           form.TypeBool,
		Label:          "Checked inputs?",
		Description:    "Whether the user checked the correctness of the extracted output",
		IgnoreInPrompt: true,
		DefaultValue:   false,
	},
	{
		Name:           "is_done",
		Type:           form.TypeBool,
		Label:          "Done?",
		Description:    "Whether the user did finalize the follow up",
		IgnoreInPrompt: true,
		DefaultValue:   false,
	},
	{
		Name:           "name",
		Type:           form.TypeText,
		Label:          "Name",
		Description:    "Name of the person I talked with",
		IgnoreInPrompt: true,
	},
	{
		Name:        "role",
		Type:        form.TypeText,
		Label:       "Role",
		Description: "Current role or latest job experience",
	},
	{
		Name:  "industry",
		Type:  form.TypeText,
		Label: "Industry",
		Description: "which business industry area they specialize in professionally, " +
			"e.g. construction, tech, fintech, business, consulting, marketing",
	},
	{
		Name:        "their_needs",
		Type:        form.TypeText,
		Label:       "Their Needs",
		Description: "list of what the person is looking for, null for empty",
	},
	{
		Name:        "my_action_items",
		Type:        form.TypeText,
		Label:       "My Action Items",
		Description: "list of action items I explicitly assigned myself to address after the meeting, null for empty",
	},
	{
		Name:        "key_facts",
		Type:        form.TypeText,
		Label:       "Key Facts",
		Description: "list of key facts each fact in a super-short up to 5 word brief, null for empty",
	},
	{
		Name:         "suggested_revisit",
		Type:         form.TypeSelect,
		Label:        "Suggested Revisit",
		Description:  "priority of when should i respond to them, P0 (today), P1 (end of week), P2 (later)",
		Options:      PriorityOptions,
		DefaultValue: "P2",
	},
	{
		Name:  "response_message_type",
		Type:  form.TypeSelect,
		Label: "Response Message Channel",
		Description: "best message channel to keep the conversation going, either it is mentioned in the text, " +
			"and if not, then assume from how friendly / professional the chat was",
		Options:      MessageTypeOptions,
		DefaultValue: "sms",
	},
	{
		Name:  "suggested_response_item",
		Type:  form.TypeText,
		Label: "Suggested Response Item",
		Description: "one key topic or item for my follow up response to the person, " +
			"default to 'great to meet you, let me know if I can ever do anything for you'",
		IgnoreInDisplay: true, // only a hint for draft generation
	},
	{
		Name:           "next_draft",
		Type:           form.TypeText,
		Label:          "Drafted Follow Up",
		Description:    "casual yet professional short to the point draft for my action from suggested_response_item",
		IgnoreInPrompt: true,
	},
	{
		Name:           "summarized_note",
		Type:           form.TypeText,
		Label:          "Summarized Note",
		Description:    "short concise structured summary of the meeting note",
		IgnoreInPrompt: true,
	},
}

var foodLogFields = []form.FieldSpec{
	{
		Name:        "recording_time",
		Type:        form.TypeDate,
		Label:       "Recording Time",
		Description: "Date time of the log entry",
	},
	{
		Name:        "ingredient",
		Type:        form.TypeText,
		Label:       "Ingredient",
		Description: "one food item like you would see on an ingredients list",
	},
	{
		Name:        "amount",
		Type:        form.TypeText,
		Label:       "Amount",
		Description: "approximate amount of the ingredient taken, if not specified it can be just using 'a bit' or 'some'",
	},
	{
		Name:        "activity",
		Type:        form.TypeText,
		Label:       "Activity",
		Description: "what the person was doing while eating, if mentioned",
	},
}

var taskFields = []form.FieldSpec{
	{
		Name:        "name",
		Type:        form.TypeText,
		Label:       "Task Title",
		Description: "The title of the task",
	},
	{
		Name:        "priority",
		Type:        form.TypeSelect,
		Label:       "Priority",
		Description: "The priority of the task",
		Options: []form.Option{
			{Label: "P0 (today)", Value: "P0"},
			{Label: "P1 (this week)", Value: "P1"},
			{Label: "P2 (later)", Value: "P2"},
		},
	},
	{
		Name:        "due",
		Type:        form.TypeDate,
		Label:       "Due date",
		Description: "The due date of the task",
	},
	{
		Name:            "body",
		Type:            form.TypeHTML,
		Label:           "To Dos",
		Description:     "Action items and follows ups I need to do in concise bullet points ordered by priority top down",
		IgnoreInDisplay: true,
	},
}

var crmContactFields = []form.FieldSpec{
	{
		Name:           "owner_id",
		Type:           form.TypeNumber,
		Label:          "Contact owner",
		Description:    "The owner of a contact, filled in by the CRM",
		IgnoreInPrompt: true,
		IgnoreInEmail:  true,
	},
	{Name: "firstname", Type: form.TypeText, Label: "First Name", Description: "A contact's first name"},
	{Name: "lastname", Type: form.TypeText, Label: "Last Name", Description: "A contact's last name"},
	{Name: "jobtitle", Type: form.TypeText, Label: "Job Title", Description: "A contact's job title"},
	{Name: "company", Type: form.TypeText, Label: "Company Name", Description: "Name of the contact's company"},
	{Name: "email", Type: form.TypeText, Label: "Email", Description: "A contact's email address"},
	{Name: "phone", Type: form.TypePhoneNumber, Label: "Phone Number", Description: "A contact's primary phone number"},
	{Name: "city", Type: form.TypeText, Label: "City", Description: "A contact's city of residence"},
	{Name: "country", Type: form.TypeText, Label: "Country/Region", Description: "The contact's country/region of residence"},
}
