package domain

import "time"

// TemplateVariable documents one binding a template expects. It is purely
// informational: the renderer never validates against this list, the admin UI
// uses it to build mapping forms and preview payloads.
type TemplateVariable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Example     string `json:"example,omitempty"`
}

// Template is a reusable parameterized message. Subject and Body may contain
// {{path}} tokens that are substituted against a binding map at dispatch time.
type Template struct {
	ID          string             `json:"id" dynamodbav:"id"`
	Name        string             `json:"name" dynamodbav:"name"`
	Description string             `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Subject     string             `json:"subject" dynamodbav:"subject"`
	Body        string             `json:"body" dynamodbav:"body"`
	Variables   []TemplateVariable `json:"variables,omitempty" dynamodbav:"variables,omitempty"`
	CreatedAt   time.Time          `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" dynamodbav:"updated_at"`
}

// Validate checks the fields an administrator must supply.
func (t *Template) Validate() error {
	if t.Name == "" {
		return ErrTemplateNameRequired
	}
	if t.Subject == "" && t.Body == "" {
		return ErrTemplateContentRequired
	}
	return nil
}
