package api

import (
	"time"

	"github.com/insurdesk/autoreg/internal/domain"
)

// ClientRecord is a single client registration item. Only the insured name
// is mandatory; everything else mirrors the optional fields the automation
// target's client form accepts.
type ClientRecord struct {
	InsuredName  string `json:"insured_name"            validate:"required,min=1"`
	ClientNumber string `json:"client_number,omitempty"`
	ClientType   string `json:"client_type,omitempty"`
	Document     string `json:"document,omitempty"`
	TaxID        string `json:"tax_id,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	BirthDate    string `json:"birth_date,omitempty"`
	Address      string `json:"address,omitempty"`
	State        string `json:"state,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Email        string `json:"email,omitempty"        validate:"omitempty,email"`
	Notes        string `json:"notes,omitempty"`
}

// VehicleRecord is a single vehicle policy registration item. The sections
// are free-form maps because the automation target's form fields vary per
// insurer; the policy and vehicle sections must be present.
type VehicleRecord struct {
	Policy       map[string]interface{} `json:"policy"                  validate:"required"`
	Basics       map[string]interface{} `json:"basics,omitempty"`
	Vehicle      map[string]interface{} `json:"vehicle"                 validate:"required"`
	Coverage     map[string]interface{} `json:"coverage,omitempty"`
	PaymentTerms map[string]interface{} `json:"payment_terms,omitempty"`
	Client       map[string]interface{} `json:"client,omitempty"`
}

// RegisterClientsRequest is the body for POST /api/clients/register.
type RegisterClientsRequest struct {
	Clients     []ClientRecord `json:"clients"                validate:"required,min=1,dive"`
	Priority    string         `json:"priority,omitempty"     validate:"omitempty,oneof=low normal high"`
	CallbackURL string         `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// RegisterVehiclesRequest is the body for POST /api/vehicles/register.
type RegisterVehiclesRequest struct {
	Vehicles    []VehicleRecord `json:"vehicles"               validate:"required,min=1,dive"`
	Priority    string          `json:"priority,omitempty"     validate:"omitempty,oneof=low normal high"`
	CallbackURL string          `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// TaskView is the API representation of a task. Item payloads are not
// echoed back; callers already have them.
type TaskView struct {
	ID             string             `json:"id"`
	Kind           string             `json:"kind"`
	Status         string             `json:"status"`
	TotalItems     int                `json:"total_items"`
	ProcessedItems int                `json:"processed_items"`
	Priority       string             `json:"priority"`
	CallbackURL    string             `json:"callback_url,omitempty"`
	Result         *domain.TaskResult `json:"result,omitempty"`
	Error          string             `json:"error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// taskToView converts a domain.Task to its API representation.
func taskToView(t *domain.Task) TaskView {
	return TaskView{
		ID:             t.ID.String(),
		Kind:           string(t.Kind),
		Status:         string(t.Status),
		TotalItems:     t.TotalItems,
		ProcessedItems: t.ProcessedItems,
		Priority:       string(t.Priority),
		CallbackURL:    t.CallbackURL,
		Result:         t.Result,
		Error:          t.Error,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
