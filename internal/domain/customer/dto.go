// internal/domain/customer/dto.go
package customer

import "time"

// RecordPayload is the validated field bag for one incoming customer record.
// Values arrive pre-trimmed from the request layer.
type RecordPayload struct {
	Queue       string   `json:"queue" binding:"required,max=50"`
	FirstName   string   `json:"first_name" binding:"max=100"`
	LastName    string   `json:"last_name" binding:"max=100"`
	Phone       string   `json:"phone" binding:"max=20"`
	AltPhone    string   `json:"alt_phone" binding:"max=20"`
	WhatsApp    string   `json:"whatsapp" binding:"max=20"`
	Email       string   `json:"email" binding:"omitempty,max=255"`
	Address     string   `json:"address"`
	Country     string   `json:"country" binding:"max=100"`
	Designation string   `json:"designation" binding:"max=100"`
	Disposition string   `json:"disposition"`
	Comment     string   `json:"comment" binding:"max=1000"`
	AgentName   string   `json:"agent_name" binding:"max=100"`
	Team        string   `json:"team" binding:"max=50"`
	FollowUpAt  string   `json:"follow_up_at"`
	Tags        []string `json:"tags"`
}

type CreateCustomerRequest struct {
	RecordPayload
	// DuplicateAction, when set, pre-resolves a detected duplicate:
	// skip, replace or append.
	DuplicateAction string `json:"duplicate_action"`
}

type UpdateCustomerRequest struct {
	FirstName   *string  `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string  `json:"last_name" binding:"omitempty,max=100"`
	Phone       *string  `json:"phone" binding:"omitempty,max=20"`
	AltPhone    *string  `json:"alt_phone" binding:"omitempty,max=20"`
	WhatsApp    *string  `json:"whatsapp" binding:"omitempty,max=20"`
	Email       *string  `json:"email" binding:"omitempty,max=255"`
	Address     *string  `json:"address"`
	Country     *string  `json:"country" binding:"omitempty,max=100"`
	Designation *string  `json:"designation" binding:"omitempty,max=100"`
	Disposition *string  `json:"disposition"`
	Comment     *string  `json:"comment" binding:"omitempty,max=1000"`
	AgentName   *string  `json:"agent_name" binding:"omitempty,max=100"`
	Team        *string  `json:"team" binding:"omitempty,max=50"`
	FollowUpAt  *string  `json:"follow_up_at"`
	Tags        []string `json:"tags"`
}

type ListFilters struct {
	Queue       string   `form:"queue"`
	Team        string   `form:"team"`
	Disposition string   `form:"disposition"`
	AgentName   string   `form:"agent_name"`
	Search      string   `form:"search"`
	Tags        []string `form:"tags"`
	Page        int      `form:"page"`
	PageSize    int      `form:"page_size"`
	SortBy      string   `form:"sort_by"`
	SortOrder   string   `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type ListResponse struct {
	Customers  []Record `json:"customers"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

type UploadRequest struct {
	Queue string          `json:"queue" binding:"required,max=50"`
	Rows  []RecordPayload `json:"rows" binding:"required"`
}

// DuplicateDecision selects the resolution for one planned duplicate,
// addressed by its position in the plan's duplicate bucket.
type DuplicateDecision struct {
	Index  int    `json:"index"`
	Action string `json:"action" binding:"required"`
}

type ConfirmUploadRequest struct {
	PlanID    string              `json:"plan_id" binding:"required"`
	Decisions []DuplicateDecision `json:"decisions"`
}

type ConfirmUploadResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// NewCustomerEvent is the payload handed to notification collaborators after
// a successful create. Delivery never gates the creating transaction.
type NewCustomerEvent struct {
	UID       string    `json:"uid"`
	Queue     string    `json:"queue"`
	FirstName string    `json:"first_name"`
	Phone     string    `json:"phone"`
	WhatsApp  string    `json:"whatsapp"`
	Email     string    `json:"email"`
	AgentName string    `json:"agent_name"`
	CreatedAt time.Time `json:"created_at"`
}
