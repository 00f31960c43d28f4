/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's internal model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/pillbox/dispense-engine/engine"
)

// ScheduleDTO is the approaching-schedule response: what the device should be
// ready to dispense soon.
type ScheduleDTO struct {
	MedicineName  string `json:"medicineName"`
	MedicineDose  string `json:"medicineDose"`
	IntervalType  string `json:"intervalType"`
	IntervalValue string `json:"intervalValue"`
	ScheduledTime string `json:"scheduledTime"`
	ScheduledDate string `json:"scheduledDate"`
	SlotNumber    int    `json:"slotNumber"`
}

func toScheduleDTO(def engine.ScheduleDefinition) ScheduleDTO {
	return ScheduleDTO{
		MedicineName:  def.MedicineName,
		MedicineDose:  def.MedicineDose,
		IntervalType:  string(def.IntervalType),
		IntervalValue: def.IntervalValue.String(),
		ScheduledTime: def.ScheduledTime,
		ScheduledDate: def.ScheduledDate.UTC().Format(time.RFC3339),
		SlotNumber:    def.SlotNumber,
	}
}

// SubjectRequest carries the subject identifier for POST operations.
type SubjectRequest struct {
	UID string `json:"uid"`
}

// OrphanReportDTO summarizes an explicit history reconciliation.
type OrphanReportDTO struct {
	Kept      int      `json:"kept"`
	Deleted   int      `json:"deleted"`
	NoHistory []string `json:"medicinesWithoutHistory"`
	StockKeys []string `json:"stockKeysRemoved"`
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
