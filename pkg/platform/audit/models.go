package audit

import (
	"time"

	id "eap/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// person creation and deletion, role composition changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers access-affecting changes such as suspensions and
	// deactivations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. It is written to
// the outbox inside the transaction that made the change.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	PersonID  id.PersonID
	// Subject is the person type, or the related record for relationship events.
	Subject string
	Action  string
	Reason  string
	// RequestID is the correlation ID from the request context.
	RequestID string
	// ActorID is the account that performed the change, when known.
	ActorID string
}

type AuditEvent string

const (
	EventPersonCreated        AuditEvent = "person_created"
	EventPersonDeleted        AuditEvent = "person_deleted"
	EventSecondaryRoleAdded   AuditEvent = "secondary_role_added"
	EventSecondaryRoleRemoved AuditEvent = "secondary_role_removed"

	EventPersonActivated   AuditEvent = "person_activated"
	EventPersonDeactivated AuditEvent = "person_deactivated"
	EventPersonSuspended   AuditEvent = "person_suspended"

	EventEmploymentUpdated AuditEvent = "employment_updated"
	EventServiceDelivered  AuditEvent = "service_delivered"
	EventClientAssigned    AuditEvent = "client_assigned"
	EventClientReleased    AuditEvent = "client_released"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventPersonCreated:        CategoryCompliance,
	EventPersonDeleted:        CategoryCompliance,
	EventSecondaryRoleAdded:   CategoryCompliance,
	EventSecondaryRoleRemoved: CategoryCompliance,
	EventEmploymentUpdated:    CategoryCompliance,

	EventPersonDeactivated: CategorySecurity,
	EventPersonSuspended:   CategorySecurity,

	EventPersonActivated:  CategoryOperations,
	EventServiceDelivered: CategoryOperations,
	EventClientAssigned:   CategoryOperations,
	EventClientReleased:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// OutboxEntry is one pending row of the transactional outbox.
type OutboxEntry struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}
