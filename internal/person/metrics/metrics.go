package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the person core.
// Tracks creations, role and status changes, rejections and eligibility
// outcomes, plus the duration of the creation path.
type Metrics struct {
	PersonsCreated      *prometheus.CounterVec
	RoleChanges         *prometheus.CounterVec
	StatusTransitions   *prometheus.CounterVec
	Rejections          *prometheus.CounterVec
	EligibilityChecks   *prometheus.CounterVec
	CaseloadChanges     *prometheus.CounterVec
	CreatePersonLatency prometheus.Histogram
}

// New registers the person metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PersonsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eap_persons_created_total",
			Help: "Persons created, by primary person type",
		}, []string{"person_type"}),
		RoleChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eap_person_secondary_role_changes_total",
			Help: "Secondary roles added or removed, by person type",
		}, []string{"action", "person_type"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eap_person_status_transitions_total",
			Help: "Lifecycle transitions, by target status",
		}, []string{"to"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eap_person_operation_rejections_total",
			Help: "Operations rejected with a domain error, by operation and code",
		}, []string{"operation", "code"}),
		EligibilityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eap_person_eligibility_checks_total",
			Help: "Eligibility evaluations, by outcome reason",
		}, []string{"eligible", "reason"}),
		CaseloadChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eap_provider_caseload_changes_total",
			Help: "Provider client assignments and releases",
		}, []string{"action"}),
		CreatePersonLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "eap_create_person_duration_seconds",
			Help:    "Duration of person creation including reference loading",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementPersonCreated(personType string) {
	m.PersonsCreated.WithLabelValues(personType).Inc()
}

// IncrementRoleChange records a secondary role "added" or "removed".
func (m *Metrics) IncrementRoleChange(action, personType string) {
	m.RoleChanges.WithLabelValues(action, personType).Inc()
}

func (m *Metrics) IncrementStatusTransition(to string) {
	m.StatusTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncrementRejection(operation, code string) {
	m.Rejections.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) IncrementEligibilityCheck(eligible bool, reason string) {
	label := "false"
	if eligible {
		label = "true"
	}
	m.EligibilityChecks.WithLabelValues(label, reason).Inc()
}

func (m *Metrics) IncrementCaseloadChange(action string) {
	m.CaseloadChanges.WithLabelValues(action).Inc()
}

// ObserveCreatePerson records the duration of a creation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCreatePerson(start time.Time) {
	m.CreatePersonLatency.Observe(time.Since(start).Seconds())
}
