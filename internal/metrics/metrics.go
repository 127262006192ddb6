// Package metrics defines the Prometheus metrics of the submission pipeline.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeCreated         = "created"
	OutcomeSchemaInvalid   = "schema_invalid"
	OutcomeCategoryInvalid = "category_invalid"
	OutcomeInconsistent    = "inconsistent"
	OutcomeFieldInvalid    = "field_invalid"
	OutcomeError           = "error"
	AttachmentStored       = "stored"
	AttachmentDropped      = "dropped"
	MailSent               = "sent"
)

// ContributionMetrics counts submissions by outcome.
type ContributionMetrics struct {
	Submissions *prometheus.CounterVec // by kind (standard|custom), category, outcome
	Attachments *prometheus.CounterVec // by result (stored|dropped)
	Mails       prometheus.Counter
	registry    *prometheus.Registry
}

// New registers the contribution metrics in registry.
func New(registry *prometheus.Registry) (*ContributionMetrics, error) {
	m := &ContributionMetrics{
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "georiviere_contribution_submissions_total",
				Help: "Contribution submissions by kind, category and outcome",
			},
			[]string{"kind", "category", "outcome"},
		),
		Attachments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "georiviere_contribution_attachments_total",
				Help: "Uploaded files by result",
			},
			[]string{"result"},
		),
		Mails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "georiviere_contribution_mails_total",
			Help: "Notification mails handed to the mailer",
		}),
		registry: registry,
	}

	for _, c := range []prometheus.Collector{m.Submissions, m.Attachments, m.Mails} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register contribution metrics: %w", err)
		}
	}
	return m, nil
}

// MustNew is New for process start-up.
func MustNew(registry *prometheus.Registry) *ContributionMetrics {
	m, err := New(registry)
	if err != nil {
		panic(err)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *ContributionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Submission records one submission outcome. Safe on a nil receiver.
func (m *ContributionMetrics) Submission(kind, category, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, category, outcome).Inc()
}

// Attachment records what happened to one uploaded file.
func (m *ContributionMetrics) Attachment(result string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Attachments.WithLabelValues(result).Add(float64(n))
}

// Mail records n sent notification mails.
func (m *ContributionMetrics) Mail(n int) {
	if m == nil || n == 0 {
		return
	}
	m.Mails.Add(float64(n))
}
