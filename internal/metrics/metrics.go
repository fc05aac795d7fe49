// Package metrics регистрирует прометеевские счётчики движка пробных
// периодов. Сами значения отдаются через /metrics стандартным promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TrialsGranted — выданные пробные периоды по источнику и признаку force.
	TrialsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trial_engine_trials_granted_total",
		Help: "Number of granted trials by source and force flag.",
	}, []string{"source", "forced"})

	// GrantsRejected — отказы в выдаче по причине.
	GrantsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trial_engine_grants_rejected_total",
		Help: "Number of rejected trial grants by reason.",
	}, []string{"reason"})

	// CampaignSignups — регистрации, привлечённые активной кампанией.
	CampaignSignups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trial_engine_campaign_signups_total",
		Help: "Number of signups auto-granted a trial by a campaign.",
	})

	// TrialConversions — конверсии пробных периодов по источнику.
	TrialConversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trial_engine_trial_conversions_total",
		Help: "Number of trial conversions by source.",
	}, []string{"source"})
)
