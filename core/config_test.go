package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Lists(t *testing.T) {
	tests := []struct {
		name           string
		jobs           string
		recipients     string
		wantJobs       []string
		wantRecipients []string
	}{
		{name: "unset"},
		{
			name:           "single",
			jobs:           "0 2 * * *|finalize-semester|1|2024-2025",
			recipients:     "Registrar <registrar@test.cd>",
			wantJobs:       []string{"0 2 * * *|finalize-semester|1|2024-2025"},
			wantRecipients: []string{"Registrar <registrar@test.cd>"},
		},
		{
			name:       "many",
			jobs:       " 0 2 * * *|finalize-semester|1|2024-2025|normal ; @monthly|finalize-year|-|2024-2025; ",
			recipients: "Registrar <registrar@test.cd>;dean@test.cd",
			wantJobs: []string{
				"0 2 * * *|finalize-semester|1|2024-2025|normal",
				"@monthly|finalize-year|-|2024-2025",
			},
			wantRecipients: []string{"Registrar <registrar@test.cd>", "dean@test.cd"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "TEST")
			t.Setenv("TEST_SCHEDULER_JOBS", tt.jobs)
			t.Setenv("TEST_GRADING_REPORTRECIPIENTS", tt.recipients)

			conf := NewConfig()
			assert.Equal(t, tt.wantJobs, conf.Scheduler.Jobs)
			assert.Equal(t, tt.wantRecipients, conf.Grading.ReportRecipients)
		})
	}
}
