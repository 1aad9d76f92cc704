package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindValidAndTest(t *testing.T) {
	for _, k := range BaseKinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, Kind("reminder").Valid())
	assert.False(t, KindDueSoon.Test().Valid())
	assert.Equal(t, Kind("test_overdue"), KindOverdue.Test())
}

func TestPreferenceValidate(t *testing.T) {
	p := DefaultPreference(1)
	assert.NoError(t, p.Validate())

	p.LeadTimeHours = 0
	assert.True(t, errors.Is(p.Validate(), ErrInvalidPreference))

	p.LeadTimeHours = 169
	assert.Error(t, p.Validate())

	p.LeadTimeHours = 168
	p.DigestFrequency = "monthly"
	assert.Error(t, p.Validate())
}

func TestPreferencePatchApply(t *testing.T) {
	off := false
	hours := 6
	p := PreferencePatch{EmailEnabled: &off, LeadTimeHours: &hours}.Apply(DefaultPreference(3))

	assert.False(t, p.EmailEnabled)
	assert.True(t, p.BrowserEnabled)
	assert.Equal(t, 6, p.LeadTimeHours)
	assert.Equal(t, DigestDaily, p.DigestFrequency)
}

func TestPriorityText(t *testing.T) {
	assert.Equal(t, "Low", Task{Priority: 1}.PriorityText())
	assert.Equal(t, "Urgent", Task{Priority: 4}.PriorityText())
	assert.Equal(t, "Medium", Task{Priority: 0}.PriorityText())
}
