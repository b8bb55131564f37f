package decoy

import (
	"testing"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		installed, configured, running bool
		want                           State
	}{
		{false, false, false, StateNotInstalled},
		{false, true, true, StateNotInstalled},
		{true, false, false, StateMisconfigured},
		{true, false, true, StateMisconfigured},
		{true, true, false, StateStopped},
		{true, true, true, StateRunning},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compose(tt.installed, tt.configured, tt.running), "%+v", tt)
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Cowrie installed but not properly configured", Message(locator.Cowrie, StateMisconfigured))
	assert.Equal(t, "Cowrie running properly", Message(locator.Cowrie, StateRunning))
	assert.Equal(t, "Dionaea configured but stopped", Message(locator.Dionaea, StateStopped))
	assert.Equal(t, "Dionaea is not installed or could not be detected", Message(locator.Dionaea, StateNotInstalled))
}

func TestReport(t *testing.T) {
	r := Report(ManagedService{Kind: locator.Cowrie, Installed: true, Configured: true})
	assert.Equal(t, StateStopped, r.State)
	assert.Equal(t, "Cowrie configured but stopped", r.Message)
}

func TestRemediationNamesLowercaseCommand(t *testing.T) {
	err := notInstalled(locator.Dionaea)
	assert.Contains(t, err.Error(), "Dionaea is not installed")
	assert.Contains(t, err.Error(), "honeydash update dionaea --path <dir>")

	err = notConfigured(locator.Cowrie, "no listener")
	assert.Contains(t, err.Error(), "honeydash update cowrie --configure")
	assert.NotContains(t, err.Error(), "update Cowrie")
}
