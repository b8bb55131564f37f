// Package decoy supervises the decoy services: discovery, configuration,
// start/stop and status.
package decoy

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
)

// State is the composed status of a decoy.
type State string

const (
	StateNotInstalled  State = "not_installed"
	StateMisconfigured State = "misconfigured"
	StateStopped       State = "stopped"
	StateRunning       State = "running"
)

// ManagedService is one decoy as observed on the host.
type ManagedService struct {
	Kind       locator.Kind `json:"kind"`
	Root       string       `json:"root,omitempty"`
	Container  string       `json:"container,omitempty"`
	Installed  bool         `json:"installed"`
	Configured bool         `json:"configured"`
	Running    bool         `json:"running"`
}

// Compose folds the three observations into one state. Installation
// dominates, then configuration, then liveness.
func Compose(installed, configured, running bool) State {
	switch {
	case !installed:
		return StateNotInstalled
	case !configured:
		return StateMisconfigured
	case !running:
		return StateStopped
	default:
		return StateRunning
	}
}

// Message renders a state for operators.
func Message(kind locator.Kind, s State) string {
	name := DisplayName(kind)
	switch s {
	case StateNotInstalled:
		return name + " is not installed or could not be detected"
	case StateMisconfigured:
		return name + " installed but not properly configured"
	case StateStopped:
		return name + " configured but stopped"
	default:
		return name + " running properly"
	}
}

// UpdateCommand is the CLI path that records a decoy's root or configures
// its listener. Remediation hints are built from it.
func UpdateCommand(kind locator.Kind) []string {
	return []string{"update", string(kind)}
}

func notInstalled(kind locator.Kind) error {
	return honey_err.NewNotInstalledError(DisplayName(kind),
		"Point honeydash at the installation: honeydash "+strings.Join(UpdateCommand(kind), " ")+" --path <dir>")
}

func notConfigured(kind locator.Kind, detail string) error {
	return honey_err.NewNotConfiguredError(DisplayName(kind), detail,
		"Configure the listener: honeydash "+strings.Join(UpdateCommand(kind), " ")+" --configure")
}

func DisplayName(kind locator.Kind) string {
	switch kind {
	case locator.Cowrie:
		return "Cowrie"
	case locator.Dionaea:
		return "Dionaea"
	}
	return string(kind)
}

// StatusReport is returned by GetStatus.
type StatusReport struct {
	Service ManagedService `json:"service"`
	State   State          `json:"state"`
	Message string         `json:"message"`
}

// Report builds the report for svc.
func Report(svc ManagedService) StatusReport {
	s := Compose(svc.Installed, svc.Configured, svc.Running)
	return StatusReport{Service: svc, State: s, Message: Message(svc.Kind, s)}
}
