package config

import "runtime"

// Built-in substitution variables
const (
	VarOS      = "ozy_os"
	VarArch    = "ozy_arch"
	VarMachine = "ozy_machine"
)

// HostFacts are the machine properties exposed to configuration
// placeholders.
type HostFacts struct {
	// OS is the kernel name in its common Unix spelling (darwin, linux)
	OS string
	// Machine is the raw hardware name as reported by uname (x86_64, arm64, aarch64)
	Machine string
}

// DetectHostFacts inspects the running host
func DetectHostFacts() HostFacts {
	machine := unameMachine()
	if machine == "" {
		machine = goarchToMachine(runtime.GOARCH)
	}
	return HostFacts{OS: runtime.GOOS, Machine: machine}
}

// Arch is the machine name with x86_64 shortened to amd64
func (h HostFacts) Arch() string {
	if h.Machine == "x86_64" {
		return "amd64"
	}
	return h.Machine
}

// Variables returns the built-in substitution table
func (h HostFacts) Variables() map[string]string {
	return map[string]string{
		VarOS:      h.OS,
		VarArch:    h.Arch(),
		VarMachine: h.Machine,
	}
}

func goarchToMachine(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		if runtime.GOOS == "linux" {
			return "aarch64"
		}
		return "arm64"
	case "386":
		return "i386"
	default:
		return goarch
	}
}
