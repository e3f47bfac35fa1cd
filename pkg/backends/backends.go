package backends

import "github.com/settlekit/settle/pkg/engine"

// Default bundles the standard host backends: apt for packages, the
// local filesystem for files, systemd for services.
func Default() engine.Backends {
	return engine.Backends{
		Packages: NewAptManager(),
		Files:    NewLocalFS(),
		Services: NewSystemdManager(),
	}
}
