package config

import "github.com/OpenMined/syft-extras/internal/syftpath"

// Client is the opaque collaborator a host application supplies to every
// component in this module: it carries local identity, the workspace
// root, and path/URL conversion, none of which this module constructs
// for itself. Implementations live with the host application.
type Client interface {
	// Datasite is the local peer's own identity.
	Datasite() string
	// Workspace is the absolute path to the root of the synced tree.
	Workspace() syftpath.Abs
	// ToSyftURL converts an absolute path under Workspace into the
	// syft:// URL it's mirrored at.
	ToSyftURL(path syftpath.Abs) (syftpath.URL, error)
	// ConfigPath returns the path of the host application's config file,
	// or "" if none is configured.
	ConfigPath() string
}
