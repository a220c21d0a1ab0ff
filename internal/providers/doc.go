// Package providers implements the capability modules scripts can require.
//
// Each capability is a Module: a name plus a gopher-lua loader. Install
// registers a module with the interpreter and also exposes it as a global
// and under the libs table, so require("keyboard"), keyboard and
// libs.keyboard are the same table.
//
// Capabilities in this package:
//   - keyboard, mouse: synthetic input through an input.Backend
//   - script: shell commands run from the remote's directory
//   - ps: host CPU and memory usage
//   - server: updates pushed to the remote's subscribers
//   - data: JSON, YAML and TOML conversion
//
// The fs, http and timer capabilities live in subpackages. All of them
// share a Host, which carries the remote's paths, logger, input backend
// and process policy.
//
// Example Usage:
//
//	h := &providers.Host{Root: dir, Scratch: scratch, Input: backend, Logger: logger}
//	providers.Install(L, providers.NewKeyboard(h))
package providers
