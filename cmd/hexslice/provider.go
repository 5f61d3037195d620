package main

import "github.com/banshee-data/hexslice/internal/version"

// cliProviderID identifies the command surface in the registry.
const cliProviderID = "hexslice.cli"

// cliProvider registers the command surface alongside the built-ins so
// that it shares their lifecycle.
type cliProvider struct{}

func (cliProvider) ID() string        { return cliProviderID }
func (cliProvider) Name() string      { return "Command line interface" }
func (cliProvider) Version() string   { return version.Version }
func (cliProvider) Initialize() error { return nil }
func (cliProvider) Shutdown() error   { return nil }
