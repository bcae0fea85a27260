package main

import "flag"

const versionShortHelp = `Display version`
const versionLongHelp = `
Display the version of this build of mb.
`

const appVersion = "0.1.0"

type versionCommand struct{}

func (cmd *versionCommand) Name() string      { return "version" }
func (cmd *versionCommand) Args() string      { return "" }
func (cmd *versionCommand) ShortHelp() string { return versionShortHelp }
func (cmd *versionCommand) LongHelp() string  { return versionLongHelp }
func (cmd *versionCommand) Hidden() bool      { return false }

func (cmd *versionCommand) Register(fs *flag.FlagSet) {}

func (cmd *versionCommand) Run(ctx *runCtx, args []string) error {
	ctx.Out.Println(appVersion)
	return nil
}
