package main

import (
	// Core yagpdb packages
	"github.com/botlabs-gg/yagpdb/v2/commands"
	"github.com/botlabs-gg/yagpdb/v2/common/run"

	// Plugin imports
	"github.com/cirelion/babel/autotranslate"
	"github.com/cirelion/babel/reactionroles"
)

func main() {
	run.Init()

	commands.RegisterPlugin()
	autotranslate.RegisterPlugin()
	reactionroles.RegisterPlugin()

	run.Run()
}
