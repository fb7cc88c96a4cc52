// Command doc-assistant summarizes documents with a local language model.
package main

import (
	"os"

	"github.com/spherical/doc-assistant/cmd/doc-assistant/commands"
	"github.com/spherical/doc-assistant/cmd/doc-assistant/ui"
	"github.com/spherical/doc-assistant/internal/domain"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("%s", domain.UserMessage(err))
		os.Exit(1)
	}
}
