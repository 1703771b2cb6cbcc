package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/healthfolio/tracker-manager/internal/business"
	"github.com/healthfolio/tracker-manager/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"Tracker Manager API server",
		"Tracker Manager API server hosts the public HTTP API for connecting fitness tracker accounts",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
