package housekeeper

import (
	"github.com/spf13/cobra"

	"github.com/healthfolio/tracker-manager/internal/business"
	"github.com/healthfolio/tracker-manager/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"housekeeper",
		"Tracker Manager Housekeeping job",
		"Tracker Manager Housekeeping job prunes expired authorization state records",
		buildInfo,
		cmdutils.RunAsService,
		business.HousekeeperMain,
	)
}
