package migrate

import (
	"github.com/spf13/cobra"

	"github.com/healthfolio/tracker-manager/internal/business"
	"github.com/healthfolio/tracker-manager/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"Tracker Manager database migration",
		"Tracker Manager database migration applies the credential store schema",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
