package commands

import (
	"fmt"
	"runtime"

	"github.com/leapstack-labs/leapgrt/internal/cli/output"
	"github.com/spf13/cobra"
)

// VersionInfo is the JSON form of the version command.
type VersionInfo struct {
	Version  string `json:"version"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the leapgrt version and the Go toolchain and platform it was built for.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := VersionInfo{
				Version:  version,
				Go:       runtime.Version(),
				Platform: runtime.GOOS + "/" + runtime.GOARCH,
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(getConfig().OutputFormat))
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Println(fmt.Sprintf("leapgrt v%s (%s, %s)", info.Version, info.Go, info.Platform))
			r.Println("Object runtime with reflection, undo and diff")
			return nil
		},
	}
}
