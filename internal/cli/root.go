package cli

import (
	"github.com/spf13/cobra"
)

func newRootCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:           "notemirror",
		Short:         "notemirror - mirror a folder of Markdown notes to Google Drive",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
}
