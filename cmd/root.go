package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/firestarter/cmd/check"
	"github.com/ValentinKolb/firestarter/cmd/serve"
	"github.com/ValentinKolb/firestarter/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "bnetd",
		Short: "BNet game server networking core",
		Long: fmt.Sprintf(`bnetd (v%s)

A BNet protocol server: length prefixed protobuf framing, service binding
and per connection routing of requests to the exported services.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of bnetd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bnetd v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(check.CheckCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
