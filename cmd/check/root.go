package check

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/firestarter/cmd/util"
	"github.com/ValentinKolb/firestarter/rpc/client"
	"github.com/ValentinKolb/firestarter/rpc/service"
	"github.com/ValentinKolb/firestarter/rpc/service/bnet"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// CheckCommands checks a running server
	CheckCommands = &cobra.Command{
		Use:   "check",
		Short: "Check a running BNet server",
		Long:  `Connect to a BNet server, perform the handshake and optionally exchange echo requests. The connection settings can be set via flags or BNET_<flag> environment variables.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
	}

	connectCmd = &cobra.Command{
		Use:   "connect",
		Short: "Perform the connect handshake and print the result",
		RunE:  runConnect,
	}

	echoCmd = &cobra.Command{
		Use:   "echo [payload]",
		Short: "Connect and send echo requests",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEcho,
	}
)

func init() {
	util.SetupRPCClientFlags(CheckCommands)

	key := "bind"
	connectCmd.Flags().StringSlice(key, []string{bnet.AuthenticationServerName}, util.WrapString("Full names of the services to import in the bind request"))

	key = "count"
	echoCmd.Flags().Int(key, 1, util.WrapString("Number of echo requests to send"))

	CheckCommands.AddCommand(connectCmd)
	CheckCommands.AddCommand(echoCmd)
}

// dial connects and performs the handshake importing the named services
func dial(ctx context.Context, imports []string) (*client.Client, *bnet.ConnectResponse, error) {
	t, err := util.GetClientTransport()
	if err != nil {
		return nil, nil, err
	}

	c, err := client.Dial(ctx, util.GetClientConfig(), t)
	if err != nil {
		return nil, nil, err
	}

	req := &bnet.ConnectRequest{
		ClientID: &bnet.ProcessID{Label: uint32(os.Getpid()), Epoch: uint32(time.Now().Unix())},
	}
	if len(imports) > 0 {
		req.BindRequest = &bnet.BindRequest{}
		for _, name := range imports {
			req.BindRequest.ImportedServiceHash = append(req.BindRequest.ImportedServiceHash, service.HashName(name))
		}
	}

	resp, err := c.Connect(ctx, req)
	if err != nil {
		_ = c.Close()
		return nil, nil, fmt.Errorf("connect failed: %w", err)
	}
	return c, resp, nil
}

// unknownImports returns the names without a known export binding
func unknownImports(imports []string) []string {
	var unknown []string
	for _, name := range imports {
		if _, ok := bnet.Exported.ByName(name); !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

func runConnect(cmd *cobra.Command, _ []string) error {
	imports := viper.GetStringSlice("bind")
	for _, name := range unknownImports(imports) {
		fmt.Fprintf(os.Stderr, "warning: %s is not exported by this server version\n", name)
	}

	c, resp, err := dial(cmd.Context(), imports)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("server      : label=%d epoch=%d\n", resp.ServerID.Label, resp.ServerID.Epoch)
	fmt.Printf("server time : %s\n", time.Unix(0, int64(resp.ServerTime)).Format(time.RFC3339Nano))
	if resp.BindResponse != nil {
		for i, id := range resp.BindResponse.ImportedServiceID {
			fmt.Printf("bound       : %-50s -> %d\n", imports[i], id)
		}
	}

	// say goodbye, the server does not answer
	return c.Notify(bnet.ConnectionServiceID, bnet.MethodRequestDisconnect, nil)
}

func runEcho(cmd *cobra.Command, args []string) error {
	payload := "ping"
	if len(args) == 1 {
		payload = args[0]
	}

	c, _, err := dial(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer c.Close()

	timer := gometrics.NewTimer()
	defer timer.Stop()

	for i := 0; i < viper.GetInt("count"); i++ {
		start := time.Now()
		f, err := c.Call(cmd.Context(), bnet.ConnectionServiceID, bnet.MethodEcho, []byte(payload))
		if err != nil {
			return err
		}
		timer.UpdateSince(start)
		fmt.Printf("token=%d bytes=%d time=%s\n", f.Header.Token, len(f.Body), time.Since(start))
	}

	printSummary(timer.Snapshot())
	return nil
}

// printSummary prints the round trip statistics of an echo run
func printSummary(t gometrics.Timer) {
	if t.Count() == 0 {
		return
	}
	ps := t.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("\n%d requests, min=%s mean=%s p50=%s p99=%s max=%s\n",
		t.Count(),
		time.Duration(t.Min()),
		time.Duration(t.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(t.Max()),
	)
}
