package call

import (
	"context"
	"encoding/json"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/rpc/peer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

var (
	CallCmd = &cobra.Command{
		Use:   "call <method> [json-argument]",
		Short: "Call a method of a remote peer",
		Long: `Call a method of a remote peer and print the reply.
The argument is passed as JSON and requires the json serializer, e.g.

  drpc call Add '[2, 3]'
  drpc call Ping --notify`,
		Args:    cobra.RangeArgs(1, 2),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return cmdUtil.BindCommandFlags(cmd) },
		RunE:    run,
	}
)

func init() {
	cmdUtil.SetupPeerFlags(CallCmd, "localhost:8080")

	key := "notify"
	CallCmd.Flags().Bool(key, false, cmdUtil.WrapString("Send the call as notify and do not wait for a reply"))
}

func run(_ *cobra.Command, args []string) error {
	config := cmdUtil.GetPeerConfig()
	if config.Serializer != "json" {
		return fmt.Errorf("the call command requires the json serializer, got %s", config.Serializer)
	}

	method := args[0]
	var arg []byte
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("argument is not valid JSON: %s", args[1])
		}
		arg = []byte(args[1])
	}

	connector, err := cmdUtil.GetClientConnector()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if config.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(config.TimeoutSecond)*time.Second)
		defer cancel()
	}

	p, err := peer.Dial(ctx, connector, config, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	if viper.GetBool("notify") {
		return p.Client().NotifyRaw(ctx, method, arg)
	}

	start := time.Now()
	reply, err := p.Client().CallRaw(ctx, method, arg)
	if err != nil {
		return err
	}
	if len(reply) == 0 {
		reply = []byte("null")
	}
	fmt.Printf("%s (%s)\n", reply, time.Since(start).Round(time.Microsecond))
	return nil
}
