package cmd

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hlindberg/agentmq/internal/agent"
	"github.com/hlindberg/agentmq/internal/mqttproto"
	"github.com/hlindberg/agentmq/internal/wire"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Connect to a broker and immediately terminate the agent, as a smoke test",
	Long: `Dials the broker, brings up an agent goroutine, issues CONNECT, then tears the
agent down with AgentContext.Terminate rather than a clean DISCONNECT - exercising the
out-of-band shutdown path instead of the queued one pub and sub use.`,
	Run: func(cmd *cobra.Command, args []string) {
		runProbe()
	},
}

func runProbe() {
	clientName := MQTTClientName
	if clientName == "" {
		clientName = wire.RandomClientID()
	}

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%s", MQTTBroker, wire.UnencryptedPortTCP))
	if err != nil {
		panic(err)
	}

	client := mqttproto.NewClient(conn)
	if err := client.Init(clientName); err != nil {
		panic(err)
	}
	ctx := agent.NewAgent(client, agent.NewBoundedMessaging(16, 16), 16)
	go ctx.Run()
	producer := ctx.NewProducer()

	done := make(chan agent.CompletionResult, 1)
	ok, err := producer.Connect(agent.ConnectArgs{
		ClientID:     clientName,
		CleanSession: true,
		TimeoutMs:    5000,
	}, 5000, func(_ interface{}, result agent.CompletionResult) { done <- result }, nil)
	if !ok || err != nil {
		panic(fmt.Sprintf("enqueuing CONNECT failed: %v", err))
	}

	select {
	case result := <-done:
		if result.Status != agent.StatusSuccess {
			log.Errorf("CONNECT failed: %s", result.Status)
		} else {
			log.Info("CONNECT succeeded")
		}
	case <-time.After(5 * time.Second):
		log.Error("CONNECT timed out")
	}

	// Terminate is direct and out-of-band: it does not go through the command queue,
	// drains any in-flight commands with StatusProtocolError, and closes the messaging
	// layer; the transport is left untouched.
	ctx.Terminate()
	log.Info("agent terminated")
}

func init() {
	RootCmd.AddCommand(probeCmd)
	flags := probeCmd.PersistentFlags()

	flags.StringVarP(&MQTTBroker,
		"broker", "b", "localhost", "the MQTT Broker host to connect to (default 'localhost')")
	flags.StringVarP(&MQTTClientName,
		"client", "c", "", "the MQTT client name to use - default is a short UUID")
}
