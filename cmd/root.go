package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hlindberg/agentmq/internal/logging"
)

var cfgFile string

// LogLevel is the logrus level name applied once the root command's PersistentPreRun
// fires - shared across every subcommand the way the teacher's single logging package
// is configured once at startup.
var LogLevel string

// RootCmd is the base command every subcommand (pub, sub, probe) attaches to.
var RootCmd = &cobra.Command{
	Use:   "agentmq",
	Short: "agentmq drives a single-writer MQTT agent from the command line",
	Long: `agentmq is a small CLI around the agent package: a thread-safe command
queue in front of a non-thread-safe MQTT client, serialized through one agent
goroutine that is the only thing ever allowed to touch the socket.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetLevelFromName(LogLevel)
	},
}

// Execute runs RootCmd, exiting the process on error - the standard Cobra entry point
// called from main.go.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.agentmq.yaml)")
	RootCmd.PersistentFlags().StringVarP(&LogLevel, "loglevel", "l", "warn",
		"log level: panic, fatal, error, warn, info, debug, or trace")
}

// initConfig reads in a config file and environment variables, the same
// cobra.OnInitialize + viper pairing the teacher's go.mod dependencies (viper,
// go-homedir) were pulled in for.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".agentmq")
	}

	viper.SetEnvPrefix("AGENTMQ")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}
