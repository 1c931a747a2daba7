package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/harmony-chat/harmony-server/pkg/config"
	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/service"
	"github.com/harmony-chat/harmony-server/pkg/telemetry/prometheus"
	"github.com/harmony-chat/harmony-server/pkg/utils"
	"github.com/harmony-chat/harmony-server/version"
)

var flags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to harmony config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"HARMONY_CONFIG"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "sets log-level to debug and console formatter. insecure for production",
	},
}

func main() {
	app := &cli.App{
		Name:        "harmony-server",
		Usage:       "Realtime coordination server for voice and text channels",
		Description: "run without subcommands to start the server",
		Flags:       flags,
		Action:      startServer,
		Commands: []*cli.Command{
			{
				Name:   "ports",
				Usage:  "print ports that the server is configured to use",
				Action: printPorts,
			},
		},
		Version: version.Version,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString, err := getConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}

	conf, err := config.NewConfig(confString)
	if err != nil {
		return nil, err
	}
	if c.Bool("dev") {
		conf.Development = true
		conf.Logging.Level = "debug"
	}

	if conf.UseConsoleLogger() {
		logger.InitDevelopment(conf.Logging.Level)
	} else {
		logger.InitProduction(conf.Logging.Level)
	}
	return conf, nil
}

func startServer(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	nodeID := utils.NewGuid(utils.NodePrefix)
	prometheus.Init(nodeID)

	server, err := service.NewHarmonyServer(conf)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-sigChan
		logger.Infow("exit requested, shutting down", "signal", sig)
		server.Stop()
	}()

	return server.Start()
}

func printPorts(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	fmt.Printf("http/websocket: %d\n", conf.Port)
	fmt.Printf("rtc udp range: %d-%d\n", conf.RTC.MinPort, conf.RTC.MaxPort)
	return nil
}

func getConfigString(configFile, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}
	content, err := os.ReadFile(configFile)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
