package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredmq/alfred-go"
	"github.com/alfredmq/alfred-go/bridge"
	"github.com/alfredmq/alfred-go/contracts"
	"github.com/alfredmq/alfred-go/routing"
	"github.com/alfredmq/alfred-go/scheduler"
	"github.com/alfredmq/alfred-go/transports/zeromq"
)

func newBrokerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "broker",
		Short: "Run the ZeroMQ forwarder between publishers and subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig("broker")
			if err != nil {
				return err
			}

			broker := zeromq.NewBroker(cfg.Alfred.PubPort, cfg.Alfred.SubPort, zeromq.WithBrokerLogger(a.logger))
			a.logger.Info("Starting broker", "pub_port", cfg.Alfred.PubPort, "sub_port", cfg.Alfred.SubPort)
			return broker.Run(cmd.Context())
		},
	}
}

func newRoutingCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "routing",
		Short: "Forward messages according to a routing table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rules, err := routing.LoadFile(file)
			if errors.Is(err, fs.ErrNotExist) {
				a.logger.Warn("Routing file not found, nothing to do", "file", file)
				return nil
			}
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				a.logger.Warn("No routes configured", "file", file)
				return nil
			}

			module, err := a.connect(ctx, "routing")
			if err != nil {
				return err
			}
			defer module.Close()

			router, err := routing.NewRouter(ctx, module, rules, routing.WithLogger(a.logger))
			if err != nil {
				return err
			}
			a.logger.Info("Routing started", "routes", router.Table().Len(), "topics", router.Table().Topics())
			return router.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", routing.DefaultFilename, "Routing table")
	return cmd
}

func newCronCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Send scheduled messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			jobs, err := scheduler.LoadFile(file)
			if errors.Is(err, fs.ErrNotExist) {
				a.logger.Warn("Cron file not found, nothing to do", "file", file)
				return nil
			}
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				a.logger.Warn("No cron jobs configured", "file", file)
				return nil
			}

			module, err := a.connect(ctx, "cron")
			if err != nil {
				return err
			}
			defer module.Close()

			s, err := scheduler.New(module, jobs, scheduler.WithLogger(a.logger))
			if err != nil {
				return err
			}
			a.logger.Info("Cron started", "jobs", len(jobs))
			return s.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", scheduler.DefaultFilename, "Cron table")
	return cmd
}

func newLogsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "logs",
		Short:       "Log every message published on the bus",
		Annotations: map[string]string{observesPeers: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			module, err := a.connect(ctx, "logs")
			if err != nil {
				return err
			}
			defer module.Close()

			if err := module.Listen(ctx, ""); err != nil {
				return err
			}

			for {
				topic, msg, err := module.ReceiveAll(ctx)
				if err != nil {
					return err
				}
				a.observe(topic, msg)
				logMessage(a, topic, msg)
			}
		},
	}
}

func logMessage(a *app, topic string, msg contracts.Message) {
	attrs := []any{"topic", topic, "sender", msg.Sender, "response_topics", msg.ResponseTopics.Topics()}
	switch msg.Type {
	case contracts.Text:
		a.logger.Info(msg.Text, attrs...)
	case contracts.Audio, contracts.Photo:
		a.logger.Info(msg.Type.String(), append(attrs, "bytes", len(msg.Text))...)
	case contracts.ModuleInfo:
		a.logger.Info("Module info", append(attrs, "module", msg.Text, "capabilities", msg.Params)...)
	default:
		a.logger.Warn("Unknown message", append(attrs, "text", msg.Text)...)
	}
}

func newModulesCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:         "modules",
		Short:       "List the modules connected to the bus",
		Annotations: map[string]string{observesPeers: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			module, err := a.connect(ctx, "modules")
			if err != nil {
				return err
			}
			defer module.Close()

			peers, err := a.directory.Discover(ctx, module, timeout)
			if err != nil {
				return fmt.Errorf("discovery failed: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTOPICS")
			for _, p := range peers {
				fmt.Fprintf(w, "%s\t%s\n", p.Name, strings.Join(p.Topics(), ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 2*time.Second, "How long to wait for answers")
	return cmd
}

func newRequestCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "request <topic> <text>",
		Short: "Send a text message and print the first reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			b := bridge.New("request", bridge.WithLogger(a.logger))
			defer b.Close()

			module, err := a.connect(ctx, "request", alfred.WithInterceptors(b))
			if err != nil {
				return err
			}
			defer module.Close()

			go func() {
				for {
					if _, _, err := module.Receive(ctx); err != nil {
						return
					}
				}
			}()

			reply, err := b.Request(ctx, module, args[0], contracts.NewTextMessage(args[1], module.Name()), timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Text)
			return nil
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "How long to wait for the reply")
	return cmd
}
