package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/tillberg/autorestart"

	"github.com/olasquare/olasquare/internal/channel"
	"github.com/olasquare/olasquare/internal/channel/irc"
	"github.com/olasquare/olasquare/internal/config"
	"github.com/olasquare/olasquare/internal/gateway"
	"github.com/olasquare/olasquare/internal/routing"
	"github.com/olasquare/olasquare/internal/version"
	"github.com/spf13/cobra"
)

const bannerTemplate = `{{ .Title "OLASQUARE" "" 0 }}
{{ .AnsiColor.BrightCyan }}version %s · {{ .GoVersion }} {{ .GOOS }}/{{ .GOARCH }}{{ .AnsiColor.Default }}
`

func printBanner(w io.Writer) {
	banner.Init(w, true, true, strings.NewReader(fmt.Sprintf(bannerTemplate, version.Version)))
}

func newServeCmd() *cobra.Command {
	var (
		port     int
		bind     string
		watch    bool
		noBanner bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket gateway and the configured chat channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if watch {
				go autorestart.RestartOnChange()
				log.Info().Msg("restarting when the binary changes")
			}
			if !noBanner {
				printBanner(cmd.OutOrStdout())
			}

			rt, err := openRuntime(runtimeOptions{model: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			channels := channel.NewRegistry(log)
			if cfg.Channels.IRC != nil {
				channels.Register(irc.New(*cfg.Channels.IRC, log))
			}

			srv := gateway.New(cfg.Gateway, log,
				gateway.WithDispatcher(rt.dispatcher),
				gateway.WithChannels(channels),
				gateway.WithHooks(rt.hooks),
			)

			if channels.Count() > 0 {
				router := routing.NewRouter(channels, rt.dispatcher, cfg.Session.Scope, log)
				router.Wire(ctx)
				channels.StartAll(ctx)
				defer func() {
					channels.StopAll(context.Background())
					channels.Wait()
				}()
				log.Info().
					Int("channels", channels.Count()).
					Str("scope", cfg.Session.Scope).
					Msg("message routing active")
			}

			log.Info().
				Str("persona", rt.dispatcher.Persona().Name).
				Str("model", cfg.Model.Provider+"/"+cfg.Model.Name).
				Strs("tools", rt.tools.Names()).
				Msg("assistant ready")
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-exec when the olasquare binary is rebuilt")
	cmd.Flags().BoolVar(&noBanner, "no-banner", false, "skip the startup banner")

	return cmd
}
