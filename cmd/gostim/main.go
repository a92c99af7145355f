package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	sloggger "github.com/fishlab/gostim/cmd/gostim/log"
	"github.com/fishlab/gostim/internal/config"
	"github.com/fishlab/gostim/internal/event"
	"github.com/fishlab/gostim/internal/remote/discord"
	ngrokremote "github.com/fishlab/gostim/internal/remote/ngrok"
	"github.com/fishlab/gostim/internal/remote/telegram"
	"github.com/fishlab/gostim/internal/render"
	"github.com/fishlab/gostim/internal/server"
	"github.com/fishlab/gostim/internal/stim"
	"github.com/fishlab/gostim/internal/stimlog"
	"github.com/fishlab/gostim/internal/texture"
)

var (
	buildID   string
	buildTime string
)

// wrapWithRecover wraps a function with panic recovery logic
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := debug.Stack()
				errMsg := fmt.Sprintf("panic recovered: %v\nStacktrace: %s", r, stackTrace)
				logger.Error(errMsg)
				sloggger.FlushLog()
			}
		}()
		return f()
	}
}

func main() {

	_ = buildID
	_ = buildTime

	err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %s", err.Error())
		return
	}

	logger, err := sloggger.NewLogger(config.Rig.Debug.Log, config.Rig.LogSaveDirectory, "")
	if err != nil {
		log.Fatalf("Error starting logger: %s", err.Error())
	}
	defer sloggger.FlushAndClose()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fatal error detected, gostim will close with the following error: %v\n Stacktrace: %s", r, debug.Stack())
			logger.Error(err.Error())
			sloggger.FlushAndClose()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	rigName := config.Rig.Session.RigName
	eventListener := event.NewListener(logger)

	stimWriter := stimlog.NewWriter(
		config.Rig.LogSaveDirectory,
		config.Rig.Session.SubjectID,
		config.Rig.Session.SubjectAge,
		logger,
	)
	defer stimWriter.Close()
	eventListener.Register(stimWriter.Handle)

	catalog := texture.NewStaticCatalog(config.Rig.Textures.Frequencies, config.Rig.Textures.DefaultFrequency)
	defaults := stim.Defaults{CenterWidth: config.Rig.Defaults.CenterWidth}

	scheduler := stim.NewScheduler(logger, rigName, catalog)
	controller := stim.NewController(logger, rigName, scheduler, catalog, defaults)

	var renderer stim.Renderer = render.NopRenderer{}
	var srv *server.HttpServer
	if config.Rig.Server.Enabled {
		srv, err = server.New(logger, controller, scheduler)
		if err != nil {
			log.Fatalf("Error starting local server: %s", err.Error())
		}
		eventListener.Register(srv.HandleEvent)
		renderer = server.NewFrameBroadcaster(srv)
	}

	dotSeed := config.Rig.Display.DotSeed
	if dotSeed == 0 {
		dotSeed = time.Now().UnixNano()
	}
	driver := stim.NewDriver(logger, scheduler, renderer, config.Rig.Display.FPS, dotSeed)

	var ngrokTunnel *ngrokremote.Tunnel
	if config.Rig.Ngrok.Enabled && config.Rig.Server.Enabled {
		if config.Rig.Ngrok.Authtoken == "" && os.Getenv("NGROK_AUTHTOKEN") == "" {
			logger.Warn("ngrok enabled but no authtoken set; skipping tunnel start")
		} else {
			opts := ngrokremote.Options{
				LocalAddr:     fmt.Sprintf("http://localhost:%d", config.Rig.Server.Port),
				Authtoken:     config.Rig.Ngrok.Authtoken,
				Region:        config.Rig.Ngrok.Region,
				Domain:        config.Rig.Ngrok.Domain,
				BasicAuthUser: config.Rig.Ngrok.BasicAuthUser,
				BasicAuthPass: config.Rig.Ngrok.BasicAuthPass,
			}
			tunnel, err := ngrokremote.Start(ctx, opts)
			if err != nil {
				logger.Error("ngrok tunnel failed to start", slog.Any("error", err))
			} else {
				logger.Info("ngrok tunnel established", slog.String("url", tunnel.URL()))
				if config.Rig.Ngrok.SendURL {
					go event.Send(event.TunnelStarted(tunnel.URL()))
				}
			}
			ngrokTunnel = tunnel
		}
	}

	// Discord Bot initialization
	if config.Rig.Discord.Enabled {
		discordBot, err := discord.NewBot(
			config.Rig.Discord.Token,
			config.Rig.Discord.ChannelID,
			controller,
			scheduler,
			config.Rig.Discord.UseWebhook,
			config.Rig.Discord.WebhookURL,
		)
		if err != nil {
			logger.Error("Discord could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(discordBot.Handle)
		if !config.Rig.Discord.UseWebhook {
			g.Go(wrapWithRecover(logger, func() error {
				return discordBot.Start(ctx)
			}))
		}
	}

	// Telegram Bot initialization
	if config.Rig.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(config.Rig.Telegram.Token, config.Rig.Telegram.ChatID, scheduler, logger)
		if err != nil {
			logger.Error("Telegram could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(telegramBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			return telegramBot.Start(ctx)
		}))
	}

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return scheduler.Run(ctx)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return driver.Run(ctx)
	}))

	if srv != nil {
		g.Go(wrapWithRecover(logger, func() error {
			defer cancel()
			return srv.Listen(config.Rig.Server.Port)
		}))
	}

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return eventListener.Listen(ctx)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
		logger.Info("gostim shutting down...")
		if srv != nil {
			if stopErr := srv.Stop(); stopErr != nil {
				logger.Error("error stopping local server", slog.Any("error", stopErr))
			}
		}
		if ngrokTunnel != nil {
			if closeErr := ngrokTunnel.Close(); closeErr != nil {
				logger.Error("error stopping ngrok tunnel", slog.Any("error", closeErr))
			}
		}
		return nil
	}))

	event.Send(event.SessionStarted(
		event.Text(rigName, "Session started"),
		stimWriter.SessionID(),
		config.Rig.Session.SubjectID,
		config.Rig.Session.SubjectAge,
	))

	// The display always comes up showing something safe.
	if _, err := controller.Switch(ctx, config.Rig.InitialStimulus); err != nil {
		logger.Warn("initial stimulus rejected, staying blank", slog.Any("error", err))
		controller.Blank(ctx)
	}

	err = g.Wait()
	if err != nil {
		cancel()
		logger.Error("Error running gostim", slog.Any("error", err))
		return
	}

	sloggger.FlushAndClose()
}
