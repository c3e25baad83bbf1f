package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/Kruhlmann/imgfloat-j/api"
	"github.com/Kruhlmann/imgfloat-j/canvas"
	"github.com/Kruhlmann/imgfloat-j/script"
)

type app struct {
	Config     canvas.Config
	Client     mqtt.Client
	Compositor *canvas.Compositor
	Sync       *canvas.SyncClient
	API        *api.Server
	Log        zerolog.Logger
}

func newApp(log zerolog.Logger) *app {
	a := new(app)
	a.Log = log
	return a
}

func (a *app) readConfig(configPath string) {
	f, err := os.Open(configPath)
	if err != nil {
		a.Log.Fatal().Err(err).Str("path", configPath).Msg("cannot open config")
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&a.Config); err != nil {
		a.Log.Fatal().Err(err).Msg("cannot parse config")
	}
	if a.Config.Channel == "" {
		a.Log.Fatal().Msg("config: channel is required")
	}
}

func (a *app) handleOnConnect(client mqtt.Client) {
	a.Log.Info().Msg("connected")
	go func() {
		if err := a.Sync.Subscribe(); err != nil {
			a.Log.Error().Err(err).Msg("event subscribe failed")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Sync.SeedVisible(ctx); err != nil {
			// Keep rendering whatever arrives over the stream.
			a.Log.Error().Err(err).Msg("bulk seed failed")
		}
	}()
}

// reportScriptError publishes code asset failures to the operator topic.
func (a *app) reportScriptError(assetID string, stage string, err error) {
	payload, merr := json.Marshal(map[string]string{
		"assetId": assetID,
		"stage":   stage,
		"error":   err.Error(),
	})
	if merr != nil {
		return
	}
	a.Client.Publish(a.Config.ScriptErrorsTopic(), 0, false, payload)
}

func (a *app) run() {
	if token := a.Client.Connect(); token.Wait() && token.Error() != nil {
		a.Log.Fatal().Err(token.Error()).Msg("mqtt connect failed")
	}
	go func() {
		if err := a.API.Serve(); err != nil {
			a.Log.Fatal().Err(err).Msg("api server stopped")
		}
	}()
	a.Compositor.Run(context.Background())
}

func main() {
	configPath := flag.String("config", "config.yaml", "YAML config file.")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	a := newApp(log)
	a.readConfig(*configPath)
	cfg := a.Config

	surface, err := canvas.NewSurface(cfg.SurfaceWidth(), cfg.SurfaceHeight(), cfg.Render.Background)
	if err != nil {
		log.Fatal().Err(err).Msg("bad render background")
	}

	httpc := &http.Client{Timeout: 30 * time.Second}
	fetch := canvas.NewHTTPFetcher(cfg.Server.BaseURL, httpc)
	store := canvas.NewStore(true)
	comp := canvas.NewCompositor(cfg, surface, store, fetch, canvas.SystemClock{}, log)
	a.Compositor = comp

	runtime := script.NewRuntime(cfg.Channel, surface.Context(), comp.VisibleAssets, fetch, comp.Post, a.reportScriptError, log)
	comp.SetScripts(runtime)

	listen := cfg.Server.Listen
	if listen == "" {
		listen = ":3000"
	}
	a.API = api.NewServer(cfg.Channel, listen, log)
	comp.SetOnFrame(a.API.Broadcast)

	options := mqtt.NewClientOptions().
		AddBroker(cfg.Mqtt.URL).
		SetClientID("imgfloat-" + cfg.Channel).
		SetUsername(cfg.Mqtt.Username).
		SetPassword(cfg.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(false).
		SetOnConnectHandler(a.handleOnConnect)
	a.Client = mqtt.NewClient(options)
	a.Sync = canvas.NewSyncClient(a.Client, comp, cfg, httpc, log)

	a.run()
}
