package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// A SyncClient keeps the compositor's store in sync with the backend: a bulk
// seed fetch on connect, then channel-scoped sync events applied in arrival
// order. It never reconnects on its own; on a dropped stream the compositor
// keeps rendering the last-known state.
type SyncClient struct {
	client  mqtt.Client
	comp    *Compositor
	httpc   *http.Client
	baseURL string
	channel string
	topic   string
	log     zerolog.Logger
}

// NewSyncClient creates a SyncClient for the configured channel.
func NewSyncClient(client mqtt.Client, comp *Compositor, cfg Config, httpc *http.Client, log zerolog.Logger) *SyncClient {
	s := new(SyncClient)
	s.client = client
	s.comp = comp
	s.httpc = httpc
	s.baseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	s.channel = cfg.Channel
	s.topic = cfg.EventsTopic()
	s.log = log.With().Str("component", "sync").Logger()
	return s
}

// Subscribe attaches the event handler to the channel topic. Called from the
// MQTT on-connect callback.
func (s *SyncClient) Subscribe() error {
	token := s.client.Subscribe(s.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		s.handlePayload(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	s.log.Info().Str("topic", s.topic).Msg("subscribed")
	return nil
}

// handlePayload decodes one sync event and posts it onto the compositor
// loop. Undecodable payloads are dropped whole.
func (s *SyncClient) handlePayload(payload []byte) {
	var evt SyncEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		s.log.Warn().Err(err).Msg("undecodable sync event")
		return
	}
	s.comp.Post(func() {
		s.comp.ApplyEvent(evt)
	})
}

// SeedVisible fetches the channel's visible asset list and replaces the
// store contents with it.
func (s *SyncClient) SeedVisible(ctx context.Context) error {
	u := fmt.Sprintf("%s/api/channels/%s/assets/visible", s.baseURL, url.PathEscape(s.channel))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("bulk fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bulk fetch: unexpected status %s", resp.Status)
	}
	var list []Asset
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("bulk fetch: %w", err)
	}
	s.comp.Post(func() {
		s.comp.Seed(list)
	})
	return nil
}

// NewHTTPFetcher builds the media fetcher, resolving relative asset urls
// against the backend base url.
func NewHTTPFetcher(baseURL string, client *http.Client) Fetcher {
	base := strings.TrimRight(baseURL, "/")
	return func(ref string) ([]byte, error) {
		u := ref
		if strings.HasPrefix(ref, "/") {
			u = base + ref
		}
		resp, err := client.Get(u)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: unexpected status %s", u, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
}
