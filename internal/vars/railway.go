package vars

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hpungsan/sieve/internal/errors"
)

const (
	// DefaultRailwayURL is the Railway public GraphQL endpoint.
	DefaultRailwayURL = "https://backboard.railway.app/graphql/v2"

	railwayTimeout = 20 * time.Second
)

const variableUpsertMutation = `
mutation variableUpsert($input: VariableUpsertInput!) {
  variableUpsert(input: $input)
}
`

// RailwayConfig identifies the service whose variables are written.
type RailwayConfig struct {
	Token         string
	ProjectID     string
	EnvironmentID string
	ServiceID     string
	URL           string

	// TriggerDeploys redeploys the service on every upsert when true.
	TriggerDeploys bool
}

// Railway stores variables as Railway service variables. Railway injects
// them into the process environment on deploy, so Get reads the
// environment, overlaid with values written during this run.
type Railway struct {
	cfg        RailwayConfig
	httpClient *http.Client
	lookupEnv  func(string) (string, bool)

	mu      sync.RWMutex
	written map[string]string
}

// NewRailway returns a Railway store. Missing credentials are reported
// by Set, not here, so a read-only process can still start.
func NewRailway(cfg RailwayConfig) *Railway {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultRailwayURL
	}
	return &Railway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: railwayTimeout},
		lookupEnv:  os.LookupEnv,
		written:    make(map[string]string),
	}
}

// SetLookupEnv replaces the environment reader (for tests).
func (r *Railway) SetLookupEnv(fn func(string) (string, bool)) {
	r.lookupEnv = fn
}

func (r *Railway) Get(_ context.Context, name string) (string, bool, error) {
	r.mu.RLock()
	v, ok := r.written[name]
	r.mu.RUnlock()
	if ok {
		return v, true, nil
	}
	v, ok = r.lookupEnv(name)
	return v, ok, nil
}

func (r *Railway) Set(ctx context.Context, name, value string) error {
	if err := r.checkConfig(); err != nil {
		return err
	}

	payload := map[string]any{
		"query": variableUpsertMutation,
		"variables": map[string]any{
			"input": map[string]any{
				"projectId":     r.cfg.ProjectID,
				"environmentId": r.cfg.EnvironmentID,
				"serviceId":     r.cfg.ServiceID,
				"name":          name,
				"value":         value,
				"skipDeploys":   !r.cfg.TriggerDeploys,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return errors.NewInternal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.NewCollaboratorUnavailable("railway", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return errors.NewCollaboratorUnavailable("railway",
			fmt.Errorf("HTTP %d %s | %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(respBody))))
	}

	if errs := gjson.GetBytes(respBody, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		msgs := make([]string, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			if m := e.Get("message").String(); m != "" {
				msgs = append(msgs, m)
			} else {
				msgs = append(msgs, e.Raw)
			}
		}
		return errors.NewCollaboratorUnavailable("railway",
			fmt.Errorf("GraphQL errors: %s", strings.Join(msgs, "; ")))
	}

	r.mu.Lock()
	r.written[name] = value
	r.mu.Unlock()
	return nil
}

func (r *Railway) checkConfig() error {
	switch {
	case r.cfg.Token == "":
		return errors.NewConfigurationMissing("RAILWAY_TOKEN")
	case r.cfg.ProjectID == "":
		return errors.NewConfigurationMissing("RAILWAY_PROJECT_ID")
	case r.cfg.EnvironmentID == "":
		return errors.NewConfigurationMissing("RAILWAY_ENVIRONMENT_ID")
	case r.cfg.ServiceID == "":
		return errors.NewConfigurationMissing("RAILWAY_SERVICE_ID")
	}
	return nil
}
