package gateway

import (
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/kataway/supergateway/federation/graph"
)

// SubgraphSetting is one subgraph's entry in gateway.toml.
type SubgraphSetting struct {
	Name                 string `toml:"name"`
	URL                  string `toml:"url"`
	Virtual              bool   `toml:"virtual"`
	Subscription         string `toml:"subscription_protocol"` // "none" | "graphql_ws" | "sse"
	EntityCacheTTLSec    int    `toml:"entity_cache_ttl_seconds"`
	HeaderRules          []HeaderRuleSetting `toml:"header_rules"`
}

// HeaderRuleSetting is one header rule entry.
type HeaderRuleSetting struct {
	Kind    string `toml:"kind"` // "forward" | "insert" | "remove" | "rename_duplicate"
	Name    string `toml:"name"`
	Rename  string `toml:"rename"`
	Value   string `toml:"value"`
	Default string `toml:"default"`
}

// TracingSetting controls OpenTelemetry wiring.
type TracingSetting struct {
	Enable   bool   `toml:"enable"`
	Endpoint string `toml:"endpoint"`
}

// CORSSetting controls the rs/cors policy.
type CORSSetting struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowedMethods []string `toml:"allowed_methods"`
	AllowedHeaders []string `toml:"allowed_headers"`
}

// JWTSetting configures the default gateway/authext.Verifier Extensions
// implementation backing @authenticated/@requiresScopes/@authorized
// enforcement. Left disabled, the gateway carries no Extensions and every
// modifier-bearing field is allowed through unchecked.
type JWTSetting struct {
	Enable    bool   `toml:"enable"`
	HMACSecret string `toml:"hmac_secret"`
}

// Settings is the root gateway.toml document.
type Settings struct {
	ServiceName     string            `toml:"service_name"`
	Port            int               `toml:"port"`
	SupergraphPath  string            `toml:"supergraph_path"`
	TimeoutDuration string            `toml:"timeout_duration"`
	Subgraphs       []SubgraphSetting `toml:"subgraphs"`
	Tracing         TracingSetting    `toml:"tracing"`
	CORS            CORSSetting       `toml:"cors"`
	JWT             JWTSetting        `toml:"jwt"`
}

// LoadSettings reads and decodes a gateway.toml file.
func LoadSettings(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway config: %w", err)
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway config: %w", err)
	}

	var s Settings
	if err := toml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("failed to decode gateway config: %w", err)
	}
	return &s, nil
}

// SubgraphConfigs converts the settings' subgraph entries into
// graph.SubgraphConfig, resolving the header rule and subscription-protocol
// enums.
func (s *Settings) SubgraphConfigs() []graph.SubgraphConfig {
	out := make([]graph.SubgraphConfig, 0, len(s.Subgraphs))
	for _, sub := range s.Subgraphs {
		cfg := graph.SubgraphConfig{
			Name:              sub.Name,
			URL:               sub.URL,
			Virtual:           sub.Virtual,
			EntityCacheTTLSec: sub.EntityCacheTTLSec,
		}
		switch sub.Subscription {
		case "graphql_ws":
			cfg.SubscriptionProtocol = graph.SubscriptionProtocolGraphQLWS
		case "sse":
			cfg.SubscriptionProtocol = graph.SubscriptionProtocolSSE
		default:
			cfg.SubscriptionProtocol = graph.SubscriptionProtocolNone
		}
		for _, r := range sub.HeaderRules {
			hr := graph.HeaderRule{Name: r.Name, Rename: r.Rename, Value: r.Value, Default: r.Default}
			switch r.Kind {
			case "insert":
				hr.Kind = graph.HeaderInsert
			case "remove":
				hr.Kind = graph.HeaderRemove
			case "rename_duplicate":
				hr.Kind = graph.HeaderRenameDuplicate
			default:
				hr.Kind = graph.HeaderForward
			}
			cfg.HeaderRules = append(cfg.HeaderRules, hr)
		}
		out = append(out, cfg)
	}
	return out
}
