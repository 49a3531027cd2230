package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mfigueredo/skinarb/internal/domain"
)

// KeySpec describes where an adapter's credential lives and how it is sent.
// It is metadata only; the secret value is read from the environment.
type KeySpec struct {
	EnvVar     string `toml:"env_var"`
	Required   bool   `toml:"required"`
	AuthType   string `toml:"type"`        // "bearer" or "api_key"
	HeaderName string `toml:"header_name"` // defaults to Authorization
}

// Secrets is the read-only registry of venue credentials and proxy-vendor
// tokens. It never persists secret values and redacts them when printed.
type Secrets struct {
	specs map[domain.Venue]KeySpec
	keys  map[domain.Venue]string
}

// defaultKeySpecs mirrors the venues that expect an API credential.
func defaultKeySpecs() map[domain.Venue]KeySpec {
	specs := make(map[domain.Venue]KeySpec)
	for _, v := range domain.AllVenues {
		specs[v] = KeySpec{
			EnvVar:     strings.ToUpper(string(v)) + "_API_KEY",
			AuthType:   "bearer",
			HeaderName: "Authorization",
		}
	}
	specs[domain.VenueEmpire] = KeySpec{EnvVar: "EMPIRE_API_KEY", Required: true, AuthType: "bearer", HeaderName: "Authorization"}
	specs[domain.VenueShadowpay] = KeySpec{EnvVar: "SHADOWPAY_API_KEY", Required: true, AuthType: "bearer", HeaderName: "Authorization"}
	specs[domain.VenueSkindeck] = KeySpec{EnvVar: "SKINDECK_API_KEY", Required: true, AuthType: "bearer", HeaderName: "Authorization"}
	specs[domain.VenueWaxpeer] = KeySpec{EnvVar: "WAXPEER_API_KEY", AuthType: "bearer", HeaderName: "Authorization"}
	return specs
}

// loadSecrets builds the registry from the optional api_keys.toml metadata
// file and the process environment. If the file contains a literal secret
// value it is rejected: keys must only ever come from environment variables.
func loadSecrets(path string) (*Secrets, error) {
	specs := defaultKeySpecs()

	var file struct {
		Keys map[string]KeySpec `toml:"keys"`
	}
	md, err := toml.DecodeFile(path, &file)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: api_keys: unexpected field %q (only credential metadata is allowed; key values come from the environment)",
			domain.ErrConfig, undecoded[0].String())
	}
	for name, spec := range file.Keys {
		venue := domain.Venue(name)
		if !venue.Valid() {
			return nil, fmt.Errorf("%w: api_keys: unknown venue %q", domain.ErrConfig, name)
		}
		if spec.EnvVar == "" {
			spec.EnvVar = strings.ToUpper(name) + "_API_KEY"
		}
		if spec.HeaderName == "" {
			spec.HeaderName = "Authorization"
		}
		if spec.AuthType == "" {
			spec.AuthType = "bearer"
		}
		specs[venue] = spec
	}

	keys := make(map[domain.Venue]string)
	for venue, spec := range specs {
		if v := os.Getenv(spec.EnvVar); v != "" {
			keys[venue] = v
		}
	}

	return &Secrets{specs: specs, keys: keys}, nil
}

// Key returns the credential for a venue, or "" when absent.
func (s *Secrets) Key(venue domain.Venue) string {
	return s.keys[venue]
}

// Spec returns the credential metadata for a venue.
func (s *Secrets) Spec(venue domain.Venue) KeySpec {
	return s.specs[venue]
}

// Require returns the credential for a venue, or a MissingAPIKeyError when
// it is absent. Adapters call this before touching the network.
func (s *Secrets) Require(venue domain.Venue) (string, error) {
	if key, ok := s.keys[venue]; ok {
		return key, nil
	}
	return "", &domain.MissingAPIKeyError{Venue: venue, EnvVar: s.specs[venue].EnvVar}
}

// AuthHeader returns the header name and value carrying the venue's
// credential, honouring the configured auth type.
func (s *Secrets) AuthHeader(venue domain.Venue, key string) (string, string) {
	spec := s.specs[venue]
	switch spec.AuthType {
	case "api_key":
		return spec.HeaderName, key
	default:
		return spec.HeaderName, "Bearer " + key
	}
}

const redacted = "***"

// Redacted returns a printable summary of which venues have credentials
// configured, with every value replaced by the redaction placeholder.
func (s *Secrets) Redacted() map[string]string {
	out := make(map[string]string, len(s.keys))
	for venue := range s.keys {
		out[string(venue)] = redacted
	}
	return out
}

// RedactedConfig returns a shallow copy of cfg with sensitive fields
// replaced by the redaction placeholder. Use this when logging the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Proxy = cfg.Proxy
	redact(&out.Proxy.AuthToken)
	redact(&out.Proxy.OrderToken)

	out.Archive = cfg.Archive
	redact(&out.Archive.AccessKey)
	redact(&out.Archive.SecretKey)

	return out
}

// redact replaces a non-empty string with the redaction placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
