package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultEnvironment         = "local"
	defaultOrderEventsTopic    = "order-events"
	defaultCommerceMode        = CommerceModeStripe
	defaultCommerceCurrency    = "usd"
	defaultCacheTTL            = 10 * time.Minute
	defaultWebhookHeader       = "X-Webhook-Hmac-Sha256"
	defaultResolveConcurrency  = 4
	defaultSecretsFallbackFile = ".secrets.local"
)

// Commerce modes select the commerce platform adapter.
const (
	CommerceModeStripe = "stripe"
	CommerceModeFake   = "fake"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Firestore   FirestoreConfig
	PubSub      PubSubConfig
	Commerce    CommerceConfig
	Cache       CacheConfig
	Webhooks    WebhookConfig
	Orders      OrderConfig
	Secrets     SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig configures order event publication. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
}

// CommerceConfig selects and configures the commerce platform adapter.
type CommerceConfig struct {
	Mode      string
	APIKey    string
	AccountID string
	Currency  string
}

// CacheConfig configures the optional Redis cache for catalog variant lookups.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// WebhookConfig contains inbound webhook security parameters.
type WebhookConfig struct {
	SigningSecret   string
	SignatureHeader string
}

// OrderConfig tunes order assembly.
type OrderConfig struct {
	ResolveConcurrency int
}

// SecretsConfig locates Secret Manager and the local fallback file.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to empty values.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface. Secret names are redacted.
func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns hashed secret identifiers safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map. Values in the map take precedence over
// system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks secret fields (e.g. "Commerce.APIKey") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// Lookup returns a single configuration value using the same precedence as Load. It lets
// callers bootstrap dependencies, such as the secret fetcher, before Load runs.
func Lookup(key string, opts ...Option) (string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookupFunc()
	if err != nil {
		return "", err
	}
	value, _ := lookup(key)
	return value, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, explicit maps and secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := options.lookupFunc()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "FULFILLMENT_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "FULFILLMENT_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "FULFILLMENT_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "FULFILLMENT_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "FULFILLMENT_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FULFILLMENT_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FULFILLMENT_FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:        stringWithDefault(lookup, "FULFILLMENT_PUBSUB_PROJECT_ID", ""),
			OrderEventsTopic: stringWithDefault(lookup, "FULFILLMENT_PUBSUB_ORDER_EVENTS_TOPIC", defaultOrderEventsTopic),
		},
		Commerce: CommerceConfig{
			Mode:      strings.ToLower(stringWithDefault(lookup, "FULFILLMENT_COMMERCE_MODE", defaultCommerceMode)),
			APIKey:    stringWithDefault(lookup, "FULFILLMENT_COMMERCE_API_KEY", ""),
			AccountID: stringWithDefault(lookup, "FULFILLMENT_COMMERCE_ACCOUNT_ID", ""),
			Currency:  strings.ToLower(stringWithDefault(lookup, "FULFILLMENT_COMMERCE_CURRENCY", defaultCommerceCurrency)),
		},
		Cache: CacheConfig{
			RedisAddr:     stringWithDefault(lookup, "FULFILLMENT_CACHE_REDIS_ADDR", ""),
			RedisPassword: stringWithDefault(lookup, "FULFILLMENT_CACHE_REDIS_PASSWORD", ""),
			RedisDB:       intWithDefault(lookup, "FULFILLMENT_CACHE_REDIS_DB", 0),
			TTL:           durationWithDefault(lookup, "FULFILLMENT_CACHE_TTL", defaultCacheTTL),
		},
		Webhooks: WebhookConfig{
			SigningSecret:   stringWithDefault(lookup, "FULFILLMENT_WEBHOOK_SIGNING_SECRET", ""),
			SignatureHeader: stringWithDefault(lookup, "FULFILLMENT_WEBHOOK_SIGNATURE_HEADER", defaultWebhookHeader),
		},
		Orders: OrderConfig{
			ResolveConcurrency: intWithDefault(lookup, "FULFILLMENT_ORDERS_RESOLVE_CONCURRENCY", defaultResolveConcurrency),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "FULFILLMENT_SECRETS_PROJECT_ID", ""),
			FallbackFile: stringWithDefault(lookup, "FULFILLMENT_SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
		},
	}

	// Pub/Sub and Secret Manager default to the Firestore project.
	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.Firestore.ProjectID
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"Commerce.APIKey", &cfg.Commerce.APIKey},
		{"Cache.RedisPassword", &cfg.Cache.RedisPassword},
		{"Webhooks.SigningSecret", &cfg.Webhooks.SigningSecret},
	}
	resolved := make(map[string]string, len(secretFields))
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	var missing []string
	for _, name := range options.requiredSecrets {
		name = strings.TrimSpace(name)
		if name != "" && resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Config{}, &MissingSecretsError{names: missing}
	}

	return cfg, nil
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		}),
	}
}

// lookupFunc applies precedence: explicit map > process env > .env file.
func (o loaderOptions) lookupFunc() (func(string) (string, bool), error) {
	dotEnv, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnv[key]
		return value, ok
	}, nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "secret://"), "sm://")
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	switch cfg.Commerce.Mode {
	case CommerceModeFake:
	case CommerceModeStripe:
		if cfg.Commerce.APIKey == "" {
			missing = append(missing, "Commerce.APIKey")
		}
	default:
		missing = append(missing, "Commerce.Mode")
	}
	if cfg.Commerce.Currency == "" {
		missing = append(missing, "Commerce.Currency")
	}
	if cfg.Cache.RedisAddr != "" && cfg.Cache.TTL <= 0 {
		missing = append(missing, "Cache.TTL")
	}
	if strings.TrimSpace(cfg.Webhooks.SignatureHeader) == "" {
		missing = append(missing, "Webhooks.SignatureHeader")
	}
	if cfg.Orders.ResolveConcurrency <= 0 {
		missing = append(missing, "Orders.ResolveConcurrency")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
