// Package config assembles the process configuration from the environment
// and optional YAML sampling plans.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/ontokit/internal/util"
	"github.com/OFFIS-RIT/ontokit/pkg/sampling"
	"github.com/OFFIS-RIT/ontokit/pkg/stats"

	"gopkg.in/yaml.v3"
)

var ErrMissing = errors.New("missing configuration")

type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

type AuthConfig struct {
	JWKSURL        string
	MasterAPIKey   string
	MasterUserID   int32
	MasterUserRole string
}

// SourceConfig locates the ontology and annotation files. With Source "s3"
// the paths are object keys in the configured bucket.
type SourceConfig struct {
	Source          string
	OntologyID      string
	OntologyPath    string
	AnnotationsPath string
	Propagating     []string
	ArtificialRoot  bool
}

type Config struct {
	Port          string
	DatabaseURL   string
	MigrationsURL string
	AMQPURL       string
	LogLevel      string
	LogJSON       bool
	Debug         bool

	S3      S3Config
	Auth    AuthConfig
	Sources SourceConfig

	WorkerThreads    int
	DistributionPath string
	Correction       stats.Method
}

// Load reads the configuration from the environment. LoadEnv should have
// run before.
func Load() (Config, error) {
	c := Config{
		Port:          util.GetEnvString("PORT", "8080"),
		DatabaseURL:   util.GetEnv("DATABASE_URL"),
		MigrationsURL: util.GetEnvString("MIGRATIONS_URL", "file://migrations"),
		AMQPURL:       util.GetEnv("RABBITMQ_URL"),
		LogLevel:      util.GetEnv("LOG_LEVEL"),
		LogJSON:       util.GetEnvBool("LOG_JSON", false),
		Debug:         util.GetEnvBool("DEBUG", false),
		S3: S3Config{
			Endpoint:       util.GetEnv("AWS_ENDPOINT"),
			PublicEndpoint: util.GetEnv("AWS_PUBLIC_ENDPOINT"),
			Region:         util.GetEnvString("AWS_REGION", "us-east-1"),
			AccessKey:      util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey:      util.GetEnv("AWS_SECRET_KEY"),
			Bucket:         util.GetEnv("AWS_BUCKET"),
		},
		Auth: AuthConfig{
			JWKSURL:        jwksURL(util.GetEnv("AUTH_URL")),
			MasterAPIKey:   util.GetEnv("MASTER_API_KEY"),
			MasterUserID:   int32(util.GetEnvInt("MASTER_USER_ID", 0)),
			MasterUserRole: util.GetEnvString("MASTER_USER_ROLE", "admin"),
		},
		Sources: SourceConfig{
			Source:          util.GetEnvString("ONTOLOGY_SOURCE", "local"),
			OntologyID:      util.GetEnvString("ONTOLOGY_ID", "hp"),
			OntologyPath:    util.GetEnv("ONTOLOGY_PATH"),
			AnnotationsPath: util.GetEnv("ANNOTATIONS_PATH"),
			Propagating:     splitList(util.GetEnv("ONTOLOGY_PROPAGATING")),
			ArtificialRoot:  util.GetEnvBool("ONTOLOGY_ARTIFICIAL_ROOT", false),
		},
		WorkerThreads:    util.GetEnvInt("WORKER_THREADS", runtime.NumCPU()),
		DistributionPath: util.GetEnv("DISTRIBUTION_PATH"),
	}

	method, err := stats.ParseMethod(util.GetEnvString("CORRECTION", string(stats.BenjaminiHochberg)))
	if err != nil {
		return Config{}, err
	}
	c.Correction = method

	if c.Sources.Source != "local" && c.Sources.Source != "s3" {
		return Config{}, fmt.Errorf("ONTOLOGY_SOURCE must be local or s3, got %q", c.Sources.Source)
	}
	if c.Sources.Source == "s3" && !c.S3.Enabled() {
		return Config{}, fmt.Errorf("%w: AWS_BUCKET is required for ONTOLOGY_SOURCE=s3", ErrMissing)
	}
	if c.WorkerThreads < 1 {
		c.WorkerThreads = 1
	}
	return c, nil
}

// Require fails with ErrMissing naming every empty value.
func Require(values map[string]string) error {
	var missing []string
	for name, v := range values {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
}

func jwksURL(authURL string) string {
	if authURL == "" {
		return ""
	}
	return strings.TrimSuffix(authURL, "/") + "/jwks"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Plan is a sampling plan as written in YAML:
//
//	ontology: hp
//	correction: bh
//	sampling:
//	  num_threads: 8
//	  min_num_terms: 1
//	  max_num_terms: 10
//	  num_iterations: 100000
//	  seed: 42
type Plan struct {
	Ontology   string           `yaml:"ontology"`
	Correction string           `yaml:"correction"`
	Sampling   sampling.Options `yaml:"sampling"`
}

// DefaultPlan samples every object with sampling.DefaultOptions.
func DefaultPlan() Plan {
	return Plan{
		Correction: string(stats.BenjaminiHochberg),
		Sampling:   sampling.DefaultOptions(),
	}
}

// ParsePlan decodes a plan; fields not present keep their defaults.
func ParsePlan(data []byte) (Plan, error) {
	p := DefaultPlan()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("failed to parse sampling plan: %w", err)
	}
	if err := p.Sampling.Validate(); err != nil {
		return Plan{}, err
	}
	if _, err := stats.ParseMethod(p.Correction); err != nil {
		return Plan{}, err
	}
	return p, nil
}

func LoadPlan(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read sampling plan: %w", err)
	}
	return ParsePlan(data)
}
