// Package config loads the web2epub configuration file.
//
// The boilerplate phrase and selector lists used during HTML cleanup are
// deployment-specific (the defaults target French news sites), so they
// live in the config file rather than in code.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Normalize NormalizeConfig `yaml:"normalize"`
	Images    ImagesConfig    `yaml:"images"`
	Export    ExportConfig    `yaml:"export"`
	Upload    UploadConfig    `yaml:"upload"`
	Server    ServerConfig    `yaml:"server"`
}

// NormalizeConfig holds the content-cleanup rules.
type NormalizeConfig struct {
	// RemovePhrases is matched case-insensitively against element text,
	// but only when the element's total text is shorter than
	// PhraseTextLimit, so legitimate paragraphs that merely mention a
	// phrase survive.
	RemovePhrases   []string `yaml:"remove_phrases"`
	RemoveSelectors []string `yaml:"remove_selectors"`
	PhraseTextLimit int      `yaml:"phrase_text_limit"`
	FlattenLinks    bool     `yaml:"flatten_links"`
}

type ImagesConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	Concurrency  int           `yaml:"concurrency"`
	MaxBytes     int64         `yaml:"max_bytes"`
	UserAgent    string        `yaml:"user_agent"`
	AllowPrivate bool          `yaml:"allow_private"` // permit private-range hosts (tests only)
}

type ExportConfig struct {
	Language string `yaml:"language"`
	Creator  string `yaml:"creator"`
}

// UploadConfig configures the client side of the storage server.
type UploadConfig struct {
	ServerURL string        `yaml:"server_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ServerConfig configures the storage server itself.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	APIKey        string `yaml:"api_key"`
	StorageRoot   string `yaml:"storage_root"`
	MaxUploadMB   int64  `yaml:"max_upload_mb"`
	ThrottleLimit int    `yaml:"throttle_limit"`
}

// Load reads a yaml config file, expanding ${ENV} references. A missing
// path yields the compiled-in defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.setDefaults()
	return cfg, nil
}

// Default returns the compiled-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if len(c.Normalize.RemovePhrases) == 0 {
		c.Normalize.RemovePhrases = defaultRemovePhrases
	}
	if len(c.Normalize.RemoveSelectors) == 0 {
		c.Normalize.RemoveSelectors = defaultRemoveSelectors
	}
	if c.Normalize.PhraseTextLimit == 0 {
		c.Normalize.PhraseTextLimit = 50
	}
	if c.Images.Timeout == 0 {
		c.Images.Timeout = 30 * time.Second
	}
	if c.Images.Concurrency == 0 {
		c.Images.Concurrency = 4
	}
	if c.Images.MaxBytes == 0 {
		c.Images.MaxBytes = 32 * 1024 * 1024
	}
	if c.Export.Language == "" {
		c.Export.Language = "fr"
	}
	if c.Export.Creator == "" {
		c.Export.Creator = "web2epub"
	}
	if c.Upload.ServerURL == "" {
		c.Upload.ServerURL = "http://localhost:3000"
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = 60 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.StorageRoot == "" {
		c.Server.StorageRoot = "."
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 50
	}
	if c.Server.ThrottleLimit == 0 {
		c.Server.ThrottleLimit = 10
	}
}

// Curated boilerplate lists for French news sites. Element text matching
// any entry (under the length gate) is removed, as is any element whose
// class or id contains an entry of the selector list.
var defaultRemovePhrases = []string{
	"lire aussi",
	"à lire aussi",
	"lire également",
	"sur le même sujet",
	"dans la même rubrique",
	"à voir aussi",
	"voir aussi",
	"nos articles",
	"articles liés",
	"articles recommandés",
	"contenus sponsorisés",
	"publicité",
	"partager",
	"newsletter",
	"s'abonner",
	"abonnez-vous",
}

var defaultRemoveSelectors = []string{
	"related",
	"recommend",
	"read-also",
	"lire-aussi",
	"share",
	"social",
	"newsletter",
	"sidebar",
	"advertisement",
	"ad-",
	"pub",
	"promo",
	"sponsor",
}
