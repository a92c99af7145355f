package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"

	"github.com/fishlab/gostim/internal/stim"
)

var (
	cfgMux  sync.RWMutex
	Rig     *RigCfg
	Version = "dev"
)

type RigCfg struct {
	Debug struct {
		Log bool `yaml:"log"`
	} `yaml:"debug"`
	FirstRun         bool   `yaml:"firstRun"`
	LogSaveDirectory string `yaml:"logSaveDirectory"`

	Session struct {
		RigName    string `yaml:"rigName"`
		SubjectID  string `yaml:"subjectId"`
		SubjectAge string `yaml:"subjectAge"`
	} `yaml:"session"`

	Display struct {
		FPS          int    `yaml:"fps"`
		WindowWidth  int    `yaml:"windowWidth"`
		WindowHeight int    `yaml:"windowHeight"`
		WindowPosX   int    `yaml:"windowPosX"`
		WindowPosY   int    `yaml:"windowPosY"`
		WindowTitle  string `yaml:"windowTitle"`
		Undecorated  bool   `yaml:"undecorated"`
		DotSeed      int64  `yaml:"dotSeed"` // 0 = seed from the clock
	} `yaml:"display"`

	Textures struct {
		Frequencies      []int `yaml:"frequencies"`
		DefaultFrequency int   `yaml:"defaultFrequency"`
	} `yaml:"textures"`

	Defaults struct {
		CenterWidth int `yaml:"centerWidth"`
	} `yaml:"defaults"`

	Server struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"server"`

	Ngrok struct {
		Enabled       bool   `yaml:"enabled"`
		SendURL       bool   `yaml:"sendUrl"`
		Authtoken     string `yaml:"authtoken"`
		Region        string `yaml:"region"`
		Domain        string `yaml:"domain"`
		BasicAuthUser string `yaml:"basicAuthUser"`
		BasicAuthPass string `yaml:"basicAuthPass"`
	} `yaml:"ngrok"`

	Discord struct {
		Enabled    bool   `yaml:"enabled"`
		Token      string `yaml:"token"`
		ChannelID  string `yaml:"channelId"`
		UseWebhook bool   `yaml:"useWebhook"`
		WebhookURL string `yaml:"webhookUrl"`
	} `yaml:"discord"`

	Telegram struct {
		Enabled bool   `yaml:"enabled"`
		ChatID  int64  `yaml:"chatId"`
		Token   string `yaml:"token"`
	} `yaml:"telegram"`

	// InitialStimulus is installed right after startup; nil means the
	// session begins on the blank stimulus.
	InitialStimulus *stim.Request `yaml:"initialStimulus,omitempty"`
}

// Load reads config/gostim.yaml into the package-level Rig config. On a
// fresh checkout the config directory is seeded from config/template.
func Load() error {
	cfgMux.Lock()
	defer cfgMux.Unlock()

	if _, err := os.Getwd(); err != nil {
		return fmt.Errorf("error getting current working directory: %w", err)
	}

	cfgPath := getAbsPath("config/gostim.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := cp.Copy(getAbsPath("config/template"), getAbsPath("config")); err != nil {
			return fmt.Errorf("error seeding config from template: %w", err)
		}
	}

	r, err := os.Open(cfgPath)
	if err != nil {
		return fmt.Errorf("error loading gostim.yaml: %w", err)
	}
	defer r.Close()

	d := yaml.NewDecoder(r)
	if err = d.Decode(&Rig); err != nil {
		return fmt.Errorf("error reading config %s: %w", cfgPath, err)
	}

	applyDefaults(Rig)
	return nil
}

func applyDefaults(cfg *RigCfg) {
	if cfg.Display.FPS <= 0 {
		cfg.Display.FPS = 75
	}
	if cfg.Display.WindowWidth <= 0 {
		cfg.Display.WindowWidth = 1024
	}
	if cfg.Display.WindowHeight <= 0 {
		cfg.Display.WindowHeight = 1024
	}
	if cfg.Display.WindowTitle == "" {
		cfg.Display.WindowTitle = "gostim"
	}
	if cfg.Textures.DefaultFrequency <= 0 {
		cfg.Textures.DefaultFrequency = 32
	}
	if len(cfg.Textures.Frequencies) == 0 {
		cfg.Textures.Frequencies = []int{8, 16, 32, 64}
	}
	if cfg.Defaults.CenterWidth <= 0 {
		cfg.Defaults.CenterWidth = 16
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8087
	}
	if cfg.LogSaveDirectory == "" {
		cfg.LogSaveDirectory = "logs"
	}
	if cfg.Session.RigName == "" {
		cfg.Session.RigName = "rig"
	}
}

func getAbsPath(relPath string) string {
	cwd, err := os.Getwd()
	if err != nil {
		// Error is checked in Load before any calls.
		return relPath
	}
	return filepath.Join(cwd, relPath)
}
