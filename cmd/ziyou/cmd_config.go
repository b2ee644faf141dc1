package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

func handleConfigCommand(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: ziyou config <command>")
		fmt.Println("Commands: show, init")
		os.Exit(1)
	}

	switch args[0] {
	case "show":
		showConfig()
	case "init":
		initConfig()
	default:
		fmt.Printf("Unknown config command: %s\n", args[0])
		os.Exit(1)
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func showConfig() {
	shown := *cfg
	shown.Catalog.RAWGAPIKey = redact(shown.Catalog.RAWGAPIKey)
	shown.Catalog.IGDBClientSecret = redact(shown.Catalog.IGDBClientSecret)
	shown.Gemini.APIKey = redact(shown.Gemini.APIKey)

	if outputCfg.JSON {
		PrintResult(shown)
		return
	}

	data, err := yaml.Marshal(shown)
	if err != nil {
		PrintError("Error: failed to marshal config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("# Active Configuration")
	fmt.Println(string(data))
	if err := cfg.Validate(); err != nil {
		fmt.Println("# Invalid:", err)
	}
}

func initConfig() {
	configPath := ".ziyou.yaml"

	if _, err := os.Stat(configPath); err == nil {
		PrintError("Error: config file already exists at %s\n", configPath)
		os.Exit(1)
	}

	example := `# ziyou configuration
# Secrets are best kept in .env or the environment:
#   GEMINI_API_KEY, RAWG_API_KEY, IGDB_CLIENT_ID, IGDB_CLIENT_SECRET

cache:
  db_path: data/game_cache.db
  driver: sqlite      # sqlite (pure Go) or sqlite3 (cgo)
  ttl_seconds: 604800 # 7 days

catalog:
  provider: rawg      # rawg or igdb
  timeout: 15s

gemini:
  model: gemini-2.5-flash

server:
  port: "8000"
  allowed_origins: ["*"]

logging:
  level: info   # debug, info, warn, error
  format: text  # text or json
`

	if err := os.WriteFile(configPath, []byte(example), 0o644); err != nil {
		PrintError("Error: failed to write config: %v\n", err)
		os.Exit(1)
	}

	if outputCfg.JSON {
		PrintResult(map[string]string{"path": configPath, "status": "created"})
	} else {
		PrintInfo("Created config file: %s\n", configPath)
	}
}
