// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Bounds checking for loop limits

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jesamkim/aws-strands-agents-chatbot/llm"
)

// Settings holds all application configuration.
type Settings struct {
	Models   ModelSettings
	Loop     LoopSettings
	Search   SearchSettings
	Storage  StorageSettings
	Server   ServerSettings
	LogLevel string
}

// ModelSettings holds per-phase model configuration.
// Orchestration decisions run on a cheap model; answer synthesis on a
// stronger one.
type ModelSettings struct {
	Orchestration string
	Synthesis     string
	Temperature   float64
	MaxTokens     int
}

// LoopSettings holds the reasoning loop limits.
type LoopSettings struct {
	MaxIterations        int
	MaxConsecutiveErrors int
	HistoryWindow        int
}

// SearchSettings holds document index configuration.
// IndexURL selects the remote HTTP backend, IndexPath the local sqlite
// index. When both are empty the agent answers without retrieval.
type SearchSettings struct {
	IndexURL         string
	IndexID          string
	IndexPath        string
	IndexDescription string
}

// StorageSettings holds conversation persistence configuration.
// An empty ConversationDB selects the in-memory store.
type StorageSettings struct {
	ConversationDB string
}

// ServerSettings holds the HTTP API configuration.
type ServerSettings struct {
	ListenAddr string
}

// New creates settings from environment variables.
// Returns an error if a variable contains an invalid or out-of-range value.
func New() (Settings, error) {
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.1)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvInt("LLM_MAX_TOKENS", 4000)
	if err != nil {
		return Settings{}, err
	}

	maxIterations, err := getEnvInt("AGENT_MAX_ITERATIONS", 5)
	if err != nil {
		return Settings{}, err
	}
	if maxIterations < 1 {
		return Settings{}, fmt.Errorf("AGENT_MAX_ITERATIONS must be at least 1, got %d", maxIterations)
	}

	maxErrors, err := getEnvInt("AGENT_MAX_ERRORS", 3)
	if err != nil {
		return Settings{}, err
	}
	if maxErrors < 1 {
		return Settings{}, fmt.Errorf("AGENT_MAX_ERRORS must be at least 1, got %d", maxErrors)
	}

	historyWindow, err := getEnvInt("AGENT_HISTORY_WINDOW", 10)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Models: ModelSettings{
			Orchestration: getEnvString("ORCHESTRATION_MODEL", llm.ModelClaudeHaiku4),
			Synthesis:     getEnvString("SYNTHESIS_MODEL", llm.ModelClaudeSonnet4),
			Temperature:   temperature,
			MaxTokens:     maxTokens,
		},
		Loop: LoopSettings{
			MaxIterations:        maxIterations,
			MaxConsecutiveErrors: maxErrors,
			HistoryWindow:        historyWindow,
		},
		Search: SearchSettings{
			IndexURL:         getEnvString("SEARCH_INDEX_URL", ""),
			IndexID:          getEnvString("SEARCH_INDEX_ID", ""),
			IndexPath:        getEnvString("SEARCH_INDEX_PATH", ""),
			IndexDescription: getEnvString("SEARCH_INDEX_DESCRIPTION", ""),
		},
		Storage: StorageSettings{
			ConversationDB: getEnvString("CONVERSATION_DB", ""),
		},
		Server: ServerSettings{
			ListenAddr: getEnvString("API_LISTEN_ADDR", ":8080"),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}, nil
}

// MustNew creates settings from environment variables.
// Panics if a variable is invalid. Use this only when configuration errors
// should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
