package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"engagement-advisor/internal/application/port/output"

	"github.com/joho/godotenv"
)

var _ output.ConfigPort = (*EnvService)(nil)

// ErrEnvFile is returned when an env file named on the command line cannot be
// loaded.
var ErrEnvFile = errors.New("env file could not be loaded")

// EnvService reads configuration from the process environment after loading
// .env, .env.<APP_ENV> and any extra files on top of it.
type EnvService struct {
	appEnv  string
	loaded  []string
	notes   []string
	invalid []string
}

// NewEnvService loads the optional .env files and then every file in
// extraFiles. The optional files only leave a note when absent; an extra file
// that cannot be loaded is an error.
func NewEnvService(extraFiles ...string) (*EnvService, error) {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	s := &EnvService{appEnv: appEnv}

	// .env never overrides the real environment; the overlays do.
	if err := godotenv.Load(".env"); err != nil {
		s.notes = append(s.notes, "no .env file found")
	} else {
		s.loaded = append(s.loaded, ".env")
	}

	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err != nil {
		s.notes = append(s.notes, fmt.Sprintf("could not load %s: %v", envFile, err))
	} else {
		s.loaded = append(s.loaded, envFile)
	}

	var errs []error
	for _, file := range extraFiles {
		if file == "" {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %v", ErrEnvFile, file, err))
			continue
		}
		s.loaded = append(s.loaded, file)
	}

	return s, errors.Join(errs...)
}

func (e *EnvService) AppEnv() string {
	return e.appEnv
}

// Loaded returns the env files that were applied, in order.
func (e *EnvService) Loaded() []string {
	return e.loaded
}

// Notes returns non-fatal problems met while loading the optional env files.
func (e *EnvService) Notes() []string {
	return e.notes
}

// Invalid lists values the typed getters could not parse. The getters fall
// back to their default for those keys.
func (e *EnvService) Invalid() []string {
	return e.invalid
}

func (e *EnvService) reject(key, val, kind string) {
	e.invalid = append(e.invalid, fmt.Sprintf("%s=%q is not a valid %s", key, val, kind))
}

func (e *EnvService) Get(key string) string {
	return os.Getenv(key)
}

func (e *EnvService) GetWithDefault(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func (e *EnvService) GetBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		e.reject(key, val, "boolean")
		return defaultValue
	}
	return parsed
}

func (e *EnvService) GetInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		e.reject(key, val, "integer")
		return defaultValue
	}
	return parsed
}

func (e *EnvService) GetFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		e.reject(key, val, "number")
		return defaultValue
	}
	return parsed
}

// GetDuration accepts Go duration strings ("90s") or a bare number of seconds.
func (e *EnvService) GetDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	e.reject(key, val, "duration")
	return defaultValue
}
