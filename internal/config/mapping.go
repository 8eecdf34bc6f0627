package config

import (
	"fmt"
	"strconv"
	"strings"
)

// SchedulerFromMap builds scheduler options from a generic mapping, as
// produced by an external config loader. Keys may be camelCase or
// snake_case; unknown keys are ignored and absent keys take defaults.
// Values of the wrong type and values out of range are reported together.
func SchedulerFromMap(m map[string]any) (SchedulerConfig, error) {
	cfg := DefaultSchedulerConfig()
	var problems []string

	for key, raw := range m {
		var err error
		switch normalizeKey(key) {
		case "globaltimeout":
			cfg.GlobalTimeout, err = toInt(raw)
		case "maxconcurrentjobs":
			cfg.MaxConcurrentJobs, err = toInt(raw)
		case "cleanupstalelocks":
			cfg.CleanupStaleLocks, err = toBool(raw)
		case "skiponhighload":
			cfg.SkipOnHighLoad, err = toBool(raw)
		case "maxloadaverage":
			cfg.MaxLoadAverage, err = toFloat(raw)
		case "maxmemoryusage":
			cfg.MaxMemoryUsage, err = toInt(raw)
		case "defaultjobtimeout":
			cfg.DefaultJobTimeout, err = toInt(raw)
		case "lockdirectory":
			cfg.LockDirectory, err = toString(raw)
			cfg.LockDirectory = expandHome(expandEnv(cfg.LockDirectory))
		case "lockcleanupinterval":
			cfg.LockCleanupInterval, err = toInt(raw)
		default:
			continue
		}
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
		}
	}

	if len(problems) == 0 {
		for _, err := range cfg.Validate() {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return cfg, fmt.Errorf("invalid scheduler options: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(key, "_", ""), "-", ""))
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected an integer, got %g", n)
		}
		return int(n), nil
	case float32:
		return toInt(float64(n))
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", n)
		}
		return f, nil
	}
	i, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	return float64(i), nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("expected a boolean, got %q", b)
		}
		return parsed, nil
	}
	if i, err := toInt(v); err == nil {
		return i != 0, nil
	}
	return false, fmt.Errorf("expected a boolean, got %T", v)
}

func toString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("expected a string, got %T", v)
}
