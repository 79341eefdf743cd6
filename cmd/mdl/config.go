package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/franz/media-librarian/internal/scan"
)

// GetConfigString returns a config string, flag value winning over file
func GetConfigString(key string) string {
	return viper.GetString(key)
}

// GetConfigInt returns a config integer
func GetConfigInt(key string) int {
	return viper.GetInt(key)
}

// GetConfigBool returns a config boolean
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// GetConfigStringSlice returns a config string slice
func GetConfigStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}

// parseProfiles turns --profile values into scan profiles
func parseProfiles(names []string) ([]scan.Profile, error) {
	profiles := make([]scan.Profile, 0, len(names))
	for _, name := range names {
		p, ok := scan.ParseProfile(name)
		if !ok {
			return nil, fmt.Errorf("unknown profile %q (want audio, video, image, text or filesystem)", name)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// parseOneProfile is parseProfiles for commands taking a single profile
func parseOneProfile(name string) (scan.Profile, error) {
	p, ok := scan.ParseProfile(strings.ToLower(name))
	if !ok {
		return "", fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}
