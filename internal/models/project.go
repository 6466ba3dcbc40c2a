// Package models defines the domain types for keyrelay
package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Project is a registered client application that proxies through keyrelay.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Supported project types.
const (
	ProjectTypeWeb     = "web"
	ProjectTypeIOS     = "ios"
	ProjectTypeAndroid = "android"
	ProjectTypeExpo    = "expo"
	ProjectTypeOther   = "other"
)

// ProjectTypes lists all supported project types.
var ProjectTypes = []string{
	ProjectTypeWeb,
	ProjectTypeIOS,
	ProjectTypeAndroid,
	ProjectTypeExpo,
	ProjectTypeOther,
}

// ValidateProjectType returns an error if t is not a supported project type.
func ValidateProjectType(t string) error {
	for _, v := range ProjectTypes {
		if t == v {
			return nil
		}
	}
	return fmt.Errorf("invalid project type '%s'", t)
}

var projectSlugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateProjectID derives a stable, URL-safe project ID from the project
// name plus a base36 timestamp suffix to keep IDs unique across re-creates.
func GenerateProjectID(name string, now time.Time) string {
	slug := strings.ToLower(name)
	slug = projectSlugPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "project"
	}
	return slug + "-" + strconv.FormatInt(now.UnixMilli(), 36)
}
