package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedVideo is one catalog entry as written in a SEED_CATALOG file.
type SeedVideo struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	SourceID     string `yaml:"source_id"`
	ThumbnailURL string `yaml:"thumbnail_url"`
}

type seedFile struct {
	Videos []SeedVideo `yaml:"videos"`
}

// LoadSeedCatalog reads a YAML catalog of the form
//
//	videos:
//	  - title: ...
//	    source_id: ...
func LoadSeedCatalog(path string) ([]SeedVideo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed catalog: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalog: %w", err)
	}

	for i, v := range file.Videos {
		if v.Title == "" || v.SourceID == "" {
			return nil, fmt.Errorf("seed catalog entry %d: title and source_id are required", i)
		}
		if v.ThumbnailURL == "" {
			file.Videos[i].ThumbnailURL = defaultThumbnail(v.SourceID)
		}
	}
	return file.Videos, nil
}

func defaultThumbnail(sourceID string) string {
	return "https://img.youtube.com/vi/" + sourceID + "/maxresdefault.jpg"
}

func seed(title, description, sourceID string) SeedVideo {
	return SeedVideo{
		Title:        title,
		Description:  description,
		SourceID:     sourceID,
		ThumbnailURL: defaultThumbnail(sourceID),
	}
}

// DefaultSeedCatalog is loaded into an empty catalog when no seed file is
// configured.
func DefaultSeedCatalog() []SeedVideo {
	return []SeedVideo{
		seed("How to Start a Startup", "Sam Altman and Dustin Moskovitz share key insights on starting a successful startup.", "CBYhVcO4WgI"),
		seed("React Native Tutorial for Beginners", "Learn React Native from scratch and build mobile apps.", "0-S5a0eXPoc"),
		seed("Python Tutorial - Full Course", "Complete Python programming tutorial for beginners.", "_uQrJ0TkZlc"),
		seed("MongoDB Tutorial for Beginners", "Learn MongoDB from basics to advanced concepts.", "ofme2o29ngU"),
		seed("Flask Web Development Tutorial", "Build web applications with Python Flask framework.", "Z1RJmh_OqeA"),
		seed("JavaScript Full Course", "Master JavaScript from beginner to advanced level.", "PkZNo7MFNFg"),
		seed("Docker Tutorial for Beginners", "Learn Docker containerization from scratch.", "fqMOX6JJhGo"),
		seed("Git and GitHub for Beginners", "Complete guide to version control with Git.", "RGOj5yH7evk"),
		seed("Machine Learning Full Course", "Introduction to Machine Learning concepts and algorithms.", "Gv9_4yMHFhI"),
		seed("REST API Design Best Practices", "Learn how to design and build professional REST APIs.", "-MTSQjw5DrM"),
	}
}
