package report

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

//nolint:gochecknoglobals
var audioExtensions = []string{".flac", ".m4a", ".mp3", ".wav", ".ogg", ".opus", ".aac"}

// IsAudioFile reports whether path carries one of the extensions the collection tools pick up.
func IsAudioFile(path string) bool {
	return slices.Contains(audioExtensions, strings.ToLower(filepath.Ext(path)))
}

// CollectAudioFiles walks root and returns the audio files below it, sorted.
func CollectAudioFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() && IsAudioFile(path) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	slices.Sort(files)

	return files, nil
}
