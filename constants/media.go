package constants

import (
	"path/filepath"
	"strings"
)

// SupportedAudioExtensions holds the recording formats the speech
// service accepts. Files with any other extension are skipped at the
// trigger boundary without creating an error.
var SupportedAudioExtensions = map[string]struct{}{
	".wav":   {},
	".pcm":   {},
	".mp3":   {},
	".ogg":   {},
	".opus":  {},
	".flac":  {},
	".alaw":  {},
	".mulaw": {},
	".mp4":   {},
	".wma":   {},
	".aac":   {},
	".amr":   {},
	".webm":  {},
	".m4a":   {},
	".spx":   {},
}

// IsSupportedAudio reports whether path carries a supported audio extension.
func IsSupportedAudio(path string) bool {
	_, ok := SupportedAudioExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
