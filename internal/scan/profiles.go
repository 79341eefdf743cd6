package scan

// Profile selects extension whitelists, probe choice and batch sizing
type Profile string

const (
	ProfileAudio      Profile = "audio"
	ProfileVideo      Profile = "video"
	ProfileImage      Profile = "image"
	ProfileText       Profile = "text"
	ProfileFilesystem Profile = "filesystem"
)

var profileExtensions = map[Profile][]string{
	ProfileAudio: {
		".mp3", ".flac", ".ogg", ".oga", ".opus", ".m4a", ".m4b", ".aac",
		".wav", ".aiff", ".ape", ".wv", ".wma", ".mka", ".dsf", ".alac",
	},
	ProfileVideo: {
		".mp4", ".mkv", ".webm", ".avi", ".mov", ".wmv", ".mpg", ".mpeg",
		".m4v", ".ts", ".m2ts", ".vob", ".3gp", ".flv", ".ogv",
	},
	ProfileImage: {
		".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".heic", ".bmp",
		".tif", ".tiff", ".svg", ".jxl",
	},
	ProfileText: {
		".pdf", ".epub", ".mobi", ".azw", ".azw3", ".fb2", ".djvu", ".cbz",
		".cbr", ".txt", ".md",
	},
}

// ParseProfile validates a profile name
func ParseProfile(s string) (Profile, bool) {
	switch Profile(s) {
	case ProfileAudio, ProfileVideo, ProfileImage, ProfileText, ProfileFilesystem:
		return Profile(s), true
	}
	return "", false
}

// Extensions returns the union of the profiles' extension sets. An empty
// result means no filter: the filesystem profile takes every file.
func Extensions(profiles []Profile) map[string]bool {
	union := map[string]bool{}
	for _, p := range profiles {
		if p == ProfileFilesystem {
			return nil
		}
		for _, ext := range profileExtensions[p] {
			union[ext] = true
		}
	}
	if len(union) == 0 {
		return nil
	}
	return union
}
