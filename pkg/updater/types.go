package updater

// Manifest is the release document published next to each build.
type Manifest struct {
	Latest     string `json:"latest_version"`
	MinVersion string `json:"min_version"`
	NotesURL   string `json:"release_notes_url"`
	Message    string `json:"update_message"`
	// Downloads is keyed by "GOOS/GOARCH".
	Downloads map[string]string `json:"platform_downloads"`
}

type UpdateInfo struct {
	CurrentVersion string
	LatestVersion  string
	Message        string
	DownloadURL    string
	IsAvailable    bool
	// Required means the running version is older than the manifest's minimum.
	Required bool
}

type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Body       string `json:"body"`
	HTMLURL    string `json:"html_url"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}
