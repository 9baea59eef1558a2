package core

// Capability describes what one source can answer. Descriptions feed
// the AI routing catalog and the capabilities endpoint; keywords are
// informational and mirror each connector's static relevance check.
type Capability struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

var capabilities = map[SourceType]Capability{
	SourceJira: {
		Name:        "jira",
		Description: "Jira issues, tickets, bugs, stories and sprint data from configured projects",
		Keywords:    []string{"jira", "issue", "ticket", "bug", "story", "task", "epic", "sprint", "backlog", "board"},
	},
	SourceGitHub: {
		Name:        "github",
		Description: "GitHub repositories, code, pull requests, commits and issues",
		Keywords:    []string{"github", "repository", "repo", "pull request", "commit", "code", "branch", "merge"},
	},
	SourceAPI: {
		Name:        "api",
		Description: "Content fetched from configured JSON API endpoints",
		Keywords:    []string{"api", "http", "rest", "endpoint", "service", "json"},
	},
	SourceFilesystem: {
		Name:        "filesystem",
		Description: "Local files and documents under the configured directories",
		Keywords:    []string{"file", "files", "folder", "directory", "local", "disk", "document"},
	},
	SourceVideo: {
		Name:        "video",
		Description: "Video metadata and transcripts, including YouTube search",
		Keywords:    []string{"video", "youtube", "vimeo", "movie", "clip", "watch", "transcript"},
	},
	SourceS3: {
		Name:        "s3",
		Description: "Objects stored in the configured S3 bucket",
		Keywords:    []string{"s3", "bucket", "aws", "cloud storage", "object", "blob"},
	},
	SourceURL: {
		Name:        "url",
		Description: "Web pages fetched and extracted from URLs appearing in the query",
		Keywords:    []string{"url", "website", "webpage", "link", "web", "page", "site"},
	},
}

func capabilityFor(st SourceType) Capability {
	if c, ok := capabilities[st]; ok {
		return c
	}
	return Capability{Name: string(st)}
}

// Capabilities lists the registered sources' capabilities in
// registration order.
func (o *Orchestrator) Capabilities() []Capability {
	out := make([]Capability, 0, len(o.order))
	for _, st := range o.order {
		out = append(out, capabilityFor(st))
	}
	return out
}
