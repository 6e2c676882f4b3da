package config

// inject version by '-X' flag
// go build -ldflags "-X github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/config.Version=${VERSION}"
var (
	Version   string = "dev"
	BuildTime string = "unknown"
	GitCommit string = "unknown"
)

const (
	GitRepo = "hidarfaqeeh/v0-telegram-bot-project-sub000"
)
