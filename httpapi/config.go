package httpapi

// Config defines HTTP API and UI settings.
type Config struct {
	Addr          string
	BaseURL       string
	BasePath      string
	StreamHistory int
	WatchDepth    int
}
