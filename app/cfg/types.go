package cfg

type Cfg struct {
	// Planning Center API credentials
	PCAppID   string
	PCSecret  string
	PCAPIBase string

	// Database configuration
	DBPath string

	// Application configuration
	Port         string
	PublicDir    string
	DataDir      string
	RulesFile    string
	APIAccessKey string

	// Rate limiting for outbound Planning Center requests
	RateLimitMaxRequests int
	RateLimitWindow      int // seconds

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
