package influx

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds InfluxDB configuration.
type ClientConfig struct {
	URL            string
	Token          string
	Org            string
	RequestTimeout time.Duration
}

// WithURL sets the server URL.
func WithURL(url string) ClientOption {
	return func(c *ClientConfig) {
		c.URL = url
	}
}

// WithToken sets the API token.
func WithToken(token string) ClientOption {
	return func(c *ClientConfig) {
		c.Token = token
	}
}

// WithOrg sets the organization queries and writes run under.
func WithOrg(org string) ClientOption {
	return func(c *ClientConfig) {
		c.Org = org
	}
}

// WithRequestTimeout sets the HTTP request timeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.RequestTimeout = d
	}
}
