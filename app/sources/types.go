package sources

import "time"

// Source is one configured news outlet with its feed URLs
type Source struct {
	ID                   string   `yaml:"id" json:"id"`
	Name                 string   `yaml:"name" json:"name"`
	Country              string   `yaml:"country" json:"country"`
	Category             string   `yaml:"category" json:"category"`
	RSSURLs              []string `yaml:"rss_urls" json:"rss_urls"`
	Enabled              bool     `yaml:"enabled" json:"enabled"`
	FetchIntervalMinutes int      `yaml:"fetch_interval_minutes" json:"fetch_interval_minutes"`
	TrustRank            int      `yaml:"trust_rank" json:"trust_rank"`
}

// FetchInterval returns the minimum time between two fetches of the source
func (s *Source) FetchInterval() time.Duration {
	if s.FetchIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(s.FetchIntervalMinutes) * time.Minute
}
